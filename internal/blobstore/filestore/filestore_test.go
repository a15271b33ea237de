package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/blobtest"
)

// TestStore_Contract прогоняет общий набор тестов на MemMapFs и на диске.
func TestStore_Contract(t *testing.T) {
	t.Run("MemMapFs", func(t *testing.T) {
		s, err := New(afero.NewMemMapFs(), "/data")
		if err != nil {
			t.Fatalf("ошибка создания Store: %v", err)
		}
		blobtest.Run(t, s)
	})

	t.Run("OsFs", func(t *testing.T) {
		s, err := New(afero.NewOsFs(), filepath.Join(t.TempDir(), "data"))
		if err != nil {
			t.Fatalf("ошибка создания Store: %v", err)
		}
		blobtest.Run(t, s)
	})
}

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()

	s, err := New(fsys, "/var/drive")
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}
	if s.Root() != "/var/drive" {
		t.Errorf("ожидался путь /var/drive, получен %s", s.Root())
	}

	ok, err := afero.DirExists(fsys, "/var/drive")
	if err != nil || !ok {
		t.Fatalf("директория не создана: %v", err)
	}
}

// TestPut_NoTempLeftovers проверяет, что после записи не остаётся temp файлов.
func TestPut_NoTempLeftovers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := New(fsys, "/data")
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	if _, err := s.Put(context.Background(), "u1/20260101/a.txt", strings.NewReader("abc")); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	entries, err := afero.ReadDir(fsys, "/data/u1/20260101")
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("в директории ожидался только a.txt, найдено: %v", names)
	}
}

// failingReader возвращает ошибку после первой порции данных.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("обрыв соединения")
	}
	r.sent = true
	return copy(p, "partial"), nil
}

// TestPut_ReaderError проверяет удаление temp файла при ошибке чтения.
func TestPut_ReaderError(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := New(fsys, "/data")
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	if _, err := s.Put(context.Background(), "u1/20260101/broken.bin", &failingReader{}); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	entries, _ := afero.ReadDir(fsys, "/data/u1/20260101")
	if len(entries) != 0 {
		t.Errorf("после ошибки директория должна быть пустой, найдено %d файлов", len(entries))
	}
	if ok, _ := s.Exists(context.Background(), "u1/20260101/broken.bin"); ok {
		t.Error("частично записанный файл не должен быть виден")
	}
}

// TestPut_CancelledContext проверяет прерывание записи при отмене контекста.
func TestPut_CancelledContext(t *testing.T) {
	s, err := New(afero.NewMemMapFs(), "/data")
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Put(ctx, "u1/20260101/c.txt", io.LimitReader(bytes.NewReader(make([]byte, 1<<20)), 1<<20))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ожидалась context.Canceled, получено %v", err)
	}
}
