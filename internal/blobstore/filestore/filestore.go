// Пакет filestore — хранение содержимого в файловой системе.
// Запись потоковая с подсчётом SHA-256 на лету:
// temp файл → запись + SHA-256 → fsync → atomic rename.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
)

// Store — BlobStore поверх afero.Fs.
type Store struct {
	fs   afero.Fs
	root string
}

// New создаёт Store с корнем root. Создаёт директорию, если её нет.
// В рабочем режиме передаётся afero.NewOsFs(), в тестах — afero.NewMemMapFs().
func New(fsys afero.Fs, root string) (*Store, error) {
	if err := fsys.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", root, err)
	}
	return &Store{fs: fsys, root: root}, nil
}

// Root возвращает корневую директорию хранилища.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) fullPath(key string) (string, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put записывает содержимое из r. При ошибке temp файл удаляется.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (*blobstore.PutResult, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Dir(fullPath)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}

	f, err := afero.TempFile(s.fs, dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	hr := blobstore.NewHashingReader(r)
	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: hr}); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := s.fs.Rename(tmpPath, fullPath); err != nil {
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &blobstore.PutResult{
		Key:      key,
		Size:     hr.Size(),
		Checksum: hr.Checksum(),
	}, nil
}

// Get открывает файл на чтение.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}
	return f, nil
}

// Delete удаляет файл. Возвращает nil, если файла уже нет.
func (s *Store) Delete(_ context.Context, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// Exists проверяет наличие файла.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return false, err
	}

	info, err := s.fs.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки файла %s: %w", key, err)
	}
	return !info.IsDir(), nil
}

// ctxReader прерывает копирование при отмене контекста.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ blobstore.BlobStore = (*Store)(nil)
