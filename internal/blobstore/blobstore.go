// Пакет blobstore — хранилище содержимого файлов по непрозрачному ключу.
// Метаданные живут в repository, здесь только байты.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ошибки хранилища содержимого.
var (
	// ErrBlobNotFound — содержимое с таким ключом отсутствует.
	ErrBlobNotFound = errors.New("содержимое не найдено")
	// ErrInvalidKey — ключ пустой или выходит за пределы хранилища.
	ErrInvalidKey = errors.New("недопустимый ключ содержимого")
)

// BlobStore — интерфейс хранилища содержимого.
type BlobStore interface {
	// Put записывает содержимое r под ключом key, считая размер и SHA-256.
	Put(ctx context.Context, key string, r io.Reader) (*PutResult, error)
	// Get открывает содержимое на чтение. Вызывающий код обязан закрыть reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete удаляет содержимое. Отсутствие ключа — не ошибка.
	Delete(ctx context.Context, key string) error
	// Exists проверяет наличие содержимого.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutResult — результат записи содержимого.
type PutResult struct {
	// Key — ключ, под которым записано содержимое
	Key string
	// Size — количество записанных байт
	Size int64
	// Checksum — SHA-256 содержимого (hex)
	Checksum string
}

// NewKey генерирует ключ для нового содержимого.
// Формат: {user}/{yyyymmdd}/{uuid}{ext}
// Пример: 3f2a.../20260221/a1b2c3d4-....jpg
func NewKey(userID, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > 16 || sanitize(strings.TrimPrefix(ext, ".")) != strings.TrimPrefix(ext, ".") {
		ext = ""
	}
	return path.Join(sanitize(userID), now.UTC().Format("20060102"), uuid.NewString()+ext)
}

// ValidateKey проверяет, что ключ относительный и не содержит
// обращений к родительским каталогам.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// sanitize убирает небезопасные символы из сегмента ключа.
// Оставляет только латинские буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "anon"
	}
	return result.String()
}
