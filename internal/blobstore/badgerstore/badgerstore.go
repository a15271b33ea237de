// Пакет badgerstore — хранение содержимого во встроенной БД BadgerDB.
// Подходит для однопроцессных инсталляций и тестов: каждое значение
// целиком держится в памяти при чтении и записи.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
)

// keyPrefix отделяет ключи содержимого от других данных в БД.
const keyPrefix = "blob:"

// Store — BlobStore поверх BadgerDB.
type Store struct {
	db *badger.DB
}

// Open открывает (или создаёт) БД в директории dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	return open(opts)
}

// OpenInMemory открывает БД без записи на диск.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия BadgerDB: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает БД.
func (s *Store) Close() error {
	return s.db.Close()
}

func dbKey(key string) ([]byte, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return nil, err
	}
	return []byte(keyPrefix + key), nil
}

// Put читает содержимое целиком и сохраняет одной транзакцией.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (*blobstore.PutResult, error) {
	k, err := dbKey(key)
	if err != nil {
		return nil, err
	}

	hr := blobstore.NewHashingReader(r)
	data, err := io.ReadAll(hr)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения данных: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, data)
	}); err != nil {
		return nil, fmt.Errorf("ошибка записи %s: %w", key, err)
	}

	return &blobstore.PutResult{
		Key:      key,
		Size:     hr.Size(),
		Checksum: hr.Checksum(),
	}, nil
}

// Get возвращает копию значения.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := dbKey(key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("ошибка чтения %s: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete удаляет значение. Отсутствие ключа — не ошибка.
func (s *Store) Delete(_ context.Context, key string) error {
	k, err := dbKey(key)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	}); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", key, err)
	}
	return nil
}

// Exists проверяет наличие ключа.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	k, err := dbKey(key)
	if err != nil {
		return false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("ошибка проверки %s: %w", key, err)
	}
}

var _ blobstore.BlobStore = (*Store)(nil)
