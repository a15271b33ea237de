// Пакет blobtest — общие тесты контракта blobstore.BlobStore.
package blobtest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
)

// Run выполняет все тесты контракта на хранилище store.
func Run(t *testing.T, store blobstore.BlobStore) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, store) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, store) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, store) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, store) })
	t.Run("InvalidKey", func(t *testing.T) { testInvalidKey(t, store) })
	t.Run("EmptyContent", func(t *testing.T) { testEmptyContent(t, store) })
}

func testPutGet(t *testing.T, store blobstore.BlobStore) {
	ctx := context.Background()
	content := []byte("Hello, World! Тестовые данные для проверки.")
	key := "u1/20260101/put-get.txt"

	res, err := store.Put(ctx, key, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, key, res.Key)
	assert.Equal(t, int64(len(content)), res.Size)
	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func testOverwrite(t *testing.T, store blobstore.BlobStore) {
	ctx := context.Background()
	key := "u1/20260101/overwrite.txt"

	_, err := store.Put(ctx, key, bytes.NewReader([]byte("first version")))
	require.NoError(t, err)
	_, err = store.Put(ctx, key, bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func testGetMissing(t *testing.T, store blobstore.BlobStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "u1/20260101/missing.txt")
	assert.True(t, errors.Is(err, blobstore.ErrBlobNotFound), "ожидалась ErrBlobNotFound, получено %v", err)

	exists, err := store.Exists(ctx, "u1/20260101/missing.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testDeleteIdempotent(t *testing.T, store blobstore.BlobStore) {
	ctx := context.Background()
	key := "u1/20260101/delete.txt"

	_, err := store.Put(ctx, key, bytes.NewReader([]byte("to be deleted")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Повторное удаление — не ошибка
	require.NoError(t, store.Delete(ctx, key))
}

func testInvalidKey(t *testing.T, store blobstore.BlobStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, "../escape", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, blobstore.ErrInvalidKey)

	_, err = store.Get(ctx, "/abs/path")
	assert.ErrorIs(t, err, blobstore.ErrInvalidKey)
}

func testEmptyContent(t *testing.T, store blobstore.BlobStore) {
	ctx := context.Background()
	key := "u1/20260101/empty.txt"

	res, err := store.Put(ctx, key, bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Size)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, data)
}
