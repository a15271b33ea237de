package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bigkaa/goartstore/drive-module/internal/auth"
	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/filestore"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository/memory"
)

// testEnv — полный набор сервисов поверх хранилища в памяти и MemMapFs.
type testEnv struct {
	store     *memory.Store
	blobs     blobstore.BlobStore
	cache     *ShareCache
	paths     *PathResolver
	quota     *QuotaService
	users     *UserService
	folders   *FolderService
	files     *FileService
	lifecycle *LifecycleService
	contents  *ContentsService
	shares    *ShareService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type envOption func(*envConfig)

type envConfig struct {
	blobs        blobstore.BlobStore
	maxUpload    int64
	allowedTypes []string
}

func withBlobStore(b blobstore.BlobStore) envOption {
	return func(c *envConfig) { c.blobs = b }
}

func withUploadLimits(maxUpload int64, allowed ...string) envOption {
	return func(c *envConfig) {
		c.maxUpload = maxUpload
		c.allowedTypes = allowed
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := &envConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.blobs == nil {
		fs, err := filestore.New(afero.NewMemMapFs(), "/data")
		if err != nil {
			t.Fatalf("ошибка создания filestore: %v", err)
		}
		cfg.blobs = fs
	}

	logger := testLogger()
	store := memory.NewStore()
	urls := NewURLBuilder("/api/v1")
	paths := NewPathResolver(0)
	cache := NewShareCache(64, time.Minute)
	quota := NewQuotaService(store, logger)
	contents := NewContentsService(store, paths, urls, logger)
	hasher := auth.NewHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1})

	return &testEnv{
		store:     store,
		blobs:     cfg.blobs,
		cache:     cache,
		paths:     paths,
		quota:     quota,
		users:     NewUserService(store, 10<<20, logger),
		folders:   NewFolderService(store, paths, logger),
		files:     NewFileService(store, cfg.blobs, quota, urls, cfg.maxUpload, cfg.allowedTypes, logger),
		lifecycle: NewLifecycleService(store, cfg.blobs, quota, cache, logger),
		contents:  contents,
		shares:    NewShareService(store, cfg.blobs, contents, urls, hasher, cache, logger),
	}
}

func (e *testEnv) createUser(t *testing.T, id string, limit int64) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), id, "user-"+id, limit)
	if err != nil {
		t.Fatalf("ошибка создания пользователя %s: %v", id, err)
	}
	return u
}

func (e *testEnv) createFolder(t *testing.T, userID, name string, parentID *string) *model.Folder {
	t.Helper()
	f, err := e.folders.Create(context.Background(), userID, name, parentID)
	if err != nil {
		t.Fatalf("ошибка создания папки %s: %v", name, err)
	}
	return f
}

func (e *testEnv) upload(t *testing.T, userID string, folderID *string, name string, size int) *model.FileWithURL {
	t.Helper()
	f, err := e.files.Upload(context.Background(), UploadRequest{
		UserID:   userID,
		FolderID: folderID,
		Name:     name,
		Type:     "text/plain",
		Size:     int64(size),
		Body:     bytes.NewReader(bytes.Repeat([]byte("x"), size)),
	})
	if err != nil {
		t.Fatalf("ошибка загрузки %s: %v", name, err)
	}
	return f
}

func (e *testEnv) storageUsed(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := e.users.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("ошибка получения пользователя: %v", err)
	}
	return u.StorageUsed
}

func (e *testEnv) blobExists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := e.blobs.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("ошибка проверки содержимого: %v", err)
	}
	return ok
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("ожидалась ошибка %v, получено %v", want, err)
	}
}

func ptr[T any](v T) *T {
	return &v
}

// failingDeleteStore — blob store, у которого Delete всегда завершается ошибкой.
type failingDeleteStore struct {
	blobstore.BlobStore
}

func (f failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("диск недоступен")
}

// failingPutStore — blob store, у которого Put всегда завершается ошибкой.
type failingPutStore struct {
	blobstore.BlobStore
}

func (f failingPutStore) Put(context.Context, string, io.Reader) (*blobstore.PutResult, error) {
	return nil, errors.New("диск переполнен")
}
