// Пакет repotest — набор тестов контракта repository.Store.
// Проверяет поведение интерфейса, а не детали реализации, поэтому
// прогоняется и для хранилища в памяти, и для PostgreSQL.
package repotest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// StoreTestSuite — тесты контракта Store.
type StoreTestSuite struct {
	// NewStore создаёт пустое хранилище для каждого теста.
	NewStore func(t *testing.T) repository.Store
}

// Run выполняет все группы тестов.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Users", suite.RunUserTests)
	t.Run("Folders", suite.RunFolderTests)
	t.Run("Files", suite.RunFileTests)
	t.Run("Shares", suite.RunShareTests)
	t.Run("Tx", suite.RunTxTests)
}

// --- Вспомогательные функции ---

func mustCreateUser(t *testing.T, r *repository.Repositories, id string, limit int64) *model.User {
	t.Helper()
	u := &model.User{ID: id, Username: "name-" + id, StorageLimit: limit}
	require.NoError(t, r.Users.Create(context.Background(), u))
	return u
}

func mustCreateFolder(t *testing.T, r *repository.Repositories, userID, name string, parentID *string) *model.Folder {
	t.Helper()
	f := &model.Folder{Name: name, UserID: userID, ParentID: parentID, Path: "/" + name}
	require.NoError(t, r.Folders.Create(context.Background(), f))
	require.NotEmpty(t, f.ID)
	return f
}

func mustCreateFile(t *testing.T, r *repository.Repositories, userID, name string, size int64, folderID *string) *model.File {
	t.Helper()
	f := &model.File{
		Name:         name,
		OriginalName: name,
		Type:         "text/plain",
		Size:         size,
		UserID:       userID,
		FolderID:     folderID,
		Path:         userID + "/" + name + "/" + randomSuffix(),
	}
	require.NoError(t, r.Files.Create(context.Background(), f))
	require.NotEmpty(t, f.ID)
	return f
}

func randomSuffix() string {
	return uuid.NewString()
}

func ptr[T any](v T) *T {
	return &v
}
