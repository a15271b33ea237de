package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("CreateAndGet", suite.TestFile_CreateAndGet)
	t.Run("CrossUserFolder", suite.TestFile_CrossUserFolder)
	t.Run("UpdateStatus", suite.TestFile_UpdateStatus)
	t.Run("FindByFolder", suite.TestFile_FindByFolder)
	t.Run("Search", suite.TestFile_Search)
	t.Run("FavoritesAndSum", suite.TestFile_FavoritesAndSum)
	t.Run("DeleteCascadesShares", suite.TestFile_DeleteCascadesShares)
}

func (suite *StoreTestSuite) TestFile_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)
	assert.Equal(t, model.StatusActive, f.Status)

	got, err := r.Files.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
	assert.Equal(t, int64(100), got.Size)
	assert.Nil(t, got.FolderID)
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, f.Path, got.Path)

	// Ключ blob-а уникален
	dup := &model.File{Name: "b", OriginalName: "b", Type: "text/plain", Size: 1, UserID: "u1", Path: f.Path}
	assert.ErrorIs(t, r.Files.Create(ctx, dup), repository.ErrConflict)

	_, err = r.Files.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFile_CrossUserFolder(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	mustCreateUser(t, r, "u2", 1000)
	docs := mustCreateFolder(t, r, "u1", "Docs", nil)

	f := &model.File{
		Name: "x", OriginalName: "x", Type: "text/plain", Size: 1,
		UserID: "u2", FolderID: &docs.ID, Path: "u2/x/" + randomSuffix(),
	}
	assert.ErrorIs(t, r.Files.Create(ctx, f), repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFile_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)

	now := time.Now().UTC().Truncate(time.Millisecond)
	trashed, err := r.Files.Update(ctx, f.ID, model.FileUpdate{
		Status:       ptr(model.StatusTrashed),
		DeletedAt:    &now,
		SetDeletedAt: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrashed, trashed.Status)
	require.NotNil(t, trashed.DeletedAt)
	assert.WithinDuration(t, now, *trashed.DeletedAt, time.Millisecond)

	restored, err := r.Files.Update(ctx, f.ID, model.FileUpdate{
		Status:       ptr(model.StatusActive),
		SetDeletedAt: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, restored.Status)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, f.Name, restored.Name)
	assert.Equal(t, f.Size, restored.Size)

	renamed, err := r.Files.Update(ctx, f.ID, model.FileUpdate{Name: ptr("b.txt"), Favorite: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "b.txt", renamed.Name)
	assert.Equal(t, "a.txt", renamed.OriginalName)
	assert.True(t, renamed.Favorite)

	_, err = r.Files.Update(ctx, "00000000-0000-0000-0000-000000000000", model.FileUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFile_FindByFolder(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	mustCreateUser(t, r, "u2", 1000)
	docs := mustCreateFolder(t, r, "u1", "Docs", nil)

	mustCreateFile(t, r, "u1", "root.txt", 1, nil)
	mustCreateFile(t, r, "u2", "foreign.txt", 1, nil)
	inDocs := mustCreateFile(t, r, "u1", "doc.txt", 1, &docs.ID)
	gone := mustCreateFile(t, r, "u1", "old.txt", 1, &docs.ID)
	_, err := r.Files.Update(ctx, gone.ID, model.FileUpdate{Status: ptr(model.StatusTrashed)})
	require.NoError(t, err)

	root, err := r.Files.FindByFolder(ctx, "u1", nil, model.StatusActive)
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, "root.txt", root[0].Name)

	active, err := r.Files.FindByFolder(ctx, "u1", &docs.ID, model.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, inDocs.ID, active[0].ID)

	all, err := r.Files.FindByFolder(ctx, "u1", &docs.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	trash, err := r.Files.FindByStatus(ctx, "u1", model.StatusTrashed)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, gone.ID, trash[0].ID)
}

func (suite *StoreTestSuite) TestFile_Search(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	mustCreateUser(t, r, "u2", 1000)

	report := mustCreateFile(t, r, "u1", "Annual-Report.pdf", 1, nil)
	_, err := r.Files.Update(ctx, report.ID, model.FileUpdate{Name: ptr("summary.pdf")})
	require.NoError(t, err)

	img := &model.File{
		Name: "report_photo.png", OriginalName: "IMG_0001.png", Type: "image/png", Size: 1,
		UserID: "u1", Path: "u1/img/" + randomSuffix(),
	}
	require.NoError(t, r.Files.Create(ctx, img))

	trashed := mustCreateFile(t, r, "u1", "report-old.txt", 1, nil)
	_, err = r.Files.Update(ctx, trashed.ID, model.FileUpdate{Status: ptr(model.StatusTrashed)})
	require.NoError(t, err)
	mustCreateFile(t, r, "u2", "report-foreign.txt", 1, nil)

	// По исходному имени, без учёта регистра, только active и только свои
	found, err := r.Files.Search(ctx, "u1", "REPORT", "")
	require.NoError(t, err)
	require.Len(t, found, 2)

	found, err = r.Files.Search(ctx, "u1", "report", "image")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, img.ID, found[0].ID)

	// Спецсимволы LIKE трактуются буквально
	found, err = r.Files.Search(ctx, "u1", "%", "")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func (suite *StoreTestSuite) TestFile_FavoritesAndSum(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	a := mustCreateFile(t, r, "u1", "a.txt", 100, nil)
	b := mustCreateFile(t, r, "u1", "b.txt", 200, nil)
	mustCreateFile(t, r, "u1", "c.txt", 50, nil)

	_, err := r.Files.Update(ctx, a.ID, model.FileUpdate{Favorite: ptr(true)})
	require.NoError(t, err)
	_, err = r.Files.Update(ctx, b.ID, model.FileUpdate{Favorite: ptr(true), Status: ptr(model.StatusTrashed)})
	require.NoError(t, err)

	favs, err := r.Files.FindFavorites(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, a.ID, favs[0].ID)

	// Файлы в корзине занимают квоту
	total, err := r.Files.SumSizeByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(350), total)

	total, err = r.Files.SumSizeByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func (suite *StoreTestSuite) TestFile_DeleteCascadesShares(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)

	s := &model.Share{UserID: "u1", FileID: &f.ID, Token: "tok-" + randomSuffix(), Permission: model.PermissionView}
	require.NoError(t, r.Shares.Create(ctx, s))

	require.NoError(t, r.Files.Delete(ctx, f.ID))

	_, err := r.Files.GetByID(ctx, f.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = r.Shares.GetByID(ctx, s.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, r.Files.Delete(ctx, f.ID), repository.ErrNotFound)
}
