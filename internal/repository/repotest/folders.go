package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

func (suite *StoreTestSuite) RunFolderTests(t *testing.T) {
	t.Run("CreateAndFindByParent", suite.TestFolder_CreateAndFindByParent)
	t.Run("CrossUserParent", suite.TestFolder_CrossUserParent)
	t.Run("Update", suite.TestFolder_Update)
	t.Run("Delete", suite.TestFolder_Delete)
	t.Run("CountChildren", suite.TestFolder_CountChildren)
	t.Run("ListSubtree", suite.TestFolder_ListSubtree)
}

func (suite *StoreTestSuite) TestFolder_CreateAndFindByParent(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	mustCreateUser(t, r, "u2", 1000)

	docs := mustCreateFolder(t, r, "u1", "Docs", nil)
	assert.Equal(t, model.StatusActive, docs.Status)
	mustCreateFolder(t, r, "u1", "Photos", nil)
	mustCreateFolder(t, r, "u1", "Work", &docs.ID)
	mustCreateFolder(t, r, "u2", "Foreign", nil)

	roots, err := r.Folders.FindByParent(ctx, "u1", nil, model.StatusActive)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Docs", roots[0].Name)
	assert.Equal(t, "Photos", roots[1].Name)

	children, err := r.Folders.FindByParent(ctx, "u1", &docs.ID, "")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Work", children[0].Name)
	require.NotNil(t, children[0].ParentID)
	assert.Equal(t, docs.ID, *children[0].ParentID)

	// Чужие папки не видны
	foreign, err := r.Folders.FindByParent(ctx, "u2", &docs.ID, "")
	require.NoError(t, err)
	assert.Empty(t, foreign)

	got, err := r.Folders.GetByID(ctx, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Docs", got.Path)

	_, err = r.Folders.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFolder_CrossUserParent(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	mustCreateUser(t, r, "u2", 1000)

	docs := mustCreateFolder(t, r, "u1", "Docs", nil)

	err := r.Folders.Create(ctx, &model.Folder{Name: "Evil", UserID: "u2", ParentID: &docs.ID})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	own := mustCreateFolder(t, r, "u2", "Own", nil)
	_, err = r.Folders.Update(ctx, own.ID, model.FolderUpdate{ParentID: &docs.ID, SetParent: true})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFolder_Update(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	a := mustCreateFolder(t, r, "u1", "A", nil)
	b := mustCreateFolder(t, r, "u1", "B", nil)

	updated, err := r.Folders.Update(ctx, b.ID, model.FolderUpdate{
		Name:      ptr("B2"),
		ParentID:  &a.ID,
		SetParent: true,
		Path:      ptr("/A/B2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "B2", updated.Name)
	assert.Equal(t, "/A/B2", updated.Path)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, a.ID, *updated.ParentID)
	assert.False(t, updated.UpdatedAt.Before(b.UpdatedAt))

	// Перенос в корень
	updated, err = r.Folders.Update(ctx, b.ID, model.FolderUpdate{SetParent: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
	assert.Equal(t, "B2", updated.Name, "поля без изменений должны сохраниться")

	_, err = r.Folders.Update(ctx, "00000000-0000-0000-0000-000000000000", model.FolderUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFolder_Delete(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	parent := mustCreateFolder(t, r, "u1", "Parent", nil)
	child := mustCreateFolder(t, r, "u1", "Child", &parent.ID)

	// Папка с потомками не удаляется
	err := r.Folders.Delete(ctx, parent.ID)
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, r.Folders.Delete(ctx, child.ID))
	require.NoError(t, r.Folders.Delete(ctx, parent.ID))

	_, err = r.Folders.GetByID(ctx, parent.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = r.Folders.Delete(ctx, parent.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestFolder_CountChildren(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	docs := mustCreateFolder(t, r, "u1", "Docs", nil)
	mustCreateFolder(t, r, "u1", "Sub", &docs.ID)
	mustCreateFile(t, r, "u1", "a.txt", 10, &docs.ID)
	trashed := mustCreateFile(t, r, "u1", "b.txt", 10, &docs.ID)
	_, err := r.Files.Update(ctx, trashed.ID, model.FileUpdate{Status: ptr(model.StatusTrashed)})
	require.NoError(t, err)

	folders, files, err := r.Folders.CountChildren(ctx, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, folders)
	assert.Equal(t, 1, files, "файлы в корзине не учитываются")
}

func (suite *StoreTestSuite) TestFolder_ListSubtree(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	a := mustCreateFolder(t, r, "u1", "A", nil)
	b := mustCreateFolder(t, r, "u1", "B", &a.ID)
	c := mustCreateFolder(t, r, "u1", "C", &b.ID)
	d := mustCreateFolder(t, r, "u1", "D", &a.ID)
	mustCreateFolder(t, r, "u1", "Other", nil)

	subtree, err := r.Folders.ListSubtree(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subtree, 3)

	pos := make(map[string]int)
	for i, f := range subtree {
		pos[f.ID] = i
	}
	assert.Contains(t, pos, b.ID)
	assert.Contains(t, pos, c.ID)
	assert.Contains(t, pos, d.ID)
	assert.NotContains(t, pos, a.ID, "корень поддерева не возвращается")
	assert.Less(t, pos[b.ID], pos[c.ID], "родитель должен идти раньше потомка")

	leaf, err := r.Folders.ListSubtree(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, leaf)
}
