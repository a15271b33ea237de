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

func (suite *StoreTestSuite) RunShareTests(t *testing.T) {
	t.Run("CreateAndGet", suite.TestShare_CreateAndGet)
	t.Run("DuplicateToken", suite.TestShare_DuplicateToken)
	t.Run("DeleteExpired", suite.TestShare_DeleteExpired)
	t.Run("DeleteByTarget", suite.TestShare_DeleteByTarget)
}

func (suite *StoreTestSuite) TestShare_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	mustCreateUser(t, r, "u2", 1000)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)

	hash := "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	s := &model.Share{
		UserID:       "u1",
		FileID:       &f.ID,
		Token:        "token-1",
		Permission:   model.PermissionEdit,
		PasswordHash: &hash,
		ExpiresAt:    &expires,
	}
	require.NoError(t, r.Shares.Create(ctx, s))
	require.NotEmpty(t, s.ID)

	got, err := r.Shares.GetByToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, model.PermissionEdit, got.Permission)
	assert.True(t, got.HasPassword())
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expires, *got.ExpiresAt, time.Millisecond)
	require.NotNil(t, got.FileID)
	assert.Nil(t, got.FolderID)

	list, err := r.Shares.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = r.Shares.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = r.Shares.GetByToken(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, r.Shares.Delete(ctx, s.ID))
	assert.ErrorIs(t, r.Shares.Delete(ctx, s.ID), repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestShare_DuplicateToken(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)

	require.NoError(t, r.Shares.Create(ctx, &model.Share{
		UserID: "u1", FileID: &f.ID, Token: "same", Permission: model.PermissionView,
	}))
	err := r.Shares.Create(ctx, &model.Share{
		UserID: "u1", FileID: &f.ID, Token: "same", Permission: model.PermissionView,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func (suite *StoreTestSuite) TestShare_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	for token, exp := range map[string]*time.Time{"expired": &past, "valid": &future, "forever": nil} {
		require.NoError(t, r.Shares.Create(ctx, &model.Share{
			UserID: "u1", FileID: &f.ID, Token: token, Permission: model.PermissionView, ExpiresAt: exp,
		}))
	}

	tokens, err := r.Shares.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"expired"}, tokens)

	list, err := r.Shares.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func (suite *StoreTestSuite) TestShare_DeleteByTarget(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)
	docs := mustCreateFolder(t, r, "u1", "Docs", nil)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, &docs.ID)

	require.NoError(t, r.Shares.Create(ctx, &model.Share{
		UserID: "u1", FileID: &f.ID, Token: "file-tok", Permission: model.PermissionView,
	}))
	require.NoError(t, r.Shares.Create(ctx, &model.Share{
		UserID: "u1", FolderID: &docs.ID, Token: "folder-tok", Permission: model.PermissionFull,
	}))

	tokens, err := r.Shares.DeleteByFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"file-tok"}, tokens)

	tokens, err = r.Shares.DeleteByFolder(ctx, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"folder-tok"}, tokens)

	tokens, err = r.Shares.DeleteByFolder(ctx, docs.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
