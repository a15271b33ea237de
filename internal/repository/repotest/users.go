package repotest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

func (suite *StoreTestSuite) RunUserTests(t *testing.T) {
	t.Run("CreateAndGet", suite.TestUser_CreateAndGet)
	t.Run("Conflict", suite.TestUser_Conflict)
	t.Run("AdjustClampsAtZero", suite.TestUser_AdjustClampsAtZero)
	t.Run("Reserve", suite.TestUser_Reserve)
}

func (suite *StoreTestSuite) TestUser_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()

	u := mustCreateUser(t, r, "u1", 1000)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := r.Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "name-u1", got.Username)
	assert.Equal(t, int64(1000), got.StorageLimit)
	assert.Equal(t, int64(0), got.StorageUsed)

	got, err = r.Users.GetByUsername(ctx, "name-u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = r.Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = r.Users.GetByUsername(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestUser_Conflict(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()

	mustCreateUser(t, r, "u1", 1000)

	err := r.Users.Create(ctx, &model.User{ID: "u1", Username: "other", StorageLimit: 1})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = r.Users.Create(ctx, &model.User{ID: "u2", Username: "name-u1", StorageLimit: 1})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func (suite *StoreTestSuite) TestUser_AdjustClampsAtZero(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	used, err := r.Users.AdjustStorageUsed(ctx, "u1", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), used)

	used, err = r.Users.AdjustStorageUsed(ctx, "u1", -100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), used)

	// Уход в минус ограничивается нулём, это не ошибка
	used, err = r.Users.AdjustStorageUsed(ctx, "u1", -500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	_, err = r.Users.AdjustStorageUsed(ctx, "missing", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (suite *StoreTestSuite) TestUser_Reserve(t *testing.T) {
	ctx := context.Background()
	r := suite.NewStore(t).Repos()
	mustCreateUser(t, r, "u1", 1000)

	used, err := r.Users.ReserveStorage(ctx, "u1", 600)
	require.NoError(t, err)
	assert.Equal(t, int64(600), used)

	// Ровно до лимита — допустимо
	used, err = r.Users.ReserveStorage(ctx, "u1", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), used)

	_, err = r.Users.ReserveStorage(ctx, "u1", 1)
	assert.True(t, errors.Is(err, repository.ErrQuotaExceeded), "ожидалась ErrQuotaExceeded, получено %v", err)

	got, err := r.Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.StorageUsed, "неудачное резервирование не должно менять storage_used")

	_, err = r.Users.ReserveStorage(ctx, "missing", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
