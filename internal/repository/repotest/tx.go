package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

func (suite *StoreTestSuite) RunTxTests(t *testing.T) {
	t.Run("Commit", suite.TestTx_Commit)
	t.Run("Rollback", suite.TestTx_Rollback)
	t.Run("TreeLock", suite.TestTx_TreeLock)
}

func (suite *StoreTestSuite) TestTx_Commit(t *testing.T) {
	ctx := context.Background()
	store := suite.NewStore(t)
	mustCreateUser(t, store.Repos(), "u1", 1000)

	var fileID string
	err := store.RunInTx(ctx, func(r *repository.Repositories) error {
		f := mustCreateFile(t, r, "u1", "a.txt", 100, nil)
		fileID = f.ID
		_, err := r.Users.AdjustStorageUsed(ctx, "u1", f.Size)
		return err
	})
	require.NoError(t, err)

	_, err = store.Repos().Files.GetByID(ctx, fileID)
	require.NoError(t, err)
	u, err := store.Repos().Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.StorageUsed)
}

func (suite *StoreTestSuite) TestTx_Rollback(t *testing.T) {
	ctx := context.Background()
	store := suite.NewStore(t)
	r := store.Repos()
	mustCreateUser(t, r, "u1", 1000)
	docs := mustCreateFolder(t, r, "u1", "Docs", nil)
	f := mustCreateFile(t, r, "u1", "a.txt", 100, &docs.ID)
	_, err := r.Users.AdjustStorageUsed(ctx, "u1", 100)
	require.NoError(t, err)

	errBoom := errors.New("сбой посреди каскада")
	err = store.RunInTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Files.Delete(ctx, f.ID); err != nil {
			return err
		}
		if _, err := tx.Users.AdjustStorageUsed(ctx, "u1", -100); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	// Состояние до транзакции сохранено полностью
	_, err = r.Files.GetByID(ctx, f.ID)
	require.NoError(t, err)
	_, err = r.Folders.GetByID(ctx, docs.ID)
	require.NoError(t, err)
	u, err := r.Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.StorageUsed)
}

// TestTx_TreeLock — вторая транзакция не получает блокировку дерева
// пользователя, пока первая не завершилась.
func (suite *StoreTestSuite) TestTx_TreeLock(t *testing.T) {
	ctx := context.Background()
	store := suite.NewStore(t)
	mustCreateUser(t, store.Repos(), "u1", 1000)

	locked := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- store.RunInTx(ctx, func(r *repository.Repositories) error {
			if err := r.Folders.LockTree(ctx, "u1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	select {
	case <-locked:
	case err := <-firstDone:
		t.Fatalf("первая транзакция завершилась без блокировки: %v", err)
	}

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- store.RunInTx(ctx, func(r *repository.Repositories) error {
			return r.Folders.LockTree(ctx, "u1")
		})
	}()

	select {
	case err := <-secondDone:
		close(release)
		t.Fatalf("вторая транзакция получила блокировку раньше первой: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
}
