package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/database"
	"github.com/bigkaa/goartstore/drive-module/internal/database/dbtest"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
	"github.com/bigkaa/goartstore/drive-module/internal/repository/repotest"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// TestPostgresStore прогоняет набор тестов контракта на PostgreSQL.
// Один контейнер на весь набор, таблицы очищаются перед каждым тестом.
func TestPostgresStore(t *testing.T) {
	cfg := dbtest.StartPostgres(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(pool.Close)

	newStore := func(t *testing.T) repository.Store {
		t.Helper()
		if _, err := pool.Exec(ctx, "TRUNCATE shares, files, folders, users CASCADE"); err != nil {
			t.Fatalf("Ошибка очистки таблиц: %v", err)
		}
		return repository.NewPostgresStore(pool)
	}

	suite := &repotest.StoreTestSuite{NewStore: newStore}
	suite.Run(t)

	t.Run("OpposingFolderMoves", func(t *testing.T) {
		testOpposingFolderMoves(t, newStore(t))
	})
}

// testOpposingFolderMoves — встречные переносы «A в B» и «B в A»
// не должны оба пройти и замкнуть папки в цикл.
func testOpposingFolderMoves(t *testing.T, store repository.Store) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	paths := service.NewPathResolver(0)
	folders := service.NewFolderService(store, paths, logger)

	require.NoError(t, store.Repos().Users.Create(ctx, &model.User{ID: "u1", Username: "u1", StorageLimit: 1000}))

	for i := range 20 {
		a, err := folders.Create(ctx, "u1", "A", nil)
		require.NoError(t, err)
		b, err := folders.Create(ctx, "u1", "B", nil)
		require.NoError(t, err)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  [2]error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = folders.Move(ctx, "u1", a.ID, &b.ID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = folders.Move(ctx, "u1", b.ID, &a.ID)
		}()
		close(start)
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.True(t, errors.Is(err, service.ErrValidation), "итерация %d: %v", i, err)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "итерация %d: ровно один перенос должен быть отклонён", i)

		for _, id := range []string{a.ID, b.ID} {
			_, err := paths.ResolvePath(ctx, store.Repos(), &id)
			require.NoError(t, err, "итерация %d: дерево папок повреждено", i)
		}
	}
}
