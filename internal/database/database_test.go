package database

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/bigkaa/goartstore/drive-module/internal/database/dbtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := dbtest.StartPostgres(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)
	if status, msg := checker.CheckReady(); status != "degraded" {
		t.Fatalf("CheckReady() до миграций = %s (%s), ожидается degraded", status, msg)
	}

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	if status, msg := checker.CheckReady(); status != "ok" {
		t.Fatalf("CheckReady() = %s (%s), ожидается ok", status, msg)
	}
}

// TestSchemaVersion — номер последней встроенной миграции.
func TestSchemaVersion(t *testing.T) {
	v, err := SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() вернул ошибку: %v", err)
	}
	if v != 1 {
		t.Errorf("SchemaVersion() = %d, ожидается 1", v)
	}
}

// TestMigrate проверяет применение миграций и ограничения схемы.
func TestMigrate(t *testing.T) {
	cfg := dbtest.StartPostgres(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"users", "folders", "files", "shares"} {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	// storage_used не может стать отрицательным
	if _, err := pool.Exec(ctx,
		"INSERT INTO users (id, username, storage_used, storage_limit) VALUES ('u1', 'alice', -1, 100)",
	); err == nil {
		t.Error("Ожидалось нарушение CHECK storage_used >= 0")
	}

	// Вложение папки в папку другого пользователя запрещено составным ключом
	for _, stmt := range []string{
		"INSERT INTO users (id, username, storage_limit) VALUES ('u1', 'alice', 100), ('u2', 'bob', 100)",
		"INSERT INTO folders (id, name, user_id) VALUES ('f1', 'Docs', 'u1')",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Ошибка подготовки данных: %v", err)
		}
	}
	if _, err := pool.Exec(ctx,
		"INSERT INTO folders (name, user_id, parent_id) VALUES ('Evil', 'u2', 'f1')",
	); err == nil {
		t.Error("Ожидалось нарушение внешнего ключа (parent_id, user_id)")
	}

	// Ссылка должна указывать ровно на один объект
	if _, err := pool.Exec(ctx,
		"INSERT INTO shares (user_id, token) VALUES ('u1', 'tok')",
	); err == nil {
		t.Error("Ожидалось нарушение CHECK file_id XOR folder_id")
	}
}
