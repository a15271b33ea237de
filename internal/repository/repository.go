// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности или ссылочной целостности.
	ErrConflict = errors.New("конфликт — запись уже существует или на неё ссылаются")
	// ErrQuotaExceeded — резервирование превышает лимит хранилища.
	ErrQuotaExceeded = errors.New("превышен лимит хранилища")
)

// MaxTreeDepth — предельная глубина дерева папок при рекурсивных обходах.
const MaxTreeDepth = 1024

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories — набор репозиториев, работающих поверх одного соединения
// или одной транзакции.
type Repositories struct {
	Users   UserRepository
	Folders FolderRepository
	Files   FileRepository
	Shares  ShareRepository
}

// Store — точка доступа к хранилищу метаданных.
// Repos возвращает репозитории вне транзакции, RunInTx — внутри.
type Store interface {
	Repos() *Repositories
	// RunInTx выполняет fn внутри транзакции.
	// Ошибка fn откатывает все изменения, сделанные через переданные репозитории.
	RunInTx(ctx context.Context, fn func(r *Repositories) error) error
}

// NewRepositories создаёт набор репозиториев поверх db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Users:   NewUserRepository(db),
		Folders: NewFolderRepository(db),
		Files:   NewFileRepository(db),
		Shares:  NewShareRepository(db),
	}
}

// PostgresStore — реализация Store поверх pgxpool.
type PostgresStore struct {
	pool  *pgxpool.Pool
	repos *Repositories
}

// NewPostgresStore создаёт Store для PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, repos: NewRepositories(pool)}
}

// Repos возвращает репозитории, работающие напрямую через пул.
func (s *PostgresStore) Repos() *Repositories {
	return s.repos
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(r *Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505" // unique_violation
}

// isForeignKeyViolation проверяет нарушение внешнего ключа.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503" // foreign_key_violation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// likePattern экранирует спецсимволы LIKE и оборачивает строку в %...%.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// prefixPattern экранирует спецсимволы LIKE и добавляет % в конец.
func prefixPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}
