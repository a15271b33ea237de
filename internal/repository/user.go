package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// UserRepository — интерфейс для таблицы users.
type UserRepository interface {
	// Create создаёт пользователя. Конфликт id или username — ErrConflict.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// AdjustStorageUsed атомарно прибавляет delta к storage_used с
	// ограничением снизу нулём. Возвращает новое значение.
	AdjustStorageUsed(ctx context.Context, userID string, delta int64) (int64, error)
	// ReserveStorage атомарно увеличивает storage_used на size, если
	// результат не превышает storage_limit. Иначе — ErrQuotaExceeded.
	ReserveStorage(ctx context.Context, userID string, size int64) (int64, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, username, password_hash, storage_used, storage_limit, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.StorageUsed, &u.StorageLimit, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, storage_used, storage_limit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.PasswordHash, u.StorageUsed, u.StorageLimit,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %s уже существует", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) AdjustStorageUsed(ctx context.Context, userID string, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET storage_used = GREATEST(storage_used + $2, 0)
		WHERE id = $1
		RETURNING storage_used`

	var used int64
	if err := r.db.QueryRow(ctx, query, userID, delta).Scan(&used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка изменения storage_used: %w", err)
	}
	return used, nil
}

func (r *userRepo) ReserveStorage(ctx context.Context, userID string, size int64) (int64, error) {
	query := `
		UPDATE users
		SET storage_used = storage_used + $2
		WHERE id = $1 AND storage_used + $2 <= storage_limit
		RETURNING storage_used`

	var used int64
	err := r.db.QueryRow(ctx, query, userID, size).Scan(&used)
	if err == nil {
		return used, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ошибка резервирования хранилища: %w", err)
	}

	// Строка не обновлена: пользователя нет либо не хватает места
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("ошибка проверки пользователя: %w", err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrQuotaExceeded
}
