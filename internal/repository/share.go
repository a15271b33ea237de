package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// ShareRepository — интерфейс CRUD для таблицы shares.
// Методы массового удаления возвращают токены удалённых ссылок
// для инвалидации кэша.
type ShareRepository interface {
	Create(ctx context.Context, s *model.Share) error
	GetByID(ctx context.Context, id string) (*model.Share, error)
	// GetByToken ищет ссылку по токену без учёта владельца.
	GetByToken(ctx context.Context, token string) (*model.Share, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Share, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired удаляет ссылки с expires_at <= now.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
	DeleteByFile(ctx context.Context, fileID string) ([]string, error)
	DeleteByFolder(ctx context.Context, folderID string) ([]string, error)
}

type shareRepo struct {
	db DBTX
}

// NewShareRepository создаёт репозиторий публичных ссылок.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepo{db: db}
}

const shareColumns = `id, user_id, file_id, folder_id, token, permission, password_hash, expires_at, created_at`

func scanShare(row pgx.Row) (*model.Share, error) {
	s := &model.Share{}
	if err := row.Scan(
		&s.ID, &s.UserID, &s.FileID, &s.FolderID, &s.Token, &s.Permission,
		&s.PasswordHash, &s.ExpiresAt, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *shareRepo) Create(ctx context.Context, s *model.Share) error {
	query := `
		INSERT INTO shares (user_id, file_id, folder_id, token, permission, password_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		s.UserID, s.FileID, s.FolderID, s.Token, s.Permission, s.PasswordHash, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: токен уже используется", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: объект ссылки не найден", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания ссылки: %w", err)
	}
	return nil
}

func (r *shareRepo) GetByID(ctx context.Context, id string) (*model.Share, error) {
	s, err := scanShare(r.db.QueryRow(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}
	return s, nil
}

func (r *shareRepo) GetByToken(ctx context.Context, token string) (*model.Share, error) {
	s, err := scanShare(r.db.QueryRow(ctx, `SELECT `+shareColumns+` FROM shares WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки по токену: %w", err)
	}
	return s, nil
}

func (r *shareRepo) ListByUser(ctx context.Context, userID string) ([]*model.Share, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылок пользователя: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Share, 0)
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ссылки: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *shareRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ссылки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shareRepo) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	return r.deleteReturningTokens(ctx,
		`DELETE FROM shares WHERE expires_at IS NOT NULL AND expires_at <= $1 RETURNING token`, now)
}

func (r *shareRepo) DeleteByFile(ctx context.Context, fileID string) ([]string, error) {
	return r.deleteReturningTokens(ctx, `DELETE FROM shares WHERE file_id = $1 RETURNING token`, fileID)
}

func (r *shareRepo) DeleteByFolder(ctx context.Context, folderID string) ([]string, error) {
	return r.deleteReturningTokens(ctx, `DELETE FROM shares WHERE folder_id = $1 RETURNING token`, folderID)
}

func (r *shareRepo) deleteReturningTokens(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления ссылок: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления ссылок: %w", err)
	}
	return tokens, nil
}
