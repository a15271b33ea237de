package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// FileRepository — интерфейс CRUD для таблицы files.
type FileRepository interface {
	// Create сохраняет метаданные файла. ID и временные метки заполняются хранилищем.
	Create(ctx context.Context, f *model.File) error
	GetByID(ctx context.Context, id string) (*model.File, error)
	// Update применяет частичное обновление и возвращает актуальную запись.
	Update(ctx context.Context, id string, upd model.FileUpdate) (*model.File, error)
	Delete(ctx context.Context, id string) error
	// FindByFolder возвращает файлы папки folderID (nil — корень).
	// Пустой status — любой статус.
	FindByFolder(ctx context.Context, userID string, folderID *string, status model.Status) ([]*model.File, error)
	// FindByStatus возвращает все файлы пользователя в статусе status.
	FindByStatus(ctx context.Context, userID string, status model.Status) ([]*model.File, error)
	// FindFavorites возвращает активные избранные файлы пользователя.
	FindFavorites(ctx context.Context, userID string) ([]*model.File, error)
	// Search ищет активные файлы по подстроке имени или исходного имени
	// без учёта регистра. typeFilter — префикс MIME-типа (пустой — любой).
	Search(ctx context.Context, userID, query, typeFilter string) ([]*model.File, error)
	// SumSizeByUser возвращает суммарный размер active и trashed файлов.
	SumSizeByUser(ctx context.Context, userID string) (int64, error)
}

type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id, name, original_name, type, size, user_id, folder_id, path,
	status, favorite, created_at, updated_at, deleted_at`

func scanFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	if err := row.Scan(
		&f.ID, &f.Name, &f.OriginalName, &f.Type, &f.Size, &f.UserID, &f.FolderID, &f.Path,
		&f.Status, &f.Favorite, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	); err != nil {
		return nil, err
	}
	return f, nil
}

func collectFiles(rows pgx.Rows) ([]*model.File, error) {
	defer rows.Close()

	result := make([]*model.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Create(ctx context.Context, f *model.File) error {
	if f.Status == "" {
		f.Status = model.StatusActive
	}
	query := `
		INSERT INTO files (name, original_name, type, size, user_id, folder_id, path, status, favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.Name, f.OriginalName, f.Type, f.Size, f.UserID, f.FolderID, f.Path, f.Status, f.Favorite,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ключ хранилища %s уже занят", ErrConflict, f.Path)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: папка не найдена у владельца", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.File, error) {
	f, err := scanFile(r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) Update(ctx context.Context, id string, upd model.FileUpdate) (*model.File, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Favorite != nil {
		add("favorite", *upd.Favorite)
	}
	if upd.SetFolder {
		add("folder_id", upd.FolderID)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.SetDeletedAt {
		add("deleted_at", upd.DeletedAt)
	}

	query := fmt.Sprintf(`UPDATE files SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: папка не найдена у владельца", ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка обновления файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) FindByFolder(ctx context.Context, userID string, folderID *string, status model.Status) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1
			AND folder_id IS NOT DISTINCT FROM $2
			AND ($3 = '' OR status = $3)
		ORDER BY name, id`

	rows, err := r.db.Query(ctx, query, userID, folderID, string(status))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов папки: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) FindByStatus(ctx context.Context, userID string, status model.Status) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1 AND status = $2
		ORDER BY deleted_at DESC NULLS LAST, name, id`

	rows, err := r.db.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов по статусу: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) FindFavorites(ctx context.Context, userID string) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1 AND status = 'active' AND favorite
		ORDER BY name, id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения избранных файлов: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) Search(ctx context.Context, userID, query, typeFilter string) ([]*model.File, error) {
	sql := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1
			AND status = 'active'
			AND (name ILIKE $2 OR original_name ILIKE $2)
			AND ($3 = '' OR type ILIKE $4)
		ORDER BY name, id`

	rows, err := r.db.Query(ctx, sql, userID, likePattern(query), typeFilter, prefixPattern(typeFilter))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) SumSizeByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(size), 0)::bigint
		FROM files
		WHERE user_id = $1 AND status IN ('active', 'trashed')`

	var total int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта объёма файлов: %w", err)
	}
	return total, nil
}
