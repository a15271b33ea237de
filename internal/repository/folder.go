package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// FolderRepository — интерфейс CRUD для таблицы folders.
type FolderRepository interface {
	// Create создаёт папку. ID, CreatedAt и UpdatedAt заполняются хранилищем.
	Create(ctx context.Context, f *model.Folder) error
	GetByID(ctx context.Context, id string) (*model.Folder, error)
	// Update применяет частичное обновление и возвращает актуальную запись.
	Update(ctx context.Context, id string, upd model.FolderUpdate) (*model.Folder, error)
	// Delete удаляет папку. Если на неё ссылаются потомки — ErrConflict.
	Delete(ctx context.Context, id string) error
	// FindByParent возвращает прямых потомков parentID (nil — корень)
	// пользователя userID. Пустой status — любой статус.
	FindByParent(ctx context.Context, userID string, parentID *string, status model.Status) ([]*model.Folder, error)
	// CountChildren возвращает количество активных дочерних папок и файлов.
	CountChildren(ctx context.Context, folderID string) (folders, files int, err error)
	// ListSubtree возвращает всех потомков папки (без неё самой)
	// в порядке обхода: родитель раньше потомков.
	ListSubtree(ctx context.Context, folderID string) ([]*model.Folder, error)
	// LockTree сериализует изменения формы дерева папок пользователя
	// до конца текущей транзакции. Вне транзакции бесполезен.
	LockTree(ctx context.Context, userID string) error
}

type folderRepo struct {
	db DBTX
}

// NewFolderRepository создаёт репозиторий папок.
func NewFolderRepository(db DBTX) FolderRepository {
	return &folderRepo{db: db}
}

const folderColumns = `id, name, user_id, parent_id, status, path, created_at, updated_at`

func scanFolder(row pgx.Row) (*model.Folder, error) {
	f := &model.Folder{}
	if err := row.Scan(&f.ID, &f.Name, &f.UserID, &f.ParentID, &f.Status, &f.Path, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

func collectFolders(rows pgx.Rows) ([]*model.Folder, error) {
	defer rows.Close()

	result := make([]*model.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования папки: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *folderRepo) Create(ctx context.Context, f *model.Folder) error {
	if f.Status == "" {
		f.Status = model.StatusActive
	}
	query := `
		INSERT INTO folders (name, user_id, parent_id, status, path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, f.Name, f.UserID, f.ParentID, f.Status, f.Path).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: родительская папка не найдена у владельца", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания папки: %w", err)
	}
	return nil
}

func (r *folderRepo) GetByID(ctx context.Context, id string) (*model.Folder, error) {
	f, err := scanFolder(r.db.QueryRow(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения папки: %w", err)
	}
	return f, nil
}

func (r *folderRepo) Update(ctx context.Context, id string, upd model.FolderUpdate) (*model.Folder, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.SetParent {
		add("parent_id", upd.ParentID)
	}
	if upd.Path != nil {
		add("path", *upd.Path)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}

	query := fmt.Sprintf(`UPDATE folders SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), folderColumns)

	f, err := scanFolder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: родительская папка не найдена у владельца", ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка обновления папки: %w", err)
	}
	return f, nil
}

func (r *folderRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: папка %s не пуста", ErrConflict, id)
		}
		return fmt.Errorf("ошибка удаления папки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *folderRepo) FindByParent(ctx context.Context, userID string, parentID *string, status model.Status) ([]*model.Folder, error) {
	query := `
		SELECT ` + folderColumns + `
		FROM folders
		WHERE user_id = $1
			AND parent_id IS NOT DISTINCT FROM $2
			AND ($3 = '' OR status = $3)
		ORDER BY name, id`

	rows, err := r.db.Query(ctx, query, userID, parentID, string(status))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения дочерних папок: %w", err)
	}
	return collectFolders(rows)
}

func (r *folderRepo) CountChildren(ctx context.Context, folderID string) (int, int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM folders WHERE parent_id = $1 AND status = 'active'),
			(SELECT COUNT(*) FROM files WHERE folder_id = $1 AND status = 'active')`

	var folders, files int
	if err := r.db.QueryRow(ctx, query, folderID).Scan(&folders, &files); err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта содержимого папки: %w", err)
	}
	return folders, files, nil
}

func (r *folderRepo) ListSubtree(ctx context.Context, folderID string) ([]*model.Folder, error) {
	// Глубина ограничена: при повреждённой иерархии (цикл) обход завершится.
	query := `
		WITH RECURSIVE subtree AS (
			SELECT ` + folderColumns + `, 1 AS depth
			FROM folders
			WHERE parent_id = $1
			UNION ALL
			SELECT f.id, f.name, f.user_id, f.parent_id, f.status, f.path,
				f.created_at, f.updated_at, s.depth + 1
			FROM folders f
			JOIN subtree s ON f.parent_id = s.id
			WHERE s.depth < $2 AND f.id <> $1
		)
		SELECT ` + folderColumns + `
		FROM subtree
		ORDER BY depth, name, id`

	rows, err := r.db.Query(ctx, query, folderID, MaxTreeDepth)
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода поддерева папки: %w", err)
	}
	return collectFolders(rows)
}

// LockTree берёт транзакционную advisory-блокировку по пользователю.
// Строки не блокируются, поэтому порядок с блокировками users/files не важен.
func (r *folderRepo) LockTree(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('folder_tree:' || $1::text))`, userID); err != nil {
		return fmt.Errorf("ошибка блокировки дерева папок: %w", err)
	}
	return nil
}
