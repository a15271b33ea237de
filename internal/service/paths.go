package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// PathResolver вычисляет цепочку предков папки и материализованный путь.
// Подъём по parent_id защищён множеством посещённых узлов и ограничением глубины.
type PathResolver struct {
	maxDepth int
}

// NewPathResolver создаёт PathResolver. maxDepth <= 0 — repository.MaxTreeDepth.
func NewPathResolver(maxDepth int) *PathResolver {
	if maxDepth <= 0 {
		maxDepth = repository.MaxTreeDepth
	}
	return &PathResolver{maxDepth: maxDepth}
}

// ResolvePath возвращает цепочку от корня до папки folderID включительно.
// Для nil — пустая цепочка. Синтетический корень не добавляется.
func (p *PathResolver) ResolvePath(ctx context.Context, repos *repository.Repositories, folderID *string) ([]model.Breadcrumb, error) {
	if folderID == nil {
		return []model.Breadcrumb{}, nil
	}

	var chain []model.Breadcrumb
	visited := make(map[string]struct{})
	current := folderID

	for current != nil {
		if _, seen := visited[*current]; seen {
			return nil, fmt.Errorf("%w: цикл на папке %s", ErrCorruptHierarchy, *current)
		}
		if len(visited) >= p.maxDepth {
			return nil, fmt.Errorf("%w: глубина превышает %d", ErrCorruptHierarchy, p.maxDepth)
		}
		visited[*current] = struct{}{}

		f, err := repos.Folders.GetByID(ctx, *current)
		if err != nil {
			return nil, mapRepoError(err, "получение папки "+*current)
		}
		chain = append(chain, model.Breadcrumb{ID: f.ID, Name: f.Name})
		current = f.ParentID
	}

	// Цепочка собрана снизу вверх
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// IsAncestor проверяет, лежит ли папка ancestorID на пути от корня к folderID
// (включая саму folderID).
func (p *PathResolver) IsAncestor(ctx context.Context, repos *repository.Repositories, ancestorID string, folderID *string) (bool, error) {
	chain, err := p.ResolvePath(ctx, repos, folderID)
	if err != nil {
		return false, err
	}
	for _, b := range chain {
		if b.ID == ancestorID {
			return true, nil
		}
	}
	return false, nil
}

// MaterializedPath строит строку пути вида /A/B/C. Пустая цепочка — "/".
func MaterializedPath(chain []model.Breadcrumb) string {
	if len(chain) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, c := range chain {
		b.WriteByte('/')
		b.WriteString(c.Name)
	}
	return b.String()
}

// childPath добавляет имя к пути родителя.
func childPath(parentPath, name string) string {
	return strings.TrimSuffix(parentPath, "/") + "/" + name
}

// RecomputeSubtree пересчитывает path папки и всех её потомков.
// Вызывается внутри транзакции после переименования или переноса.
// Возвращает количество обновлённых папок.
func (p *PathResolver) RecomputeSubtree(ctx context.Context, repos *repository.Repositories, folderID string) (int, error) {
	chain, err := p.ResolvePath(ctx, repos, &folderID)
	if err != nil {
		return 0, err
	}
	rootPath := MaterializedPath(chain)
	if _, err := repos.Folders.Update(ctx, folderID, model.FolderUpdate{Path: &rootPath}); err != nil {
		return 0, mapRepoError(err, "обновление пути папки")
	}

	descendants, err := repos.Folders.ListSubtree(ctx, folderID)
	if err != nil {
		return 0, fmt.Errorf("получение поддерева: %w", err)
	}

	// Потомки упорядочены по глубине: путь родителя всегда известен заранее
	paths := map[string]string{folderID: rootPath}
	for _, d := range descendants {
		if d.ParentID == nil {
			return 0, fmt.Errorf("%w: потомок %s без родителя", ErrCorruptHierarchy, d.ID)
		}
		parentPath, ok := paths[*d.ParentID]
		if !ok {
			return 0, fmt.Errorf("%w: родитель %s вне поддерева", ErrCorruptHierarchy, *d.ParentID)
		}
		path := childPath(parentPath, d.Name)
		paths[d.ID] = path
		if d.Path == path {
			continue
		}
		if _, err := repos.Folders.Update(ctx, d.ID, model.FolderUpdate{Path: &path}); err != nil {
			return 0, mapRepoError(err, "обновление пути потомка")
		}
	}
	return len(paths), nil
}
