package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

type folderRepo struct {
	b *backend
}

// checkParent повторяет составной внешний ключ (parent_id, user_id).
func checkParent(st *state, userID string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	p, ok := st.folders[*parentID]
	if !ok || p.UserID != userID {
		return fmt.Errorf("%w: родительская папка не найдена у владельца", repository.ErrNotFound)
	}
	return nil
}

func (r *folderRepo) Create(_ context.Context, f *model.Folder) error {
	var err error
	r.b.write(func(st *state) {
		if _, ok := st.users[f.UserID]; !ok {
			err = fmt.Errorf("%w: владелец %s", repository.ErrNotFound, f.UserID)
			return
		}
		if err = checkParent(st, f.UserID, f.ParentID); err != nil {
			return
		}
		if f.Status == "" {
			f.Status = model.StatusActive
		}
		now := r.b.now()
		f.ID = newID()
		f.CreatedAt, f.UpdatedAt = now, now
		st.folders[f.ID] = cloneFolder(f)
	})
	return err
}

func (r *folderRepo) GetByID(_ context.Context, id string) (*model.Folder, error) {
	var res *model.Folder
	r.b.read(func(st *state) {
		if f, ok := st.folders[id]; ok {
			res = cloneFolder(f)
		}
	})
	if res == nil {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (r *folderRepo) Update(_ context.Context, id string, upd model.FolderUpdate) (*model.Folder, error) {
	var (
		res *model.Folder
		err error
	)
	r.b.write(func(st *state) {
		f, ok := st.folders[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if upd.SetParent {
			if err = checkParent(st, f.UserID, upd.ParentID); err != nil {
				return
			}
			f.ParentID = cloneString(upd.ParentID)
		}
		if upd.Name != nil {
			f.Name = *upd.Name
		}
		if upd.Path != nil {
			f.Path = *upd.Path
		}
		if upd.Status != nil {
			f.Status = *upd.Status
		}
		f.UpdatedAt = r.b.now()
		res = cloneFolder(f)
	})
	return res, err
}

func (r *folderRepo) Delete(_ context.Context, id string) error {
	var err error
	r.b.write(func(st *state) {
		if _, ok := st.folders[id]; !ok {
			err = repository.ErrNotFound
			return
		}
		for _, child := range st.folders {
			if child.ParentID != nil && *child.ParentID == id {
				err = fmt.Errorf("%w: папка %s не пуста", repository.ErrConflict, id)
				return
			}
		}
		for _, file := range st.files {
			if file.FolderID != nil && *file.FolderID == id {
				err = fmt.Errorf("%w: папка %s не пуста", repository.ErrConflict, id)
				return
			}
		}
		// ON DELETE CASCADE для shares.folder_id
		for sid, s := range st.shares {
			if s.FolderID != nil && *s.FolderID == id {
				delete(st.shares, sid)
			}
		}
		delete(st.folders, id)
	})
	return err
}

func (r *folderRepo) FindByParent(_ context.Context, userID string, parentID *string, status model.Status) ([]*model.Folder, error) {
	result := make([]*model.Folder, 0)
	r.b.read(func(st *state) {
		for _, f := range st.folders {
			if f.UserID != userID || !sameParent(f.ParentID, parentID) {
				continue
			}
			if status != "" && f.Status != status {
				continue
			}
			result = append(result, cloneFolder(f))
		}
	})
	sortFolders(result)
	return result, nil
}

func (r *folderRepo) CountChildren(_ context.Context, folderID string) (int, int, error) {
	var folders, files int
	r.b.read(func(st *state) {
		for _, f := range st.folders {
			if f.ParentID != nil && *f.ParentID == folderID && f.Status == model.StatusActive {
				folders++
			}
		}
		for _, f := range st.files {
			if f.FolderID != nil && *f.FolderID == folderID && f.Status == model.StatusActive {
				files++
			}
		}
	})
	return folders, files, nil
}

func (r *folderRepo) ListSubtree(_ context.Context, folderID string) ([]*model.Folder, error) {
	result := make([]*model.Folder, 0)
	r.b.read(func(st *state) {
		children := make(map[string][]*model.Folder)
		for _, f := range st.folders {
			if f.ParentID != nil {
				children[*f.ParentID] = append(children[*f.ParentID], f)
			}
		}

		// Обход в ширину: родитель всегда раньше потомков
		visited := map[string]bool{folderID: true}
		level := []string{folderID}
		for depth := 0; len(level) > 0 && depth < repository.MaxTreeDepth; depth++ {
			var next []*model.Folder
			for _, id := range level {
				for _, c := range children[id] {
					if visited[c.ID] {
						continue
					}
					visited[c.ID] = true
					next = append(next, cloneFolder(c))
				}
			}
			sortFolders(next)
			level = level[:0]
			for _, f := range next {
				result = append(result, f)
				level = append(level, f.ID)
			}
		}
	})
	return result, nil
}

// LockTree — транзакции хранилища в памяти и так выполняются по одной.
func (r *folderRepo) LockTree(context.Context, string) error {
	return nil
}

func sortFolders(fs []*model.Folder) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Name != fs[j].Name {
			return fs[i].Name < fs[j].Name
		}
		return fs[i].ID < fs[j].ID
	})
}
