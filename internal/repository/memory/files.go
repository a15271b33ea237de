package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

type fileRepo struct {
	b *backend
}

func (r *fileRepo) Create(_ context.Context, f *model.File) error {
	var err error
	r.b.write(func(st *state) {
		if _, ok := st.users[f.UserID]; !ok {
			err = fmt.Errorf("%w: владелец %s", repository.ErrNotFound, f.UserID)
			return
		}
		if f.FolderID != nil {
			folder, ok := st.folders[*f.FolderID]
			if !ok || folder.UserID != f.UserID {
				err = fmt.Errorf("%w: папка не найдена у владельца", repository.ErrNotFound)
				return
			}
		}
		for _, existing := range st.files {
			if existing.Path == f.Path {
				err = fmt.Errorf("%w: ключ хранилища %s уже занят", repository.ErrConflict, f.Path)
				return
			}
		}
		if f.Status == "" {
			f.Status = model.StatusActive
		}
		now := r.b.now()
		f.ID = newID()
		f.CreatedAt, f.UpdatedAt = now, now
		st.files[f.ID] = cloneFile(f)
	})
	return err
}

func (r *fileRepo) GetByID(_ context.Context, id string) (*model.File, error) {
	var res *model.File
	r.b.read(func(st *state) {
		if f, ok := st.files[id]; ok {
			res = cloneFile(f)
		}
	})
	if res == nil {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (r *fileRepo) Update(_ context.Context, id string, upd model.FileUpdate) (*model.File, error) {
	var (
		res *model.File
		err error
	)
	r.b.write(func(st *state) {
		f, ok := st.files[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if upd.SetFolder && upd.FolderID != nil {
			folder, ok := st.folders[*upd.FolderID]
			if !ok || folder.UserID != f.UserID {
				err = fmt.Errorf("%w: папка не найдена у владельца", repository.ErrNotFound)
				return
			}
		}
		if upd.Name != nil {
			f.Name = *upd.Name
		}
		if upd.Favorite != nil {
			f.Favorite = *upd.Favorite
		}
		if upd.SetFolder {
			f.FolderID = cloneString(upd.FolderID)
		}
		if upd.Status != nil {
			f.Status = *upd.Status
		}
		if upd.SetDeletedAt {
			if upd.DeletedAt != nil {
				t := *upd.DeletedAt
				f.DeletedAt = &t
			} else {
				f.DeletedAt = nil
			}
		}
		f.UpdatedAt = r.b.now()
		res = cloneFile(f)
	})
	return res, err
}

func (r *fileRepo) Delete(_ context.Context, id string) error {
	var err error
	r.b.write(func(st *state) {
		if _, ok := st.files[id]; !ok {
			err = repository.ErrNotFound
			return
		}
		// ON DELETE CASCADE для shares.file_id
		for sid, s := range st.shares {
			if s.FileID != nil && *s.FileID == id {
				delete(st.shares, sid)
			}
		}
		delete(st.files, id)
	})
	return err
}

func (r *fileRepo) find(match func(f *model.File) bool) []*model.File {
	result := make([]*model.File, 0)
	r.b.read(func(st *state) {
		for _, f := range st.files {
			if match(f) {
				result = append(result, cloneFile(f))
			}
		}
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *fileRepo) FindByFolder(_ context.Context, userID string, folderID *string, status model.Status) ([]*model.File, error) {
	return r.find(func(f *model.File) bool {
		return f.UserID == userID && sameParent(f.FolderID, folderID) && (status == "" || f.Status == status)
	}), nil
}

func (r *fileRepo) FindByStatus(_ context.Context, userID string, status model.Status) ([]*model.File, error) {
	return r.find(func(f *model.File) bool {
		return f.UserID == userID && f.Status == status
	}), nil
}

func (r *fileRepo) FindFavorites(_ context.Context, userID string) ([]*model.File, error) {
	return r.find(func(f *model.File) bool {
		return f.UserID == userID && f.Status == model.StatusActive && f.Favorite
	}), nil
}

func (r *fileRepo) Search(_ context.Context, userID, query, typeFilter string) ([]*model.File, error) {
	q := strings.ToLower(query)
	t := strings.ToLower(typeFilter)
	return r.find(func(f *model.File) bool {
		if f.UserID != userID || f.Status != model.StatusActive {
			return false
		}
		if t != "" && !strings.HasPrefix(strings.ToLower(f.Type), t) {
			return false
		}
		return strings.Contains(strings.ToLower(f.Name), q) ||
			strings.Contains(strings.ToLower(f.OriginalName), q)
	}), nil
}

func (r *fileRepo) SumSizeByUser(_ context.Context, userID string) (int64, error) {
	var total int64
	r.b.read(func(st *state) {
		for _, f := range st.files {
			if f.UserID == userID && (f.Status == model.StatusActive || f.Status == model.StatusTrashed) {
				total += f.Size
			}
		}
	})
	return total, nil
}
