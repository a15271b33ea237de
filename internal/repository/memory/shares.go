package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

type shareRepo struct {
	b *backend
}

func (r *shareRepo) Create(_ context.Context, s *model.Share) error {
	var err error
	r.b.write(func(st *state) {
		if (s.FileID == nil) == (s.FolderID == nil) {
			err = errors.New("ссылка должна указывать ровно на один объект")
			return
		}
		if s.FileID != nil {
			if _, ok := st.files[*s.FileID]; !ok {
				err = fmt.Errorf("%w: объект ссылки не найден", repository.ErrNotFound)
				return
			}
		}
		if s.FolderID != nil {
			if _, ok := st.folders[*s.FolderID]; !ok {
				err = fmt.Errorf("%w: объект ссылки не найден", repository.ErrNotFound)
				return
			}
		}
		for _, existing := range st.shares {
			if existing.Token == s.Token {
				err = fmt.Errorf("%w: токен уже используется", repository.ErrConflict)
				return
			}
		}
		s.ID = newID()
		s.CreatedAt = r.b.now()
		st.shares[s.ID] = cloneShare(s)
	})
	return err
}

func (r *shareRepo) GetByID(_ context.Context, id string) (*model.Share, error) {
	var res *model.Share
	r.b.read(func(st *state) {
		if s, ok := st.shares[id]; ok {
			res = cloneShare(s)
		}
	})
	if res == nil {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (r *shareRepo) GetByToken(_ context.Context, token string) (*model.Share, error) {
	var res *model.Share
	r.b.read(func(st *state) {
		for _, s := range st.shares {
			if s.Token == token {
				res = cloneShare(s)
				return
			}
		}
	})
	if res == nil {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (r *shareRepo) ListByUser(_ context.Context, userID string) ([]*model.Share, error) {
	result := make([]*model.Share, 0)
	r.b.read(func(st *state) {
		for _, s := range st.shares {
			if s.UserID == userID {
				result = append(result, cloneShare(s))
			}
		}
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *shareRepo) Delete(_ context.Context, id string) error {
	var err error
	r.b.write(func(st *state) {
		if _, ok := st.shares[id]; !ok {
			err = repository.ErrNotFound
			return
		}
		delete(st.shares, id)
	})
	return err
}

func (r *shareRepo) deleteWhere(match func(s *model.Share) bool) []string {
	tokens := make([]string, 0)
	r.b.write(func(st *state) {
		for id, s := range st.shares {
			if match(s) {
				tokens = append(tokens, s.Token)
				delete(st.shares, id)
			}
		}
	})
	return tokens
}

func (r *shareRepo) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	return r.deleteWhere(func(s *model.Share) bool { return s.IsExpired(now) }), nil
}

func (r *shareRepo) DeleteByFile(_ context.Context, fileID string) ([]string, error) {
	return r.deleteWhere(func(s *model.Share) bool {
		return s.FileID != nil && *s.FileID == fileID
	}), nil
}

func (r *shareRepo) DeleteByFolder(_ context.Context, folderID string) ([]string, error) {
	return r.deleteWhere(func(s *model.Share) bool {
		return s.FolderID != nil && *s.FolderID == folderID
	}), nil
}
