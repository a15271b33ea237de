package memory

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

type userRepo struct {
	b *backend
}

func (r *userRepo) Create(_ context.Context, u *model.User) error {
	var err error
	r.b.write(func(st *state) {
		if _, ok := st.users[u.ID]; ok {
			err = fmt.Errorf("%w: пользователь %s уже существует", repository.ErrConflict, u.ID)
			return
		}
		for _, existing := range st.users {
			if existing.Username == u.Username {
				err = fmt.Errorf("%w: пользователь %s уже существует", repository.ErrConflict, u.Username)
				return
			}
		}
		u.CreatedAt = r.b.now()
		st.users[u.ID] = cloneUser(u)
	})
	return err
}

func (r *userRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	var res *model.User
	r.b.read(func(st *state) {
		if u, ok := st.users[id]; ok {
			res = cloneUser(u)
		}
	})
	if res == nil {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	var res *model.User
	r.b.read(func(st *state) {
		for _, u := range st.users {
			if u.Username == username {
				res = cloneUser(u)
				return
			}
		}
	})
	if res == nil {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (r *userRepo) AdjustStorageUsed(_ context.Context, userID string, delta int64) (int64, error) {
	var (
		used int64
		err  error
	)
	r.b.write(func(st *state) {
		u, ok := st.users[userID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		u.StorageUsed = max(u.StorageUsed+delta, 0)
		used = u.StorageUsed
	})
	return used, err
}

func (r *userRepo) ReserveStorage(_ context.Context, userID string, size int64) (int64, error) {
	var (
		used int64
		err  error
	)
	r.b.write(func(st *state) {
		u, ok := st.users[userID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if u.StorageUsed+size > u.StorageLimit {
			err = repository.ErrQuotaExceeded
			return
		}
		u.StorageUsed += size
		used = u.StorageUsed
	})
	return used, err
}
