// Пакет memory — реализация repository.Store в памяти процесса.
// Используется в тестах сервисного слоя и для локального запуска
// без PostgreSQL. Транзакции сериализуются и откатываются по снимку.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// state — содержимое хранилища. Значения в картах не разделяются
// с вызывающим кодом: на входе и выходе создаются копии.
type state struct {
	users   map[string]*model.User
	folders map[string]*model.Folder
	files   map[string]*model.File
	shares  map[string]*model.Share
}

func newState() *state {
	return &state{
		users:   make(map[string]*model.User),
		folders: make(map[string]*model.Folder),
		files:   make(map[string]*model.File),
		shares:  make(map[string]*model.Share),
	}
}

// clone создаёт независимую копию состояния для отката транзакции.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range st.folders {
		c.folders[k] = cloneFolder(v)
	}
	for k, v := range st.files {
		c.files[k] = cloneFile(v)
	}
	for k, v := range st.shares {
		c.shares[k] = cloneShare(v)
	}
	return c
}

// Store — хранилище в памяти, реализует repository.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
	repos *repository.Repositories
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	s := &Store{state: newState(), now: time.Now}
	s.repos = s.reposFor(nil)
	return s
}

// Repos возвращает репозитории, каждая операция которых атомарна.
func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

// RunInTx выполняет fn под эксклюзивной блокировкой над копией состояния.
// Копия заменяет текущее состояние только при успешном завершении fn.
func (s *Store) RunInTx(ctx context.Context, fn func(r *repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txState{st: s.state.clone()}
	if err := fn(s.reposFor(tx)); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

// txState — состояние открытой транзакции. Блокировка Store уже удерживается.
type txState struct {
	st *state
}

func (s *Store) reposFor(tx *txState) *repository.Repositories {
	b := &backend{store: s, tx: tx}
	return &repository.Repositories{
		Users:   &userRepo{b},
		Folders: &folderRepo{b},
		Files:   &fileRepo{b},
		Shares:  &shareRepo{b},
	}
}

// backend выбирает состояние: транзакционное или общее под блокировкой.
type backend struct {
	store *Store
	tx    *txState
}

func (b *backend) read(fn func(st *state)) {
	if b.tx != nil {
		fn(b.tx.st)
		return
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	fn(b.store.state)
}

func (b *backend) write(fn func(st *state)) {
	if b.tx != nil {
		fn(b.tx.st)
		return
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	fn(b.store.state)
}

func (b *backend) now() time.Time {
	return b.store.now().UTC()
}

func newID() string {
	return uuid.NewString()
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func cloneFolder(f *model.Folder) *model.Folder {
	c := *f
	c.ParentID = cloneString(f.ParentID)
	return &c
}

func cloneFile(f *model.File) *model.File {
	c := *f
	c.FolderID = cloneString(f.FolderID)
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func cloneShare(s *model.Share) *model.Share {
	c := *s
	c.FileID = cloneString(s.FileID)
	c.FolderID = cloneString(s.FolderID)
	c.PasswordHash = cloneString(s.PasswordHash)
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var _ repository.Store = (*Store)(nil)
