package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
	"github.com/bigkaa/goartstore/drive-module/internal/repository/repotest"
)

func TestStore(t *testing.T) {
	suite := &repotest.StoreTestSuite{
		NewStore: func(t *testing.T) repository.Store {
			return NewStore()
		},
	}
	suite.Run(t)
}

// TestStore_ConcurrentReserve проверяет отсутствие потерянных обновлений
// storage_used при параллельных резервированиях.
func TestStore_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Repos().Users.Create(ctx, &model.User{ID: "u1", Username: "u1", StorageLimit: 1000}); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Repos().Users.ReserveStorage(ctx, "u1", 30); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	u, err := s.Repos().Users.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if succeeded != 33 {
		t.Errorf("успешных резервирований = %d, ожидается 33", succeeded)
	}
	if u.StorageUsed != int64(succeeded*30) {
		t.Errorf("StorageUsed = %d, ожидается %d", u.StorageUsed, succeeded*30)
	}
}

// TestStore_ReturnsCopies проверяет, что изменение возвращённой записи
// не влияет на хранилище.
func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := s.Repos()
	if err := r.Users.Create(ctx, &model.User{ID: "u1", Username: "u1", StorageLimit: 1000}); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	f := &model.Folder{Name: "Docs", UserID: "u1"}
	if err := r.Folders.Create(ctx, f); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	got, _ := r.Folders.GetByID(ctx, f.ID)
	got.Name = "Changed"

	again, _ := r.Folders.GetByID(ctx, f.ID)
	if again.Name != "Docs" {
		t.Errorf("Name = %q, ожидается Docs", again.Name)
	}
}
