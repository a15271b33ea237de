// lifecycle.go — смена статусов файлов и каскадное удаление папок.
// Изменения метаданных выполняются в одной транзакции, содержимое
// удаляется из blob store после фиксации (best-effort).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/lifecycle"
	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

var (
	// filesPurgedTotal — количество безвозвратно удалённых файлов.
	filesPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_files_purged_total",
		Help: "Общее количество безвозвратно удалённых файлов",
	})

	// blobDeleteErrorsTotal — ошибки удаления содержимого после фиксации.
	blobDeleteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_blob_delete_errors_total",
		Help: "Количество ошибок удаления содержимого из blob store",
	})
)

// CascadeResult — итог каскадного удаления.
type CascadeResult struct {
	// Folders — удалено папок
	Folders int `json:"folders"`
	// Files — удалено файлов
	Files int `json:"files"`
	// FreedBytes — освобождено квоты
	FreedBytes int64 `json:"freed_bytes"`
}

// cascade накапливает удаляемые объекты внутри транзакции.
type cascade struct {
	result  CascadeResult
	keys    []string
	tokens  []string
	visited map[string]struct{}
}

func newCascade() *cascade {
	return &cascade{visited: make(map[string]struct{})}
}

// LifecycleService — корзина, восстановление и безвозвратное удаление.
type LifecycleService struct {
	store  repository.Store
	blobs  blobstore.BlobStore
	quota  *QuotaService
	cache  *ShareCache
	logger *slog.Logger
}

// NewLifecycleService создаёт сервис жизненного цикла.
// cache может быть nil.
func NewLifecycleService(
	store repository.Store,
	blobs blobstore.BlobStore,
	quota *QuotaService,
	cache *ShareCache,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:  store,
		blobs:  blobs,
		quota:  quota,
		cache:  cache,
		logger: logger.With(slog.String("component", "lifecycle_service")),
	}
}

// Trash перемещает файл в корзину. Квота не освобождается.
// Повторное перемещение уже удалённого в корзину файла — ErrInvalidTransition.
func (s *LifecycleService) Trash(ctx context.Context, userID, fileID string) (*model.File, error) {
	var result *model.File
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		f, err := ownedFile(ctx, r, userID, fileID)
		if err != nil {
			return err
		}
		target, err := lifecycle.Apply(f.Status, lifecycle.OpTrash)
		if err != nil {
			return mapTransitionError(err)
		}
		now := time.Now().UTC()
		result, err = r.Files.Update(ctx, fileID, model.FileUpdate{
			Status:       &target,
			DeletedAt:    &now,
			SetDeletedAt: true,
		})
		return mapRepoError(err, "перемещение в корзину")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Файл перемещён в корзину",
		slog.String("file_id", fileID),
		slog.String("user_id", userID),
	)
	return result, nil
}

// Restore возвращает файл из корзины.
func (s *LifecycleService) Restore(ctx context.Context, userID, fileID string) (*model.File, error) {
	var result *model.File
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		f, err := ownedFile(ctx, r, userID, fileID)
		if err != nil {
			return err
		}
		target, err := lifecycle.Apply(f.Status, lifecycle.OpRestore)
		if err != nil {
			return mapTransitionError(err)
		}
		result, err = r.Files.Update(ctx, fileID, model.FileUpdate{
			Status:       &target,
			SetDeletedAt: true,
		})
		return mapRepoError(err, "восстановление файла")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Файл восстановлен",
		slog.String("file_id", fileID),
		slog.String("user_id", userID),
	)
	return result, nil
}

// Purge безвозвратно удаляет файл: ссылки, строку метаданных и квоту
// в одной транзакции, затем содержимое.
func (s *LifecycleService) Purge(ctx context.Context, userID, fileID string) (*model.File, error) {
	c := newCascade()
	var purged *model.File
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		f, err := ownedFile(ctx, r, userID, fileID)
		if err != nil {
			return err
		}
		if _, err := lifecycle.Apply(f.Status, lifecycle.OpPurge); err != nil {
			return mapTransitionError(err)
		}
		if err := s.purgeFile(ctx, r, f, c); err != nil {
			return err
		}
		purged = f
		return s.release(ctx, r, userID, c)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, c)
	s.logger.Info("Файл удалён безвозвратно",
		slog.String("file_id", fileID),
		slog.String("user_id", userID),
		slog.Int64("size", purged.Size),
	)
	return purged, nil
}

// DeleteFolder удаляет папку со всем содержимым одной транзакцией.
// Файлы удаляются безвозвратно с освобождением квоты, включая файлы в корзине.
func (s *LifecycleService) DeleteFolder(ctx context.Context, userID, folderID string) (*CascadeResult, error) {
	c := newCascade()
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		if _, err := ownedFolder(ctx, r, userID, folderID); err != nil {
			return err
		}
		if err := s.deleteFolderTree(ctx, r, userID, folderID, c, 0); err != nil {
			return err
		}
		return s.release(ctx, r, userID, c)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, c)
	s.logger.Info("Папка удалена",
		slog.String("folder_id", folderID),
		slog.String("user_id", userID),
		slog.Int("folders", c.result.Folders),
		slog.Int("files", c.result.Files),
		slog.Int64("freed_bytes", c.result.FreedBytes),
	)
	return &c.result, nil
}

// EmptyTrash безвозвратно удаляет все файлы пользователя из корзины.
func (s *LifecycleService) EmptyTrash(ctx context.Context, userID string) (*CascadeResult, error) {
	c := newCascade()
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		files, err := r.Files.FindByStatus(ctx, userID, model.StatusTrashed)
		if err != nil {
			return fmt.Errorf("получение корзины: %w", err)
		}
		for _, f := range files {
			if err := s.purgeFile(ctx, r, f, c); err != nil {
				return err
			}
		}
		return s.release(ctx, r, userID, c)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, c)
	s.logger.Info("Корзина очищена",
		slog.String("user_id", userID),
		slog.Int("files", c.result.Files),
		slog.Int64("freed_bytes", c.result.FreedBytes),
	)
	return &c.result, nil
}

// deleteFolderTree рекурсивно (в глубину) удаляет файлы, дочерние папки
// и саму папку. Ссылки на удаляемые объекты удаляются до строк.
func (s *LifecycleService) deleteFolderTree(ctx context.Context, r *repository.Repositories, userID, folderID string, c *cascade, depth int) error {
	if depth >= repository.MaxTreeDepth {
		return fmt.Errorf("%w: глубина превышает %d", ErrCorruptHierarchy, repository.MaxTreeDepth)
	}
	if _, seen := c.visited[folderID]; seen {
		return fmt.Errorf("%w: цикл на папке %s", ErrCorruptHierarchy, folderID)
	}
	c.visited[folderID] = struct{}{}

	files, err := r.Files.FindByFolder(ctx, userID, &folderID, "")
	if err != nil {
		return fmt.Errorf("получение файлов папки: %w", err)
	}
	for _, f := range files {
		if err := s.purgeFile(ctx, r, f, c); err != nil {
			return err
		}
	}

	children, err := r.Folders.FindByParent(ctx, userID, &folderID, "")
	if err != nil {
		return fmt.Errorf("получение дочерних папок: %w", err)
	}
	for _, child := range children {
		if err := s.deleteFolderTree(ctx, r, userID, child.ID, c, depth+1); err != nil {
			return err
		}
	}

	tokens, err := r.Shares.DeleteByFolder(ctx, folderID)
	if err != nil {
		return fmt.Errorf("удаление ссылок на папку: %w", err)
	}
	c.tokens = append(c.tokens, tokens...)

	if err := r.Folders.Delete(ctx, folderID); err != nil {
		return mapRepoError(err, "удаление папки "+folderID)
	}
	c.result.Folders++
	return nil
}

// purgeFile удаляет ссылки на файл и его строку, запоминая ключ содержимого.
func (s *LifecycleService) purgeFile(ctx context.Context, r *repository.Repositories, f *model.File, c *cascade) error {
	tokens, err := r.Shares.DeleteByFile(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("удаление ссылок на файл: %w", err)
	}
	c.tokens = append(c.tokens, tokens...)

	if err := r.Files.Delete(ctx, f.ID); err != nil {
		return mapRepoError(err, "удаление файла "+f.ID)
	}
	c.keys = append(c.keys, f.Path)
	c.result.Files++
	c.result.FreedBytes += f.Size
	return nil
}

// release освобождает накопленную квоту одним атомарным изменением.
func (s *LifecycleService) release(ctx context.Context, r *repository.Repositories, userID string, c *cascade) error {
	if c.result.FreedBytes == 0 {
		return nil
	}
	_, err := s.quota.Adjust(ctx, r, userID, -c.result.FreedBytes)
	return err
}

// afterCommit инвалидирует кэш ссылок и удаляет содержимое.
// Ошибки удаления содержимого только логируются.
func (s *LifecycleService) afterCommit(ctx context.Context, c *cascade) {
	s.cache.Invalidate(c.tokens...)
	filesPurgedTotal.Add(float64(c.result.Files))

	// Метаданные уже зафиксированы: отмена запроса не должна прерывать очистку
	ctx = context.WithoutCancel(ctx)
	for _, key := range c.keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			blobDeleteErrorsTotal.Inc()
			s.logger.Error("Ошибка удаления содержимого",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}
