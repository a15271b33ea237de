package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// FolderService — создание, переименование и перенос папок.
// Материализованные пути поддерева пересчитываются в той же транзакции.
type FolderService struct {
	store  repository.Store
	paths  *PathResolver
	logger *slog.Logger
}

// NewFolderService создаёт сервис папок.
func NewFolderService(store repository.Store, paths *PathResolver, logger *slog.Logger) *FolderService {
	return &FolderService{
		store:  store,
		paths:  paths,
		logger: logger.With(slog.String("component", "folder_service")),
	}
}

// Create создаёт папку в parentID (nil — корень).
// Родитель другого пользователя — ErrForbidden.
func (s *FolderService) Create(ctx context.Context, userID, name string, parentID *string) (*model.Folder, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	folder := &model.Folder{
		Name:     name,
		UserID:   userID,
		ParentID: parentID,
		Status:   model.StatusActive,
	}
	err = s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		if parentID != nil {
			if _, err := activeFolder(ctx, r, userID, *parentID); err != nil {
				return err
			}
		}
		chain, err := s.paths.ResolvePath(ctx, r, parentID)
		if err != nil {
			return err
		}
		folder.Path = childPath(MaterializedPath(chain), name)
		return mapRepoError(r.Folders.Create(ctx, folder), "создание папки")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Папка создана",
		slog.String("folder_id", folder.ID),
		slog.String("user_id", userID),
		slog.String("path", folder.Path),
	)
	return folder, nil
}

// Get возвращает папку владельца.
func (s *FolderService) Get(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	return ownedFolder(ctx, s.store.Repos(), userID, folderID)
}

// FolderChanges — изменения папки из одного запроса.
// SetParent=true и ParentID=nil означает перенос в корень.
type FolderChanges struct {
	Name      *string
	ParentID  *string
	SetParent bool
}

// Rename переименовывает папку.
func (s *FolderService) Rename(ctx context.Context, userID, folderID, name string) (*model.Folder, error) {
	return s.Update(ctx, userID, folderID, FolderChanges{Name: &name})
}

// Move переносит папку в newParentID (nil — корень).
// Перенос в собственное поддерево — ErrValidation.
func (s *FolderService) Move(ctx context.Context, userID, folderID string, newParentID *string) (*model.Folder, error) {
	return s.Update(ctx, userID, folderID, FolderChanges{ParentID: newParentID, SetParent: true})
}

// Update применяет перенос и переименование одной транзакцией
// с единственным пересчётом путей поддерева.
// Ошибка любой части оставляет дерево без изменений.
func (s *FolderService) Update(ctx context.Context, userID, folderID string, ch FolderChanges) (*model.Folder, error) {
	if ch.Name == nil && !ch.SetParent {
		return nil, fmt.Errorf("%w: нет изменений", ErrValidation)
	}
	upd := model.FolderUpdate{ParentID: ch.ParentID, SetParent: ch.SetParent}
	if ch.Name != nil {
		name, err := validateName(*ch.Name)
		if err != nil {
			return nil, err
		}
		upd.Name = &name
	}

	return s.modify(ctx, userID, folderID, func(r *repository.Repositories, _ *model.Folder) (model.FolderUpdate, error) {
		if !ch.SetParent || ch.ParentID == nil {
			return upd, nil
		}
		// Форма дерева меняется: параллельные переносы того же
		// пользователя ждут, иначе встречные переносы дают цикл.
		if err := r.Folders.LockTree(ctx, userID); err != nil {
			return model.FolderUpdate{}, mapRepoError(err, "блокировка дерева папок")
		}
		if _, err := activeFolder(ctx, r, userID, *ch.ParentID); err != nil {
			return model.FolderUpdate{}, err
		}
		inside, err := s.paths.IsAncestor(ctx, r, folderID, ch.ParentID)
		if err != nil {
			return model.FolderUpdate{}, err
		}
		if inside {
			return model.FolderUpdate{}, fmt.Errorf("%w: нельзя перенести папку в её поддерево", ErrValidation)
		}
		return upd, nil
	})
}

// modify применяет изменение и пересчитывает пути поддерева.
func (s *FolderService) modify(
	ctx context.Context,
	userID, folderID string,
	build func(r *repository.Repositories, f *model.Folder) (model.FolderUpdate, error),
) (*model.Folder, error) {
	var (
		result  *model.Folder
		updated int
	)
	err := s.store.RunInTx(ctx, func(r *repository.Repositories) error {
		f, err := activeFolder(ctx, r, userID, folderID)
		if err != nil {
			return err
		}
		upd, err := build(r, f)
		if err != nil {
			return err
		}
		if _, err := r.Folders.Update(ctx, folderID, upd); err != nil {
			return mapRepoError(err, "обновление папки")
		}
		if updated, err = s.paths.RecomputeSubtree(ctx, r, folderID); err != nil {
			return err
		}
		result, err = r.Folders.GetByID(ctx, folderID)
		return mapRepoError(err, "получение папки")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Папка изменена",
		slog.String("folder_id", folderID),
		slog.String("path", result.Path),
		slog.Int("paths_updated", updated),
	)
	return result, nil
}
