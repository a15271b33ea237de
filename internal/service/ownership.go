package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// maxNameLength — предельная длина имени файла или папки в символах.
const maxNameLength = 255

// validateName проверяет имя файла или папки.
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: имя не может быть пустым", ErrValidation)
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", fmt.Errorf("%w: имя длиннее %d символов", ErrValidation, maxNameLength)
	case strings.ContainsAny(name, "/\x00"):
		return "", fmt.Errorf("%w: имя содержит недопустимые символы", ErrValidation)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: недопустимое имя %q", ErrValidation, name)
	}
	return name, nil
}

// ownedFile загружает файл и проверяет владельца.
func ownedFile(ctx context.Context, repos *repository.Repositories, userID, fileID string) (*model.File, error) {
	f, err := repos.Files.GetByID(ctx, fileID)
	if err != nil {
		return nil, mapRepoError(err, "файл "+fileID)
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("%w: файл %s принадлежит другому пользователю", ErrForbidden, fileID)
	}
	return f, nil
}

// ownedFolder загружает папку и проверяет владельца.
func ownedFolder(ctx context.Context, repos *repository.Repositories, userID, folderID string) (*model.Folder, error) {
	f, err := repos.Folders.GetByID(ctx, folderID)
	if err != nil {
		return nil, mapRepoError(err, "папка "+folderID)
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("%w: папка %s принадлежит другому пользователю", ErrForbidden, folderID)
	}
	return f, nil
}

// activeFolder — ownedFolder, дополнительно требующий статус active.
// Папка в другом статусе для пользователя не существует.
func activeFolder(ctx context.Context, repos *repository.Repositories, userID, folderID string) (*model.Folder, error) {
	f, err := ownedFolder(ctx, repos, userID, folderID)
	if err != nil {
		return nil, err
	}
	if f.Status != model.StatusActive {
		return nil, fmt.Errorf("%w: папка %s в статусе %s", ErrNotFound, folderID, f.Status)
	}
	return f, nil
}
