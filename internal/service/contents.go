// contents.go — листинг содержимого папки и корзины.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/repository"
)

// RootBreadcrumb — синтетический корень в начале хлебных крошек.
var RootBreadcrumb = model.Breadcrumb{ID: "", Name: "Root"}

// FolderContents — содержимое папки для клиента.
// Порядок элементов не гарантируется, сортировка — на стороне клиента.
type FolderContents struct {
	Folders     []*model.FolderWithItemCount
	Files       []*model.FileWithURL
	Breadcrumbs []model.Breadcrumb
}

// URLBuilder строит URL доступа к содержимому файлов.
type URLBuilder struct {
	base string
}

// NewURLBuilder создаёт URLBuilder. base — префикс API, например
// "https://drive.example.com/api/v1" или "/api/v1".
func NewURLBuilder(base string) *URLBuilder {
	return &URLBuilder{base: strings.TrimSuffix(base, "/")}
}

// Content возвращает URL вида
// {base}/files/{id}/content[?download=true][&token=..&password=..].
func (b *URLBuilder) Content(fileID string, download bool, token, password string) string {
	u := b.base + "/files/" + url.PathEscape(fileID) + "/content"

	// Порядок параметров фиксирован: download, token, password
	var params []string
	if download {
		params = append(params, "download=true")
	}
	if token != "" {
		params = append(params, "token="+url.QueryEscape(token))
		if password != "" {
			params = append(params, "password="+url.QueryEscape(password))
		}
	}
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

// ContentsService собирает листинги папок из репозиториев и PathResolver.
type ContentsService struct {
	store  repository.Store
	paths  *PathResolver
	urls   *URLBuilder
	logger *slog.Logger
}

// NewContentsService создаёт сервис листингов.
func NewContentsService(store repository.Store, paths *PathResolver, urls *URLBuilder, logger *slog.Logger) *ContentsService {
	return &ContentsService{
		store:  store,
		paths:  paths,
		urls:   urls,
		logger: logger.With(slog.String("component", "contents_service")),
	}
}

// ListContents возвращает активные папки и файлы folderID (nil — корень)
// пользователя userID с количеством элементов и хлебными крошками.
func (s *ContentsService) ListContents(ctx context.Context, userID string, folderID *string) (*FolderContents, error) {
	repos := s.store.Repos()
	if folderID != nil {
		if _, err := activeFolder(ctx, repos, userID, *folderID); err != nil {
			return nil, err
		}
	}

	contents, err := s.list(ctx, repos, userID, folderID, func(f *model.File) string {
		return s.urls.Content(f.ID, false, "", "")
	})
	if err != nil {
		return nil, err
	}

	chain, err := s.paths.ResolvePath(ctx, repos, folderID)
	if err != nil {
		return nil, err
	}
	contents.Breadcrumbs = append([]model.Breadcrumb{RootBreadcrumb}, chain...)
	return contents, nil
}

// listShared возвращает содержимое расшаренной папки от имени владельца.
// Хлебные крошки начинаются с самой папки: предки получателю не раскрываются.
func (s *ContentsService) listShared(ctx context.Context, folder *model.Folder, token, password string) (*FolderContents, error) {
	contents, err := s.list(ctx, s.store.Repos(), folder.UserID, &folder.ID, func(f *model.File) string {
		return s.urls.Content(f.ID, false, token, password)
	})
	if err != nil {
		return nil, err
	}
	contents.Breadcrumbs = []model.Breadcrumb{{ID: folder.ID, Name: folder.Name}}
	return contents, nil
}

func (s *ContentsService) list(
	ctx context.Context,
	repos *repository.Repositories,
	userID string,
	folderID *string,
	urlFor func(f *model.File) string,
) (*FolderContents, error) {
	folders, err := repos.Folders.FindByParent(ctx, userID, folderID, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("получение папок: %w", err)
	}
	files, err := repos.Files.FindByFolder(ctx, userID, folderID, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("получение файлов: %w", err)
	}

	result := &FolderContents{
		Folders: make([]*model.FolderWithItemCount, 0, len(folders)),
		Files:   make([]*model.FileWithURL, 0, len(files)),
	}
	for _, f := range folders {
		nFolders, nFiles, err := repos.Folders.CountChildren(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("подсчёт элементов папки %s: %w", f.ID, err)
		}
		result.Folders = append(result.Folders, &model.FolderWithItemCount{Folder: f, ItemCount: nFolders + nFiles})
	}
	for _, f := range files {
		result.Files = append(result.Files, &model.FileWithURL{File: f, URL: urlFor(f)})
	}
	return result, nil
}

// ListTrash возвращает файлы пользователя в корзине.
func (s *ContentsService) ListTrash(ctx context.Context, userID string) ([]*model.FileWithURL, error) {
	files, err := s.store.Repos().Files.FindByStatus(ctx, userID, model.StatusTrashed)
	if err != nil {
		return nil, fmt.Errorf("получение корзины: %w", err)
	}
	result := make([]*model.FileWithURL, 0, len(files))
	for _, f := range files {
		result = append(result, &model.FileWithURL{File: f, URL: s.urls.Content(f.ID, false, "", "")})
	}
	return result, nil
}
