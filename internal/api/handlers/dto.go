// dto.go — структуры запросов и ответов API и маппинг доменных моделей.
package handlers

import (
	"encoding/json"
	"time"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// nullableID различает отсутствующее поле и явный null.
// Используется в PATCH: {"parent_id": null} — перенос в корень.
type nullableID struct {
	Set   bool
	Value *string
}

// UnmarshalJSON вызывается только для присутствующего поля.
func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = optionalID(s)
	return nil
}

// --- Запросы ---

type createFolderRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *string `json:"parent_id"`
}

type updateFolderRequest struct {
	Name     *string    `json:"name" validate:"omitempty,min=1,max=255"`
	ParentID nullableID `json:"parent_id"`
}

type updateFileRequest struct {
	Name     *string    `json:"name" validate:"omitempty,min=1,max=255"`
	FolderID nullableID `json:"folder_id"`
}

type createShareRequest struct {
	FileID     *string    `json:"file_id" validate:"required_without=FolderID,excluded_with=FolderID"`
	FolderID   *string    `json:"folder_id" validate:"required_without=FileID"`
	Permission string     `json:"permission" validate:"omitempty,oneof=view edit full"`
	Password   *string    `json:"password" validate:"omitempty,min=1,max=128"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// --- Ответы ---

type fileResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OriginalName string     `json:"original_name"`
	Type         string     `json:"type"`
	Size         int64      `json:"size"`
	FolderID     *string    `json:"folder_id"`
	Status       string     `json:"status"`
	Favorite     bool       `json:"favorite"`
	URL          string     `json:"url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type folderResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	ItemCount *int      `json:"item_count,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type contentsResponse struct {
	Folders     []folderResponse   `json:"folders"`
	Files       []fileResponse     `json:"files"`
	Breadcrumbs []model.Breadcrumb `json:"breadcrumbs"`
}

type fileListResponse struct {
	Items []fileResponse `json:"items"`
	Total int            `json:"total"`
}

type shareResponse struct {
	ID          string     `json:"id"`
	FileID      *string    `json:"file_id"`
	FolderID    *string    `json:"folder_id"`
	Token       string     `json:"token"`
	Permission  string     `json:"permission"`
	HasPassword bool       `json:"has_password"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type shareListResponse struct {
	Items []shareResponse `json:"items"`
	Total int             `json:"total"`
}

// publicShareResponse — ответ получателю ссылки.
// Токен, владелец и хэш пароля не раскрываются.
type publicShareResponse struct {
	Kind       string            `json:"kind"`
	Permission string            `json:"permission"`
	ExpiresAt  *time.Time        `json:"expires_at"`
	File       *fileResponse     `json:"file,omitempty"`
	Folder     *folderResponse   `json:"folder,omitempty"`
	Contents   *contentsResponse `json:"contents,omitempty"`
}

// --- Маппинг ---

func mapFile(f *model.FileWithURL) fileResponse {
	return fileResponse{
		ID:           f.ID,
		Name:         f.Name,
		OriginalName: f.OriginalName,
		Type:         f.Type,
		Size:         f.Size,
		FolderID:     f.FolderID,
		Status:       string(f.Status),
		Favorite:     f.Favorite,
		URL:          f.URL,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
		DeletedAt:    f.DeletedAt,
	}
}

func mapFiles(files []*model.FileWithURL) fileListResponse {
	items := make([]fileResponse, len(files))
	for i, f := range files {
		items[i] = mapFile(f)
	}
	return fileListResponse{Items: items, Total: len(items)}
}

func mapFolder(f *model.Folder) folderResponse {
	return folderResponse{
		ID:        f.ID,
		Name:      f.Name,
		ParentID:  f.ParentID,
		Path:      f.Path,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func mapContents(c *service.FolderContents) contentsResponse {
	resp := contentsResponse{
		Folders:     make([]folderResponse, len(c.Folders)),
		Files:       make([]fileResponse, len(c.Files)),
		Breadcrumbs: c.Breadcrumbs,
	}
	for i, f := range c.Folders {
		item := mapFolder(f.Folder)
		count := f.ItemCount
		item.ItemCount = &count
		resp.Folders[i] = item
	}
	for i, f := range c.Files {
		resp.Files[i] = mapFile(f)
	}
	return resp
}

func mapShare(s *model.Share) shareResponse {
	return shareResponse{
		ID:          s.ID,
		FileID:      s.FileID,
		FolderID:    s.FolderID,
		Token:       s.Token,
		Permission:  string(s.Permission),
		HasPassword: s.HasPassword(),
		ExpiresAt:   s.ExpiresAt,
		CreatedAt:   s.CreatedAt,
	}
}

func mapResolvedShare(res *service.ResolvedShare) publicShareResponse {
	resp := publicShareResponse{
		Permission: string(res.Share.Permission),
		ExpiresAt:  res.Share.ExpiresAt,
	}
	if res.File != nil {
		resp.Kind = string(service.TargetFile)
		file := mapFile(res.File)
		// Папка владельца получателю не раскрывается
		file.FolderID = nil
		resp.File = &file
	}
	if res.Folder != nil {
		resp.Kind = string(service.TargetFolder)
		folder := mapFolder(res.Folder)
		folder.ParentID = nil
		folder.Path = "/" + res.Folder.Name
		resp.Folder = &folder
	}
	if res.Contents != nil {
		contents := mapContents(res.Contents)
		resp.Contents = &contents
	}
	return resp
}
