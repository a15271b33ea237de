// folders.go — обработчики /api/v1/folders endpoints.
// Листинг содержимого, создание, переименование, перенос, удаление папок.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/drive-module/internal/api/errors"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// ListFolderContents — GET /api/v1/folders/contents?folder_id=.
// Без folder_id возвращается корень.
func (h *APIHandler) ListFolderContents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	contents, err := h.contents.ListContents(r.Context(), userID, optionalID(r.URL.Query().Get("folder_id")))
	if err != nil {
		h.writeServiceError(w, "листинг папки", err)
		return
	}
	writeJSON(w, http.StatusOK, mapContents(contents))
}

// CreateFolder — POST /api/v1/folders.
func (h *APIHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createFolderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var parentID *string
	if req.ParentID != nil {
		parentID = optionalID(*req.ParentID)
	}
	folder, err := h.folders.Create(r.Context(), userID, req.Name, parentID)
	if err != nil {
		h.writeServiceError(w, "создание папки", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapFolder(folder))
}

// GetFolder — GET /api/v1/folders/{id}.
func (h *APIHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	folder, err := h.folders.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "получение папки", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFolder(folder))
}

// UpdateFolder — PATCH /api/v1/folders/{id}.
// name — переименование, parent_id — перенос (null — в корень).
func (h *APIHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req updateFolderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == nil && !req.ParentID.Set {
		apierrors.ValidationError(w, "Нужно указать name или parent_id")
		return
	}

	folder, err := h.folders.Update(r.Context(), userID, chi.URLParam(r, "id"), service.FolderChanges{
		Name:      req.Name,
		ParentID:  req.ParentID.Value,
		SetParent: req.ParentID.Set,
	})
	if err != nil {
		h.writeServiceError(w, "изменение папки", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFolder(folder))
}

// DeleteFolder — DELETE /api/v1/folders/{id}.
// Папка, вложенные папки и файлы удаляются безвозвратно.
func (h *APIHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.lifecycle.DeleteFolder(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "удаление папки", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
