// files.go — обработчики /api/v1/files endpoints.
// Загрузка, метаданные, избранное, корзина, безвозвратное удаление.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/drive-module/internal/api/errors"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// multipartMemory — часть multipart-формы, которая держится в памяти.
// Остальное net/http сбрасывает во временные файлы.
const multipartMemory = 32 << 20

// UploadFile — POST /api/v1/files.
// Multipart form: file (обязательно), folder_id и name (опционально).
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		apierrors.ValidationError(w, "Ошибка парсинга multipart: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	result, err := h.files.Upload(r.Context(), service.UploadRequest{
		UserID:   userID,
		FolderID: optionalID(r.FormValue("folder_id")),
		Name:     name,
		Type:     header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		h.writeServiceError(w, "загрузка файла", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapFile(result))
}

// GetFile — GET /api/v1/files/{id}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	f, err := h.files.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "получение файла", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(f))
}

// UpdateFile — PATCH /api/v1/files/{id}.
// name — переименование, folder_id — перенос (null — в корень).
func (h *APIHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req updateFileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == nil && !req.FolderID.Set {
		apierrors.ValidationError(w, "Нужно указать name или folder_id")
		return
	}

	f, err := h.files.Update(r.Context(), userID, chi.URLParam(r, "id"), service.FileChanges{
		Name:      req.Name,
		FolderID:  req.FolderID.Value,
		SetFolder: req.FolderID.Set,
	})
	if err != nil {
		h.writeServiceError(w, "изменение файла", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(f))
}

// ToggleFavorite — POST /api/v1/files/{id}/favorite.
func (h *APIHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	f, err := h.files.ToggleFavorite(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "избранное", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(f))
}

// TrashFile — POST /api/v1/files/{id}/trash.
func (h *APIHandler) TrashFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	f, err := h.lifecycle.Trash(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "перемещение в корзину", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(h.files.WithURL(f)))
}

// RestoreFile — POST /api/v1/files/{id}/restore.
func (h *APIHandler) RestoreFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	f, err := h.lifecycle.Restore(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "восстановление файла", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(h.files.WithURL(f)))
}

// PurgeFile — DELETE /api/v1/files/{id}.
// Удаляет файл безвозвратно и освобождает квоту.
func (h *APIHandler) PurgeFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if _, err := h.lifecycle.Purge(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "удаление файла", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFavorites — GET /api/v1/files/favorites.
func (h *APIHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	files, err := h.files.ListFavorites(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "получение избранного", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFiles(files))
}

// SearchFiles — GET /api/v1/search?q=&type=.
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	files, err := h.files.Search(r.Context(), userID, q.Get("q"), q.Get("type"))
	if err != nil {
		h.writeServiceError(w, "поиск файлов", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFiles(files))
}

// ListTrash — GET /api/v1/trash.
func (h *APIHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	files, err := h.contents.ListTrash(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "получение корзины", err)
		return
	}
	writeJSON(w, http.StatusOK, mapFiles(files))
}

// EmptyTrash — DELETE /api/v1/trash.
func (h *APIHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.lifecycle.EmptyTrash(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "очистка корзины", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetStorageStats — GET /api/v1/storage/stats.
func (h *APIHandler) GetStorageStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	stats, err := h.quota.Stats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "статистика хранилища", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetStorageAudit — GET /api/v1/storage/audit.
// Сверяет storage_used с суммой размеров файлов, ничего не исправляя.
func (h *APIHandler) GetStorageAudit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	res, err := h.quota.Audit(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "сверка хранилища", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
