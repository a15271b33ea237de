// content.go — отдача содержимого файлов владельцу и по ссылке доступа.
package handlers

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// GetFileContent — GET /api/v1/files/{id}/content[?download=true][&token=..&password=..].
// С параметром token доступ проверяется по ссылке, иначе требуется JWT владельца.
func (h *APIHandler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	if token := r.URL.Query().Get("token"); token != "" {
		h.serveSharedContent(w, r, token, fileID)
		return
	}

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	f, rc, err := h.files.OpenContent(r.Context(), userID, fileID)
	if err != nil {
		h.writeServiceError(w, "чтение содержимого", err)
		return
	}
	h.serveContent(w, r, f, rc)
}

// GetSharedFileContent — GET /api/v1/public/shares/{token}/files/{id}/content.
func (h *APIHandler) GetSharedFileContent(w http.ResponseWriter, r *http.Request) {
	h.serveSharedContent(w, r, chi.URLParam(r, "token"), chi.URLParam(r, "id"))
}

func (h *APIHandler) serveSharedContent(w http.ResponseWriter, r *http.Request, token, fileID string) {
	f, rc, err := h.shares.OpenSharedFile(r.Context(), token, sharePassword(r), fileID)
	if err != nil {
		h.writeServiceError(w, "чтение содержимого по ссылке", err)
		return
	}
	h.serveContent(w, r, f, rc)
}

// serveContent пишет заголовки и копирует содержимое в ответ.
// Content-Disposition: attachment при download=true, иначе inline.
func (h *APIHandler) serveContent(w http.ResponseWriter, r *http.Request, f *model.File, rc io.ReadCloser) {
	defer rc.Close()

	disposition := "inline"
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", f.Type)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать
		h.logger.Warn("Обрыв передачи содержимого",
			slog.String("file_id", f.ID),
			slog.String("error", err.Error()),
		)
	}
}
