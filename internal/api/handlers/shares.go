// shares.go — обработчики ссылок доступа.
// /api/v1/shares — управление ссылками владельцем (JWT),
// /api/v1/public/shares/{token} — обращение по ссылке (без JWT).
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// CreateShare — POST /api/v1/shares.
// Ровно одно из file_id и folder_id.
func (h *APIHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createShareRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	target := service.Target{Kind: service.TargetFolder}
	if req.FileID != nil {
		target = service.Target{Kind: service.TargetFile, ID: *req.FileID}
	} else {
		target.ID = *req.FolderID
	}

	share, err := h.shares.Issue(r.Context(), userID, target, model.Permission(req.Permission), req.Password, req.ExpiresAt)
	if err != nil {
		h.writeServiceError(w, "создание ссылки", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapShare(share))
}

// ListShares — GET /api/v1/shares.
func (h *APIHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	shares, err := h.shares.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "получение ссылок", err)
		return
	}
	items := make([]shareResponse, len(shares))
	for i, s := range shares {
		items[i] = mapShare(s)
	}
	writeJSON(w, http.StatusOK, shareListResponse{Items: items, Total: len(items)})
}

// DeleteShare — DELETE /api/v1/shares/{id}.
func (h *APIHandler) DeleteShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.shares.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "удаление ссылки", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveShare — GET /api/v1/public/shares/{token}.
// Пароль — заголовок X-Share-Password или параметр password.
func (h *APIHandler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	res, err := h.shares.Resolve(r.Context(), chi.URLParam(r, "token"), sharePassword(r))
	if err != nil {
		h.writeServiceError(w, "обращение по ссылке", err)
		return
	}
	writeJSON(w, http.StatusOK, mapResolvedShare(res))
}
