package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "github.com/bigkaa/goartstore/drive-module/internal/api/errors"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

func newBareHandler() *APIHandler {
	return NewAPIHandler(NewHealthHandler(nil), Services{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWriteServiceError(t *testing.T) {
	h := newBareHandler()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{service.ErrValidation, http.StatusBadRequest, apierrors.CodeValidationError},
		{service.ErrNotFound, http.StatusNotFound, apierrors.CodeNotFound},
		{service.ErrForbidden, http.StatusForbidden, apierrors.CodeForbidden},
		{service.ErrPasswordRequired, http.StatusUnauthorized, apierrors.CodePasswordRequired},
		{service.ErrUnauthorized, http.StatusUnauthorized, apierrors.CodeUnauthorized},
		{service.ErrGone, http.StatusGone, apierrors.CodeGone},
		{service.ErrStorageExceeded, http.StatusRequestEntityTooLarge, apierrors.CodeStorageExceeded},
		{service.ErrInvalidTransition, http.StatusConflict, apierrors.CodeInvalidTransition},
		{service.ErrConflict, http.StatusConflict, apierrors.CodeConflict},
		{service.ErrCorruptHierarchy, http.StatusInternalServerError, apierrors.CodeCorruptHierarchy},
		{errors.New("boom"), http.StatusInternalServerError, apierrors.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, "тест", fmt.Errorf("обёртка: %w", tt.err))

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("тело не JSON: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("код = %q, ожидался %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	newBareHandler().writeServiceError(rec, "загрузка файла", errors.New("pq: password=secret"))
	if got := rec.Body.String(); strings.Contains(got, "secret") {
		t.Errorf("детали внутренней ошибки попали в ответ: %s", got)
	}
}

func TestNullableID(t *testing.T) {
	tests := []struct {
		body    string
		wantSet bool
		wantNil bool
		want    string
	}{
		{`{}`, false, true, ""},
		{`{"parent_id": null}`, true, true, ""},
		{`{"parent_id": ""}`, true, true, ""},
		{`{"parent_id": "abc"}`, true, false, "abc"},
	}
	for _, tt := range tests {
		var req updateFolderRequest
		if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
			t.Fatalf("%s: %v", tt.body, err)
		}
		if req.ParentID.Set != tt.wantSet {
			t.Errorf("%s: Set = %v, ожидалось %v", tt.body, req.ParentID.Set, tt.wantSet)
		}
		if (req.ParentID.Value == nil) != tt.wantNil {
			t.Errorf("%s: Value = %v", tt.body, req.ParentID.Value)
		}
		if !tt.wantNil && *req.ParentID.Value != tt.want {
			t.Errorf("%s: Value = %q, ожидалось %q", tt.body, *req.ParentID.Value, tt.want)
		}
	}

	var req updateFolderRequest
	if err := json.Unmarshal([]byte(`{"parent_id": 42}`), &req); err == nil {
		t.Error("число вместо строки должно давать ошибку")
	}
}

func TestSharePassword(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?password=q", nil)
	if pw := sharePassword(r); pw == nil || *pw != "q" {
		t.Errorf("пароль из query не извлечён: %v", pw)
	}

	r.Header.Set("X-Share-Password", "h")
	if pw := sharePassword(r); pw == nil || *pw != "h" {
		t.Errorf("заголовок должен иметь приоритет: %v", pw)
	}

	if sharePassword(httptest.NewRequest(http.MethodGet, "/x", nil)) != nil {
		t.Error("без пароля должен возвращаться nil")
	}
}

type stubChecker struct{ status string }

func (s stubChecker) CheckReady() (string, string) { return s.status, "" }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checkers   map[string]ReadinessChecker
		wantStatus int
		want       string
	}{
		{"все ok", map[string]ReadinessChecker{"postgresql": stubChecker{"ok"}, "idp": stubChecker{"ok"}}, http.StatusOK, "ok"},
		{"degraded", map[string]ReadinessChecker{"postgresql": stubChecker{"ok"}, "idp": stubChecker{"degraded"}}, http.StatusOK, "degraded"},
		{"fail", map[string]ReadinessChecker{"postgresql": stubChecker{"fail"}, "idp": stubChecker{"ok"}}, http.StatusServiceUnavailable, "fail"},
		{"nil checker", map[string]ReadinessChecker{"blobstore": nil}, http.StatusServiceUnavailable, "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checkers).HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			var resp healthReadyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.want {
				t.Errorf("итог = %q, ожидался %q", resp.Status, tt.want)
			}
			if len(resp.Checks) != len(tt.checkers) {
				t.Errorf("проверок = %d, ожидалось %d", len(resp.Checks), len(tt.checkers))
			}
		})
	}
}
