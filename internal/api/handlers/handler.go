// handler.go — основной обработчик API Drive Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/bigkaa/goartstore/drive-module/internal/api/errors"
	"github.com/bigkaa/goartstore/drive-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/drive-module/internal/service"
)

// maxJSONBody — предельный размер JSON-тела запроса.
const maxJSONBody = 1 << 20

// Services — сервисный слой, которым пользуется API.
type Services struct {
	Folders   *service.FolderService
	Files     *service.FileService
	Lifecycle *service.LifecycleService
	Contents  *service.ContentsService
	Shares    *service.ShareService
	Quota     *service.QuotaService
}

// APIHandler — обработчик API Drive Module.
type APIHandler struct {
	health    *HealthHandler
	folders   *service.FolderService
	files     *service.FileService
	lifecycle *service.LifecycleService
	contents  *service.ContentsService
	shares    *service.ShareService
	quota     *service.QuotaService
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:    health,
		folders:   svc.Folders,
		files:     svc.Files,
		lifecycle: svc.Lifecycle,
		contents:  svc.Contents,
		shares:    svc.Shares,
		quota:     svc.Quota,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — проверка liveness (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка readiness (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// currentUser возвращает ID аутентифицированного пользователя.
// При отсутствии claims пишет 401 и возвращает false.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.SubjectFromContext(r.Context())
	if userID == "" {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return "", false
	}
	return userID, true
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает и валидирует тело запроса.
// При ошибке пишет 400 и возвращает false.
func (h *APIHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		apierrors.ValidationError(w, formatValidationError(err))
		return false
	}
	return true
}

// formatValidationError приводит ошибку валидатора к читаемому виду.
func formatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		parts := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			parts = append(parts, fmt.Sprintf("%s: не пройдена проверка '%s'", e.Field(), e.Tag()))
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500 без деталей.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, msg)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msg)
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, msg)
	case errors.Is(err, service.ErrPasswordRequired):
		apierrors.PasswordRequired(w, "Ссылка защищена паролем")
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, "Неверный пароль ссылки")
	case errors.Is(err, service.ErrGone):
		apierrors.Gone(w, "Срок действия ссылки истёк")
	case errors.Is(err, service.ErrStorageExceeded):
		apierrors.StorageExceeded(w, msg)
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.InvalidTransition(w, msg)
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, msg)
	case errors.Is(err, service.ErrCorruptHierarchy):
		h.logger.Error("Нарушена структура дерева папок", slog.String("op", op), slog.String("error", msg))
		apierrors.CorruptHierarchy(w, "Нарушена структура дерева папок")
	default:
		h.logger.Error("Ошибка операции", slog.String("op", op), slog.String("error", msg))
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}

// optionalID возвращает nil для пустой строки.
// Пустой folder_id или parent_id означает корень.
func optionalID(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// sharePassword извлекает пароль ссылки из заголовка X-Share-Password
// или параметра password. Отсутствие пароля — nil.
func sharePassword(r *http.Request) *string {
	if pw := r.Header.Get("X-Share-Password"); pw != "" {
		return &pw
	}
	if pw := r.URL.Query().Get("password"); pw != "" {
		return &pw
	}
	return nil
}
