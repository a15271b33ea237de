// Пакет errors — конструкторы стандартных ошибок Drive Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodePasswordRequired  = "PASSWORD_REQUIRED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeGone              = "GONE"
	CodeStorageExceeded   = "STORAGE_EXCEEDED"
	CodeCorruptHierarchy  = "CORRUPT_HIERARCHY"
	CodeInternalError     = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация или неверный пароль ссылки.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// PasswordRequired — 401 ссылка защищена паролем, пароль не передан.
func PasswordRequired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodePasswordRequired, message)
}

// Forbidden — 403 объект принадлежит другому пользователю.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InvalidTransition — 409 недопустимый переход статуса.
func InvalidTransition(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidTransition, message)
}

// Gone — 410 срок действия ссылки истёк.
func Gone(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusGone, CodeGone, message)
}

// StorageExceeded — 413 превышен лимит хранилища.
func StorageExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeStorageExceeded, message)
}

// CorruptHierarchy — 500 цикл или превышена глубина дерева папок.
func CorruptHierarchy(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeCorruptHierarchy, message)
}

// InternalError — 500 внутренняя ошибка сервера.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
