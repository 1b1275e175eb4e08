// Пакет errors — запись ошибок API брокера.
// Единый формат: {"code": "...", "description": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/authbroker/internal/result"
)

// Коды ошибок, которые формирует сам HTTP-слой.
const (
	CodeUnauthorized    = "Auth.Unauthorized"
	CodeForbidden       = "Auth.Forbidden"
	CodeTooManyRequests = "Request.TooManyRequests"
	CodeInvalidBody     = "Request.ValidationError"
	CodeInternalError   = "Server.InternalError"
	CodeUnavailable     = "Server.Unavailable"
)

// errorBody — тело ответа ошибки.
type errorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// WriteError записывает ответ ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Description: description})
}

// Failure — 400 с кодом и описанием обработанного отказа.
func Failure(w http.ResponseWriter, e result.Error) {
	WriteError(w, http.StatusBadRequest, e.Code, e.Description)
}

// InvalidBody — 400 некорректное тело запроса.
func InvalidBody(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidBody, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// TooManyRequests — 429 превышен лимит запросов.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// Unavailable — 503 зависимость брокера недоступна.
func Unavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, message)
}
