// handler.go — основной обработчик API брокера.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
// Обработанный отказ сервиса — 400 с {code, description}.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/authbroker/internal/api/errors"
	"github.com/bigkaa/authbroker/internal/api/middleware"
	"github.com/bigkaa/authbroker/internal/result"
	"github.com/bigkaa/authbroker/internal/service"
)

// maxBodySize — предел размера JSON-тела запроса.
const maxBodySize = 1 << 20

// APIHandler — основной обработчик API брокера.
type APIHandler struct {
	auth       *service.AuthService
	groups     *service.GroupService
	groupRoles *service.GroupRoleService
	users      *service.UserService
	clients    *service.ClientService
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	auth *service.AuthService,
	groups *service.GroupService,
	groupRoles *service.GroupRoleService,
	users *service.UserService,
	clients *service.ClientService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		auth:       auth,
		groups:     groups,
		groupRoles: groupRoles,
		users:      users,
		clients:    clients,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. false — ответ об ошибке уже записан.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			apierrors.InvalidBody(w, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		default:
			apierrors.InvalidBody(w, "request body is not valid JSON")
		}
		return false
	}
	return true
}

// tenant возвращает тенант из пути запроса.
func tenant(r *http.Request) string {
	return chi.URLParam(r, middleware.TenantParam)
}

// fail записывает обработанный отказ сервиса.
// Отказы недоступности IdP логируются на WARN, остальные на DEBUG.
func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, e result.Error) {
	level := slog.LevelDebug
	if e.Kind == result.KindUnreachable {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "Запрос отклонён",
		slog.String("tenant", tenant(r)),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("code", e.Code),
		slog.String("kind", string(e.Kind)),
		slog.String("description", e.Description),
	)
	apierrors.Failure(w, e)
}

// respond записывает значение успешного результата через project
// или отказ.
func respond[T, R any](h *APIHandler, w http.ResponseWriter, r *http.Request, res result.Result[T], status int, project func(T) R) {
	out := result.Map(res, project)
	if !out.IsSuccess() {
		h.fail(w, r, out.Err())
		return
	}
	writeJSON(w, status, out.Value())
}

// respondEmpty записывает 204 для успешного результата без значения.
func respondEmpty[T any](h *APIHandler, w http.ResponseWriter, r *http.Request, res result.Result[T]) {
	if !res.IsSuccess() {
		h.fail(w, r, res.Err())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
