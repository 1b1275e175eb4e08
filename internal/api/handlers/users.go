// users.go — обработчики пользователей realm тенанта.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/authbroker/internal/api/errors"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/service"
)

// ListUsers — GET /users?first=&max=&search=.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.UserFilter{Search: q.Get("search")}

	var err error
	if filter.First, err = queryInt(q.Get("first")); err != nil {
		apierrors.InvalidBody(w, "first must be an integer")
		return
	}
	if filter.Max, err = queryInt(q.Get("max")); err != nil {
		apierrors.InvalidBody(w, "max must be an integer")
		return
	}

	res := h.users.ListUsers(r.Context(), service.ListUsersQuery{Tenant: tenant(r), Filter: filter})
	respond(h, w, r, res, http.StatusOK, mapUsers)
}

// queryInt разбирает необязательный числовой параметр запроса.
func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// GetUser — GET /users/{username}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	res := h.users.GetUser(r.Context(), tenant(r), chi.URLParam(r, "username"))
	respond(h, w, r, res, http.StatusOK, mapUser)
}

// CreateUser — POST /user.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.users.CreateUser(r.Context(), service.CreateUserCommand{
		Tenant: tenant(r),
		User: model.NewUser{
			Username:   req.Username,
			Email:      req.Email,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Password:   req.Password,
			Attributes: req.Attributes,
		},
	})
	respond(h, w, r, res, http.StatusCreated, mapUser)
}

// DeleteUser — DELETE /user/{id}.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	res := h.users.DeleteUser(r.Context(), service.UserCommand{Tenant: tenant(r), UserID: chi.URLParam(r, "id")})
	respondEmpty(h, w, r, res)
}

// ResetPassword — PUT /user/{id}/password.
func (h *APIHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.users.ResetPassword(r.Context(), service.ResetPasswordCommand{
		Tenant:   tenant(r),
		UserID:   chi.URLParam(r, "id"),
		Password: req.Password,
	})
	respondEmpty(h, w, r, res)
}

// SendEmailVerification — POST /user/{id}/email-verification.
func (h *APIHandler) SendEmailVerification(w http.ResponseWriter, r *http.Request) {
	res := h.users.SendEmailVerification(r.Context(), service.UserCommand{Tenant: tenant(r), UserID: chi.URLParam(r, "id")})
	respondEmpty(h, w, r, res)
}
