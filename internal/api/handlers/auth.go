// auth.go — обработчики /api/v1/{tenant}/auth endpoints.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/authbroker/internal/api/errors"
	"github.com/bigkaa/authbroker/internal/api/middleware"
	"github.com/bigkaa/authbroker/internal/service"
)

// Login — POST /auth/login. Публичный, с ограничением частоты.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.auth.Login(r.Context(), service.LoginCommand{
		Tenant:   tenant(r),
		Username: req.Username,
		Password: req.Password,
	})
	respond(h, w, r, res, http.StatusOK, mapToken)
}

// Logout — POST /auth/logout. Отзывает refresh token и сессию.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.auth.Signout(r.Context(), service.SignoutCommand{
		Tenant:       tenant(r),
		RefreshToken: req.RefreshToken,
	})
	respondEmpty(h, w, r, res)
}

// RefreshToken — PUT /auth/tokens/refresh.
func (h *APIHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.auth.Refresh(r.Context(), service.RefreshCommand{
		Tenant:       tenant(r),
		RefreshToken: req.RefreshToken,
	})
	respond(h, w, r, res, http.StatusOK, mapToken)
}

// DecodeToken — GET /auth/decode. Claims проверенного bearer token.
func (h *APIHandler) DecodeToken(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Request is not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, mapClaims(claims))
}
