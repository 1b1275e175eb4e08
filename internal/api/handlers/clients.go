// clients.go — обработчики клиентов realm и их ролей.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/authbroker/internal/service"
)

// ListClients — GET /clients.
func (h *APIHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, h.clients.ListClients(r.Context(), tenant(r)), http.StatusOK, mapClients)
}

// ClientRoles — GET /clients/{clientId}/roles.
func (h *APIHandler) ClientRoles(w http.ResponseWriter, r *http.Request) {
	res := h.clients.ClientRoles(r.Context(), tenant(r), chi.URLParam(r, "clientId"))
	respond(h, w, r, res, http.StatusOK, mapRoles)
}

// CreateRole — POST /clients/{clientId}/roles.
func (h *APIHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.clients.CreateRole(r.Context(), service.CreateRoleCommand{
		Tenant:      tenant(r),
		ClientID:    chi.URLParam(r, "clientId"),
		Name:        req.Name,
		Description: req.Description,
	})
	respondEmpty(h, w, r, res)
}
