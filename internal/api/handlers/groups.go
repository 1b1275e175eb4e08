// groups.go — обработчики групп, их участников и привязок ролей.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/authbroker/internal/service"
)

// ListGroups — GET /groups.
func (h *APIHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, h.groups.ListGroups(r.Context(), tenant(r)), http.StatusOK, mapGroups)
}

// CreateGroup — POST /group.
func (h *APIHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.groups.CreateGroup(r.Context(), service.CreateGroupCommand{Tenant: tenant(r), Name: req.Name})
	respond(h, w, r, res, http.StatusCreated, mapGroup)
}

// DeleteGroup — DELETE /group/{id}.
func (h *APIHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	res := h.groups.DeleteGroup(r.Context(), service.DeleteGroupCommand{
		Tenant:  tenant(r),
		GroupID: chi.URLParam(r, "id"),
	})
	respondEmpty(h, w, r, res)
}

// GroupUsers — GET /group/{id}/users.
func (h *APIHandler) GroupUsers(w http.ResponseWriter, r *http.Request) {
	res := h.groups.GroupUsers(r.Context(), tenant(r), chi.URLParam(r, "id"))
	respond(h, w, r, res, http.StatusOK, mapUsers)
}

// AddUserToGroup — POST /group/{id}/users/{userId}.
func (h *APIHandler) AddUserToGroup(w http.ResponseWriter, r *http.Request) {
	respondEmpty(h, w, r, h.groups.AddUserToGroup(r.Context(), memberCommand(r)))
}

// RemoveUserFromGroup — DELETE /group/{id}/users/{userId}.
func (h *APIHandler) RemoveUserFromGroup(w http.ResponseWriter, r *http.Request) {
	respondEmpty(h, w, r, h.groups.RemoveUserFromGroup(r.Context(), memberCommand(r)))
}

func memberCommand(r *http.Request) service.GroupMemberCommand {
	return service.GroupMemberCommand{
		Tenant:  tenant(r),
		GroupID: chi.URLParam(r, "id"),
		UserID:  chi.URLParam(r, "userId"),
	}
}

// GroupRoles — GET /group/{id}/roles.
func (h *APIHandler) GroupRoles(w http.ResponseWriter, r *http.Request) {
	res := h.groupRoles.GroupRoles(r.Context(), tenant(r), chi.URLParam(r, "id"))
	respond(h, w, r, res, http.StatusOK, mapClientRoles)
}

// AddRoleToGroup — POST /group/{id}/roles.
func (h *APIHandler) AddRoleToGroup(w http.ResponseWriter, r *http.Request) {
	cmd, ok := roleBindingCommand(w, r)
	if !ok {
		return
	}
	respondEmpty(h, w, r, h.groupRoles.AddRoleToGroup(r.Context(), cmd))
}

// RemoveRoleFromGroup — DELETE /group/{id}/roles.
func (h *APIHandler) RemoveRoleFromGroup(w http.ResponseWriter, r *http.Request) {
	cmd, ok := roleBindingCommand(w, r)
	if !ok {
		return
	}
	respondEmpty(h, w, r, h.groupRoles.RemoveRoleFromGroup(r.Context(), cmd))
}

func roleBindingCommand(w http.ResponseWriter, r *http.Request) (service.RoleBindingCommand, bool) {
	var req groupRoleRequest
	if !decodeJSON(w, r, &req) {
		return service.RoleBindingCommand{}, false
	}
	return service.RoleBindingCommand{
		Tenant:   tenant(r),
		GroupID:  chi.URLParam(r, "id"),
		ClientID: req.ClientID,
		RoleID:   req.RoleID,
	}, true
}
