package idp

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/keycloak"
	"github.com/bigkaa/authbroker/internal/result"
)

// GroupRolesRepository — привязки ролей клиентов к группам.
// Привязки не кэшируются: каждое чтение идёт в IdP.
type GroupRolesRepository struct {
	gw     Gateway
	logger *slog.Logger
}

// NewGroupRolesRepository создаёт репозиторий привязок.
func NewGroupRolesRepository(gw Gateway, logger *slog.Logger) *GroupRolesRepository {
	return &GroupRolesRepository{
		gw:     gw,
		logger: logger.With(slog.String("component", "group_roles_repository")),
	}
}

// GetGroupRoles возвращает роли клиентов, привязанные к группе.
func (r *GroupRolesRepository) GetGroupRoles(ctx context.Context, tenant, groupID string) result.Result[[]model.ClientRoles] {
	var mappings keycloak.GroupRoleMappings
	path := "/groups/" + esc(groupID) + "/role-mappings"
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, path, nil, &mappings); err != nil {
		base := errs.GetGroupRoles
		if keycloak.IsStatus(err, http.StatusNotFound) {
			base = errs.GroupNotFound
		}
		return result.Failure[[]model.ClientRoles](failure(base, err))
	}

	out := make([]model.ClientRoles, 0, len(mappings.ClientMappings))
	for _, cm := range mappings.ClientMappings {
		roles := make([]model.Role, 0, len(cm.Mappings))
		for i := range cm.Mappings {
			roles = append(roles, toRole(&cm.Mappings[i]))
		}
		out = append(out, model.ClientRoles{ClientID: cm.ID, Client: cm.Client, Roles: roles})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return result.Success(out)
}

// AddRoleToGroup привязывает роль клиента к группе.
// Существование группы и роли проверяет вызывающий.
func (r *GroupRolesRepository) AddRoleToGroup(ctx context.Context, b model.GroupRoleBinding) result.Empty {
	return r.mapping(ctx, http.MethodPost, b, errs.AddingRoleToGroup)
}

// RemoveRoleFromGroup отвязывает роль клиента от группы.
// Существование группы и роли проверяет вызывающий.
func (r *GroupRolesRepository) RemoveRoleFromGroup(ctx context.Context, b model.GroupRoleBinding) result.Empty {
	return r.mapping(ctx, http.MethodDelete, b, errs.RemovingRoleFromGroup)
}

func (r *GroupRolesRepository) mapping(ctx context.Context, method string, b model.GroupRoleBinding, code result.Error) result.Empty {
	path := "/groups/" + esc(b.GroupID) + "/role-mappings/clients/" + esc(b.ClientID)
	roles := []keycloak.RoleRepresentation{{ID: b.RoleID, Name: b.RoleName, ClientRole: true, ContainerID: b.ClientID}}
	if _, err := r.gw.Admin(ctx, b.Tenant, method, path, roles, nil); err != nil {
		return result.Fail(composite(code, err))
	}

	r.logger.Info("Привязка роли изменена",
		slog.String("tenant", b.Tenant),
		slog.String("method", method),
		slog.String("group_id", b.GroupID),
		slog.String("client_id", b.ClientID),
		slog.String("role", b.RoleName),
	)
	return result.Ok()
}
