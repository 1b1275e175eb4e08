package idp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/keycloak"
	"github.com/bigkaa/authbroker/internal/result"
)

// ClientRepository — клиенты (applications) realm.
type ClientRepository struct {
	gw Gateway
}

// NewClientRepository создаёт репозиторий клиентов.
func NewClientRepository(gw Gateway) *ClientRepository {
	return &ClientRepository{gw: gw}
}

// GetAll возвращает клиентов realm.
func (r *ClientRepository) GetAll(ctx context.Context, tenant string) result.Result[[]model.Client] {
	var clients []keycloak.ClientRepresentation
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, "/clients", nil, &clients); err != nil {
		return result.Failure[[]model.Client](failure(errs.GetClients, err))
	}

	out := make([]model.Client, 0, len(clients))
	for _, c := range clients {
		out = append(out, model.Client{ID: c.ID, ClientID: c.ClientID, Enabled: c.Enabled})
	}
	return result.Success(out)
}

// RoleRepository — роли клиентов.
type RoleRepository struct {
	gw     Gateway
	logger *slog.Logger
}

// NewRoleRepository создаёт репозиторий ролей.
func NewRoleRepository(gw Gateway, logger *slog.Logger) *RoleRepository {
	return &RoleRepository{
		gw:     gw,
		logger: logger.With(slog.String("component", "role_repository")),
	}
}

// GetRolesForClient возвращает роли клиента по его внутреннему ID.
func (r *RoleRepository) GetRolesForClient(ctx context.Context, tenant, clientID string) result.Result[[]model.Role] {
	var roles []keycloak.RoleRepresentation
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, "/clients/"+esc(clientID)+"/roles", nil, &roles); err != nil {
		return result.Failure[[]model.Role](failure(errs.GetRoles, err))
	}

	out := make([]model.Role, 0, len(roles))
	for i := range roles {
		out = append(out, toRole(&roles[i]))
	}
	return result.Success(out)
}

// AddRole создаёт роль клиента.
func (r *RoleRepository) AddRole(ctx context.Context, tenant, clientID, name, description string) result.Empty {
	role := keycloak.RoleRepresentation{Name: name, Description: description, ClientRole: true}
	if _, err := r.gw.Admin(ctx, tenant, http.MethodPost, "/clients/"+esc(clientID)+"/roles", role, nil); err != nil {
		return result.Fail(failure(errs.RoleCreation, err))
	}

	r.logger.Info("Роль клиента создана",
		slog.String("tenant", tenant),
		slog.String("client_id", clientID),
		slog.String("role", name),
	)
	return result.Ok()
}
