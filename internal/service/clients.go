// clients.go — клиенты realm и их роли.
package service

import (
	"context"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/idp"
	"github.com/bigkaa/authbroker/internal/result"
)

// CreateRoleCommand — создание роли клиента.
type CreateRoleCommand struct {
	Tenant      string
	ClientID    string
	Name        string
	Description string
}

// ClientService — обработчики клиентов и ролей.
type ClientService struct {
	clients *idp.ClientRepository
	roles   *idp.RoleRepository
}

// NewClientService создаёт сервис клиентов.
func NewClientService(clients *idp.ClientRepository, roles *idp.RoleRepository) *ClientService {
	return &ClientService{clients: clients, roles: roles}
}

// ListClients возвращает клиентов realm.
func (s *ClientService) ListClients(ctx context.Context, tenant string) result.Result[[]model.Client] {
	if e, ok := validate(required("tenant", tenant)); !ok {
		return result.Failure[[]model.Client](e)
	}
	return s.clients.GetAll(ctx, tenant)
}

// ClientRoles возвращает роли клиента.
func (s *ClientService) ClientRoles(ctx context.Context, tenant, clientID string) result.Result[[]model.Role] {
	if e, ok := validate(required("tenant", tenant), id("clientId", clientID)); !ok {
		return result.Failure[[]model.Role](e)
	}
	return s.roles.GetRolesForClient(ctx, tenant, clientID)
}

// CreateRole создаёт роль клиента.
func (s *ClientService) CreateRole(ctx context.Context, cmd CreateRoleCommand) result.Empty {
	if e, ok := validate(
		required("tenant", cmd.Tenant),
		id("clientId", cmd.ClientID),
		required("name", cmd.Name),
		maxLen("name", cmd.Name, maxNameLen),
	); !ok {
		return result.Fail(e)
	}
	return s.roles.AddRole(ctx, cmd.Tenant, cmd.ClientID, cmd.Name, cmd.Description)
}
