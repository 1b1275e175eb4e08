// group_roles.go — привязка ролей клиентов к группам.
//
// Мутация привязки — конвейер предусловий:
//  1. список групп тенанта содержит группу;
//  2. только после этого — список ролей клиента содержит роль;
//  3. привязка или отвязка.
//
// Отказ любого шага прерывает конвейер. Внутри шаг именуется и логируется,
// наружу уходит один код операции.
package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/idp"
	"github.com/bigkaa/authbroker/internal/result"
)

// Stage — шаг конвейера привязки.
type Stage string

const (
	StageGroupsUnavailable Stage = "groups-unavailable"
	StageGroupNotFound     Stage = "group-not-found"
	StageRolesUnavailable  Stage = "roles-unavailable"
	StageRoleNotFound      Stage = "role-not-found"
	StageBindFailed        Stage = "bind-failed"
	StageUnbindFailed      Stage = "unbind-failed"
)

// RoleBindingCommand — привязка или отвязка роли клиента от группы.
type RoleBindingCommand struct {
	Tenant   string
	GroupID  string
	ClientID string
	RoleID   string
}

// GroupRoleService — обработчики привязок ролей.
type GroupRoleService struct {
	groups   *idp.GroupRepository
	roles    *idp.RoleRepository
	bindings *idp.GroupRolesRepository
	logger   *slog.Logger
}

// NewGroupRoleService создаёт сервис привязок.
func NewGroupRoleService(
	groups *idp.GroupRepository,
	roles *idp.RoleRepository,
	bindings *idp.GroupRolesRepository,
	logger *slog.Logger,
) *GroupRoleService {
	return &GroupRoleService{
		groups:   groups,
		roles:    roles,
		bindings: bindings,
		logger:   logger.With(slog.String("component", "group_role_service")),
	}
}

// GroupRoles возвращает роли клиентов, привязанные к группе.
func (s *GroupRoleService) GroupRoles(ctx context.Context, tenant, groupID string) result.Result[[]model.ClientRoles] {
	if e, ok := validate(required("tenant", tenant), id("groupId", groupID)); !ok {
		return result.Failure[[]model.ClientRoles](e)
	}
	return s.bindings.GetGroupRoles(ctx, tenant, groupID)
}

// AddRoleToGroup привязывает роль клиента к группе.
func (s *GroupRoleService) AddRoleToGroup(ctx context.Context, cmd RoleBindingCommand) result.Result[bool] {
	return s.change(ctx, cmd, errs.AddingRoleToGroup, StageBindFailed, s.bindings.AddRoleToGroup)
}

// RemoveRoleFromGroup отвязывает роль клиента от группы.
func (s *GroupRoleService) RemoveRoleFromGroup(ctx context.Context, cmd RoleBindingCommand) result.Result[bool] {
	return s.change(ctx, cmd, errs.RemovingRoleFromGroup, StageUnbindFailed, s.bindings.RemoveRoleFromGroup)
}

func (s *GroupRoleService) change(
	ctx context.Context,
	cmd RoleBindingCommand,
	code result.Error,
	mutateStage Stage,
	mutate func(context.Context, model.GroupRoleBinding) result.Empty,
) result.Result[bool] {
	if e, ok := validate(
		required("tenant", cmd.Tenant),
		id("groupId", cmd.GroupID),
		id("clientId", cmd.ClientID),
		id("roleId", cmd.RoleID),
	); !ok {
		return result.Failure[bool](e)
	}

	binding, stage, cause := s.resolve(ctx, cmd)
	if stage == "" {
		r := mutate(ctx, binding)
		if r.IsSuccess() {
			return result.Success(true)
		}
		stage, cause = mutateStage, r.Err()
	}

	attrs := []any{
		slog.String("tenant", cmd.Tenant),
		slog.String("stage", string(stage)),
		slog.String("group_id", cmd.GroupID),
		slog.String("client_id", cmd.ClientID),
		slog.String("role_id", cmd.RoleID),
	}
	if cause.Code != "" {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	s.logger.Warn("Конвейер привязки роли прерван", attrs...)

	e := code.WithTechnical(string(stage))
	if cause.Code != "" {
		e = code.WithKind(cause.Kind).WithTechnical(string(stage) + ": " + cause.Description)
	}
	return result.Failure[bool](e)
}

// resolve проверяет существование группы, затем роли клиента.
// Пустой Stage — обе проверки пройдены.
func (s *GroupRoleService) resolve(ctx context.Context, cmd RoleBindingCommand) (model.GroupRoleBinding, Stage, result.Error) {
	groups := s.groups.GetAll(ctx, cmd.Tenant)
	if !groups.IsSuccess() {
		return model.GroupRoleBinding{}, StageGroupsUnavailable, groups.Err()
	}
	if !slices.ContainsFunc(groups.Value(), func(g model.Group) bool { return g.ID == cmd.GroupID }) {
		return model.GroupRoleBinding{}, StageGroupNotFound, result.Error{}
	}

	roles := s.roles.GetRolesForClient(ctx, cmd.Tenant, cmd.ClientID)
	if !roles.IsSuccess() {
		return model.GroupRoleBinding{}, StageRolesUnavailable, roles.Err()
	}
	idx := slices.IndexFunc(roles.Value(), func(r model.Role) bool { return r.ID == cmd.RoleID })
	if idx < 0 {
		return model.GroupRoleBinding{}, StageRoleNotFound, result.Error{}
	}

	return model.GroupRoleBinding{
		Tenant:   cmd.Tenant,
		ClientID: cmd.ClientID,
		GroupID:  cmd.GroupID,
		RoleID:   cmd.RoleID,
		RoleName: roles.Value()[idx].Name,
	}, "", result.Error{}
}
