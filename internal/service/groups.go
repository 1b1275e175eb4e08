// groups.go — группы realm и членство пользователей в группах.
package service

import (
	"context"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/idp"
	"github.com/bigkaa/authbroker/internal/result"
)

// maxNameLen — предел длины имени группы или роли.
const maxNameLen = 255

// CreateGroupCommand — создание группы верхнего уровня.
type CreateGroupCommand struct {
	Tenant string
	Name   string
}

// DeleteGroupCommand — удаление группы.
type DeleteGroupCommand struct {
	Tenant  string
	GroupID string
}

// GroupMemberCommand — добавление или исключение пользователя из группы.
type GroupMemberCommand struct {
	Tenant  string
	GroupID string
	UserID  string
}

// GroupService — обработчики групп.
type GroupService struct {
	groups  *idp.GroupRepository
	members *idp.GroupUsersRepository
}

// NewGroupService создаёт сервис групп.
func NewGroupService(groups *idp.GroupRepository, members *idp.GroupUsersRepository) *GroupService {
	return &GroupService{groups: groups, members: members}
}

// ListGroups возвращает группы тенанта.
func (s *GroupService) ListGroups(ctx context.Context, tenant string) result.Result[[]model.Group] {
	if e, ok := validate(required("tenant", tenant)); !ok {
		return result.Failure[[]model.Group](e)
	}
	return s.groups.GetAll(ctx, tenant)
}

// CreateGroup создаёт группу.
func (s *GroupService) CreateGroup(ctx context.Context, cmd CreateGroupCommand) result.Result[model.Group] {
	if e, ok := validate(
		required("tenant", cmd.Tenant),
		required("name", cmd.Name),
		maxLen("name", cmd.Name, maxNameLen),
	); !ok {
		return result.Failure[model.Group](e)
	}
	return s.groups.Create(ctx, cmd.Tenant, cmd.Name)
}

// DeleteGroup удаляет группу.
func (s *GroupService) DeleteGroup(ctx context.Context, cmd DeleteGroupCommand) result.Empty {
	if e, ok := validate(required("tenant", cmd.Tenant), id("groupId", cmd.GroupID)); !ok {
		return result.Fail(e)
	}
	return s.groups.Delete(ctx, cmd.Tenant, cmd.GroupID)
}

// GroupUsers возвращает участников группы.
func (s *GroupService) GroupUsers(ctx context.Context, tenant, groupID string) result.Result[[]model.User] {
	if e, ok := validate(required("tenant", tenant), id("groupId", groupID)); !ok {
		return result.Failure[[]model.User](e)
	}
	return s.members.GetUsersInGroup(ctx, tenant, groupID)
}

// AddUserToGroup добавляет пользователя в группу.
func (s *GroupService) AddUserToGroup(ctx context.Context, cmd GroupMemberCommand) result.Empty {
	if e, ok := cmd.validate(); !ok {
		return result.Fail(e)
	}
	return s.members.AddUserToGroup(ctx, cmd.Tenant, cmd.UserID, cmd.GroupID)
}

// RemoveUserFromGroup исключает пользователя из группы.
func (s *GroupService) RemoveUserFromGroup(ctx context.Context, cmd GroupMemberCommand) result.Empty {
	if e, ok := cmd.validate(); !ok {
		return result.Fail(e)
	}
	return s.members.RemoveUserFromGroup(ctx, cmd.Tenant, cmd.UserID, cmd.GroupID)
}

func (cmd GroupMemberCommand) validate() (result.Error, bool) {
	return validate(required("tenant", cmd.Tenant), id("groupId", cmd.GroupID), id("userId", cmd.UserID))
}
