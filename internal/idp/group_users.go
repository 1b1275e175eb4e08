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

// GroupUsersRepository — членство пользователей в группах.
type GroupUsersRepository struct {
	gw     Gateway
	logger *slog.Logger
}

// NewGroupUsersRepository создаёт репозиторий членства.
func NewGroupUsersRepository(gw Gateway, logger *slog.Logger) *GroupUsersRepository {
	return &GroupUsersRepository{
		gw:     gw,
		logger: logger.With(slog.String("component", "group_users_repository")),
	}
}

// GetUsersInGroup возвращает участников группы.
func (r *GroupUsersRepository) GetUsersInGroup(ctx context.Context, tenant, groupID string) result.Result[[]model.User] {
	var members []keycloak.UserRepresentation
	path := "/groups/" + esc(groupID) + "/members"
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, path, nil, &members); err != nil {
		base := errs.GroupUsers
		if keycloak.IsStatus(err, http.StatusNotFound) {
			base = errs.GroupNotFound
		}
		return result.Failure[[]model.User](failure(base, err))
	}

	out := make([]model.User, 0, len(members))
	for i := range members {
		out = append(out, toUser(&members[i]))
	}
	return result.Success(out)
}

// AddUserToGroup добавляет пользователя в группу.
func (r *GroupUsersRepository) AddUserToGroup(ctx context.Context, tenant, userID, groupID string) result.Empty {
	return r.membership(ctx, http.MethodPut, tenant, userID, groupID)
}

// RemoveUserFromGroup исключает пользователя из группы.
func (r *GroupUsersRepository) RemoveUserFromGroup(ctx context.Context, tenant, userID, groupID string) result.Empty {
	return r.membership(ctx, http.MethodDelete, tenant, userID, groupID)
}

func (r *GroupUsersRepository) membership(ctx context.Context, method, tenant, userID, groupID string) result.Empty {
	path := "/users/" + esc(userID) + "/groups/" + esc(groupID)
	if _, err := r.gw.Admin(ctx, tenant, method, path, nil, nil); err != nil {
		return result.Fail(failure(errs.GroupUsers, err))
	}

	r.logger.Info("Членство в группе изменено",
		slog.String("tenant", tenant),
		slog.String("method", method),
		slog.String("user_id", userID),
		slog.String("group_id", groupID),
	)
	return result.Ok()
}
