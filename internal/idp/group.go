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

// GroupRepository — группы realm тенанта.
type GroupRepository struct {
	gw     Gateway
	logger *slog.Logger
}

// NewGroupRepository создаёт репозиторий групп.
func NewGroupRepository(gw Gateway, logger *slog.Logger) *GroupRepository {
	return &GroupRepository{
		gw:     gw,
		logger: logger.With(slog.String("component", "group_repository")),
	}
}

// GetAll возвращает группы realm. Пустой список — Success.
func (r *GroupRepository) GetAll(ctx context.Context, tenant string) result.Result[[]model.Group] {
	var groups []keycloak.GroupRepresentation
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, "/groups", nil, &groups); err != nil {
		return result.Failure[[]model.Group](failure(errs.GetAllGroups, err))
	}

	out := make([]model.Group, 0, len(groups))
	for i := range groups {
		out = append(out, toGroup(&groups[i]))
	}
	return result.Success(out)
}

// Create создаёт группу верхнего уровня. Имя уже занято — GroupAlreadyExists.
func (r *GroupRepository) Create(ctx context.Context, tenant, name string) result.Result[model.Group] {
	resp, err := r.gw.Admin(ctx, tenant, http.MethodPost, "/groups",
		keycloak.GroupRepresentation{Name: name}, nil)
	if err != nil {
		base := errs.CreationGroup
		if keycloak.IsStatus(err, http.StatusConflict) {
			base = errs.GroupAlreadyExists
		}
		return result.Failure[model.Group](failure(base, err))
	}

	group := model.Group{ID: resp.CreatedID(), Name: name, Path: "/" + name}
	r.logger.Info("Группа создана",
		slog.String("tenant", tenant),
		slog.String("group_id", group.ID),
		slog.String("name", name),
	)
	return result.Success(group)
}

// Delete удаляет группу. Отсутствующая группа — GroupNotFound.
func (r *GroupRepository) Delete(ctx context.Context, tenant, groupID string) result.Empty {
	if _, err := r.gw.Admin(ctx, tenant, http.MethodDelete, "/groups/"+esc(groupID), nil, nil); err != nil {
		base := errs.DeletionGroup
		if keycloak.IsStatus(err, http.StatusNotFound) {
			base = errs.GroupNotFound
		}
		return result.Fail(failure(base, err))
	}

	r.logger.Info("Группа удалена",
		slog.String("tenant", tenant),
		slog.String("group_id", groupID),
	)
	return result.Ok()
}
