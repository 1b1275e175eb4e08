package idp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/keycloak"
	"github.com/bigkaa/authbroker/internal/result"
)

// defaultPageSize — размер страницы выборки пользователей по умолчанию.
const defaultPageSize = 100

// UserRepository — пользователи realm тенанта.
type UserRepository struct {
	gw     Gateway
	logger *slog.Logger
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(gw Gateway, logger *slog.Logger) *UserRepository {
	return &UserRepository{
		gw:     gw,
		logger: logger.With(slog.String("component", "user_repository")),
	}
}

// GetAll возвращает страницу пользователей realm.
func (r *UserRepository) GetAll(ctx context.Context, tenant string, filter model.UserFilter) result.Result[[]model.User] {
	q := url.Values{}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	q.Set("first", strconv.Itoa(max(filter.First, 0)))
	size := filter.Max
	if size <= 0 {
		size = defaultPageSize
	}
	q.Set("max", strconv.Itoa(size))

	var users []keycloak.UserRepresentation
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, "/users?"+q.Encode(), nil, &users); err != nil {
		return result.Failure[[]model.User](failure(errs.GetAllUsers, err))
	}

	out := make([]model.User, 0, len(users))
	for i := range users {
		out = append(out, toUser(&users[i]))
	}
	return result.Success(out)
}

// Get возвращает пользователя по точному username.
func (r *UserRepository) Get(ctx context.Context, tenant, username string) result.Result[model.User] {
	q := url.Values{"username": {username}, "exact": {"true"}}

	var users []keycloak.UserRepresentation
	if _, err := r.gw.Admin(ctx, tenant, http.MethodGet, "/users?"+q.Encode(), nil, &users); err != nil {
		return result.Failure[model.User](failure(errs.GetAllUsers, err))
	}
	if len(users) == 0 {
		return result.Failure[model.User](errs.UserNotFound.WithTechnical("(" + username + ")"))
	}
	return result.Success(toUser(&users[0]))
}

// Create создаёт пользователя без пароля и возвращает его ID.
// Пароль назначается отдельно через ResetPassword.
func (r *UserRepository) Create(ctx context.Context, tenant string, u model.NewUser) result.Result[string] {
	resp, err := r.gw.Admin(ctx, tenant, http.MethodPost, "/users", keycloak.UserRepresentation{
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Enabled:    true,
		Attributes: u.Attributes,
	}, nil)
	if err != nil {
		return result.Failure[string](failure(errs.UserCreation, err))
	}

	id := resp.CreatedID()
	r.logger.Info("Пользователь создан",
		slog.String("tenant", tenant),
		slog.String("user_id", id),
		slog.String("username", u.Username),
	)
	return result.Success(id)
}

// Delete удаляет пользователя.
func (r *UserRepository) Delete(ctx context.Context, tenant, userID string) result.Empty {
	if _, err := r.gw.Admin(ctx, tenant, http.MethodDelete, "/users/"+esc(userID), nil, nil); err != nil {
		return result.Fail(failure(errs.DeletionUser, err))
	}
	r.logger.Info("Пользователь удалён",
		slog.String("tenant", tenant),
		slog.String("user_id", userID),
	)
	return result.Ok()
}

// ResetPassword назначает постоянный пароль. Нарушение политики паролей
// realm — WrongPasswordDefinition.
func (r *UserRepository) ResetPassword(ctx context.Context, tenant, userID, password string) result.Empty {
	path := "/users/" + esc(userID) + "/reset-password"
	cred := keycloak.CredentialRepresentation{Type: "password", Value: password, Temporary: false}
	if _, err := r.gw.Admin(ctx, tenant, http.MethodPut, path, cred, nil); err != nil {
		return result.Fail(failure(errs.WrongPasswordDefinition, err))
	}
	return result.Ok()
}

// SendEmailVerification отправляет письмо подтверждения email.
func (r *UserRepository) SendEmailVerification(ctx context.Context, tenant, userID string) result.Empty {
	path := "/users/" + esc(userID) + "/send-verify-email"
	if _, err := r.gw.Admin(ctx, tenant, http.MethodPut, path, nil, nil); err != nil {
		return result.Fail(failure(errs.EmailVerification, err))
	}
	return result.Ok()
}
