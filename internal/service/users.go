// users.go — пользователи realm тенанта.
// Создание пользователя — три шага: создание без пароля,
// поиск созданной записи по username, назначение постоянного пароля.
package service

import (
	"context"
	"log/slog"
	"net/mail"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/idp"
	"github.com/bigkaa/authbroker/internal/result"
)

// maxPageSize — предел размера страницы выборки пользователей.
const maxPageSize = 500

// ListUsersQuery — выборка пользователей.
type ListUsersQuery struct {
	Tenant string
	Filter model.UserFilter
}

// CreateUserCommand — создание пользователя с паролем.
type CreateUserCommand struct {
	Tenant string
	User   model.NewUser
}

// UserCommand — операция над существующим пользователем.
type UserCommand struct {
	Tenant string
	UserID string
}

// ResetPasswordCommand — назначение нового пароля.
type ResetPasswordCommand struct {
	Tenant   string
	UserID   string
	Password string
}

// UserService — обработчики пользователей.
type UserService struct {
	users  *idp.UserRepository
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users *idp.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// ListUsers возвращает страницу пользователей.
func (s *UserService) ListUsers(ctx context.Context, q ListUsersQuery) result.Result[[]model.User] {
	if e, ok := validate(
		required("tenant", q.Tenant),
		rule{ok: q.Filter.First >= 0, reason: "first must not be negative"},
		rule{ok: q.Filter.Max >= 0 && q.Filter.Max <= maxPageSize, reason: "max must be between 0 and 500"},
	); !ok {
		return result.Failure[[]model.User](e)
	}
	return s.users.GetAll(ctx, q.Tenant, q.Filter)
}

// GetUser возвращает пользователя по username.
func (s *UserService) GetUser(ctx context.Context, tenant, username string) result.Result[model.User] {
	if e, ok := validate(required("tenant", tenant), required("username", username)); !ok {
		return result.Failure[model.User](e)
	}
	return s.users.Get(ctx, tenant, username)
}

// CreateUser создаёт пользователя и назначает ему пароль.
// Если пароль отклонён политикой realm, созданная запись удаляется.
func (s *UserService) CreateUser(ctx context.Context, cmd CreateUserCommand) result.Result[model.User] {
	u := cmd.User
	if e, ok := validate(
		required("tenant", cmd.Tenant),
		required("username", u.Username),
		required("password", u.Password),
		rule{ok: u.Email == "" || validEmail(u.Email), reason: "email is invalid"},
	); !ok {
		return result.Failure[model.User](e)
	}

	created := s.users.Create(ctx, cmd.Tenant, u)
	if !created.IsSuccess() {
		return result.Failure[model.User](created.Err())
	}

	found := s.users.Get(ctx, cmd.Tenant, u.Username)
	if !found.IsSuccess() {
		s.logger.Warn("Созданный пользователь не найден",
			slog.String("tenant", cmd.Tenant),
			slog.String("username", u.Username),
			slog.String("error", found.Err().Error()),
		)
		return result.Failure[model.User](errs.UserCreation.WithTechnical(found.Err().Description))
	}
	user := found.Value()

	if r := s.users.ResetPassword(ctx, cmd.Tenant, user.ID, u.Password); !r.IsSuccess() {
		if del := s.users.Delete(context.WithoutCancel(ctx), cmd.Tenant, user.ID); !del.IsSuccess() {
			s.logger.Error("Не удалось удалить пользователя без пароля",
				slog.String("tenant", cmd.Tenant),
				slog.String("user_id", user.ID),
				slog.String("error", del.Err().Error()),
			)
		}
		return result.Failure[model.User](r.Err())
	}

	return result.Success(user)
}

// DeleteUser удаляет пользователя.
func (s *UserService) DeleteUser(ctx context.Context, cmd UserCommand) result.Empty {
	if e, ok := validate(required("tenant", cmd.Tenant), id("userId", cmd.UserID)); !ok {
		return result.Fail(e)
	}
	return s.users.Delete(ctx, cmd.Tenant, cmd.UserID)
}

// ResetPassword назначает пользователю новый постоянный пароль.
func (s *UserService) ResetPassword(ctx context.Context, cmd ResetPasswordCommand) result.Empty {
	if e, ok := validate(
		required("tenant", cmd.Tenant),
		id("userId", cmd.UserID),
		required("password", cmd.Password),
	); !ok {
		return result.Fail(e)
	}
	return s.users.ResetPassword(ctx, cmd.Tenant, cmd.UserID, cmd.Password)
}

// SendEmailVerification отправляет письмо подтверждения email.
func (s *UserService) SendEmailVerification(ctx context.Context, cmd UserCommand) result.Empty {
	if e, ok := validate(required("tenant", cmd.Tenant), id("userId", cmd.UserID)); !ok {
		return result.Fail(e)
	}
	return s.users.SendEmailVerification(ctx, cmd.Tenant, cmd.UserID)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
