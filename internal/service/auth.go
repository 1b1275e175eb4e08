// auth.go — вход, обновление токенов и выход пользователей тенанта.
package service

import (
	"context"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/idp"
	"github.com/bigkaa/authbroker/internal/result"
)

// LoginCommand — вход по username/password.
type LoginCommand struct {
	Tenant   string
	Username string
	Password string
}

// RefreshCommand — обмен refresh token на новую пару.
type RefreshCommand struct {
	Tenant       string
	RefreshToken string
}

// SignoutCommand — отзыв refresh token и сессии.
type SignoutCommand struct {
	Tenant       string
	RefreshToken string
}

// AuthService — обработчики токенов пользователей.
type AuthService struct {
	auth *idp.AuthRepository
}

// NewAuthService создаёт сервис токенов.
func NewAuthService(auth *idp.AuthRepository) *AuthService {
	return &AuthService{auth: auth}
}

// Login выдаёт пару токенов.
func (s *AuthService) Login(ctx context.Context, cmd LoginCommand) result.Result[model.TokenDetails] {
	if e, ok := validate(
		required("tenant", cmd.Tenant),
		required("username", cmd.Username),
		required("password", cmd.Password),
	); !ok {
		return result.Failure[model.TokenDetails](e)
	}
	return s.auth.Login(ctx, cmd.Tenant, cmd.Username, cmd.Password)
}

// Refresh обновляет пару токенов.
func (s *AuthService) Refresh(ctx context.Context, cmd RefreshCommand) result.Result[model.TokenDetails] {
	if e, ok := validate(required("tenant", cmd.Tenant), required("refreshToken", cmd.RefreshToken)); !ok {
		return result.Failure[model.TokenDetails](e)
	}
	return s.auth.RefreshToken(ctx, cmd.Tenant, cmd.RefreshToken)
}

// Signout завершает сессию.
func (s *AuthService) Signout(ctx context.Context, cmd SignoutCommand) result.Result[bool] {
	if e, ok := validate(required("tenant", cmd.Tenant), required("refreshToken", cmd.RefreshToken)); !ok {
		return result.Failure[bool](e)
	}
	return s.auth.Signout(ctx, cmd.Tenant, cmd.RefreshToken)
}
