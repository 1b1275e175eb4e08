package idp

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/result"
)

// AuthRepository — выдача, обновление и отзыв токенов пользователей.
type AuthRepository struct {
	gw     Gateway
	logger *slog.Logger
}

// NewAuthRepository создаёт репозиторий токенов.
func NewAuthRepository(gw Gateway, logger *slog.Logger) *AuthRepository {
	return &AuthRepository{
		gw:     gw,
		logger: logger.With(slog.String("component", "auth_repository")),
	}
}

// Login обменивает username/password на пару токенов (password grant).
func (r *AuthRepository) Login(ctx context.Context, tenant, username, password string) result.Result[model.TokenDetails] {
	token, err := r.gw.Token(ctx, tenant, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
		"scope":      {"openid"},
	})
	if err != nil {
		e := failure(errs.InvalidUserNameOrPassword, err)
		r.logger.Info("Вход отклонён",
			slog.String("tenant", tenant),
			slog.String("username", username),
			slog.String("code", e.Code),
		)
		return result.Failure[model.TokenDetails](e)
	}
	return result.Success(toTokenDetails(token))
}

// RefreshToken обменивает refresh token на новую пару токенов.
func (r *AuthRepository) RefreshToken(ctx context.Context, tenant, refreshToken string) result.Result[model.TokenDetails] {
	token, err := r.gw.Token(ctx, tenant, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return result.Failure[model.TokenDetails](failure(errs.InvalidRefreshToken, err))
	}
	return result.Success(toTokenDetails(token))
}

// Signout отзывает refresh token и сессию IdP.
// Уже недействительный токен — Failure, а не успешный no-op.
// Любой отказ, включая незарегистрированный тенант, получает код
// InvalidRefreshToken; различается только категория.
func (r *AuthRepository) Signout(ctx context.Context, tenant, refreshToken string) result.Result[bool] {
	if err := r.gw.Logout(ctx, tenant, refreshToken); err != nil {
		return result.Failure[bool](composite(errs.InvalidRefreshToken, err))
	}
	r.logger.Debug("Сессия завершена", slog.String("tenant", tenant))
	return result.Success(true)
}
