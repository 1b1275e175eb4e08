// Пакет idp — репозитории ресурсов realm тенанта (пользователи, группы,
// роли, привязки) поверх шлюза Keycloak.
// Каждая операция возвращает result.Result: ожидаемые отказы IdP
// (неверные credentials, конфликт, not found, недоступность) переводятся
// в ошибку каталога errs с техническим сообщением IdP в описании.
package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/keycloak"
	"github.com/bigkaa/authbroker/internal/result"
)

// Gateway — операции шлюза, используемые репозиториями (реализуется keycloak.Gateway).
type Gateway interface {
	Admin(ctx context.Context, tenant, method, path string, body, target any) (*keycloak.Response, error)
	Token(ctx context.Context, tenant string, form url.Values) (*keycloak.TokenResponse, error)
	Logout(ctx context.Context, tenant, refreshToken string) error
}

// failure переводит ошибку шлюза в ошибку каталога base.
// Незарегистрированный тенант и отказ получения service token
// получают собственные коды.
func failure(base result.Error, err error) result.Error {
	kcErr, ok := keycloak.AsError(err)
	if ok {
		switch kcErr.Kind {
		case keycloak.KindUnknownTenant:
			return errs.UnknownTenant.WithTechnical(fmt.Sprintf("(%s)", kcErr.Tenant))
		case keycloak.KindTokenAcquisition:
			return errs.TokenGeneration.WithTechnical(technical(err))
		}
	}
	return composite(base, err)
}

// composite переводит любую ошибку шлюза в base, меняя только категорию.
func composite(base result.Error, err error) result.Error {
	return base.WithKind(kindOf(base, err)).WithTechnical(technical(err))
}

// kindOf определяет категорию отказа.
func kindOf(base result.Error, err error) result.Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result.KindUnreachable
	}
	kcErr, ok := keycloak.AsError(err)
	if !ok {
		return result.KindUnreachable
	}
	switch kcErr.Kind {
	case keycloak.KindUnknownTenant:
		return result.KindNotFound
	case keycloak.KindUnreachable, keycloak.KindTokenAcquisition:
		return result.KindUnreachable
	}
	if kcErr.StatusCode == http.StatusNotFound {
		return result.KindNotFound
	}
	return base.Kind
}

// technical формирует техническое сообщение: статус и текст IdP.
func technical(err error) string {
	kcErr, ok := keycloak.AsError(err)
	if !ok {
		return err.Error()
	}
	msg := kcErr.Message
	if msg == "" && kcErr.Err != nil {
		msg = kcErr.Err.Error()
	}
	if kcErr.StatusCode != 0 {
		return fmt.Sprintf("(%d) %s", kcErr.StatusCode, msg)
	}
	return msg
}

// esc экранирует сегмент пути Admin API.
func esc(segment string) string {
	return url.PathEscape(segment)
}

// --- Проекции представлений Keycloak ---

func toUser(u *keycloak.UserRepresentation) model.User {
	return model.User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Enabled:       u.Enabled,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAtTime(),
		Attributes:    u.Attributes,
	}
}

func toGroup(g *keycloak.GroupRepresentation) model.Group {
	return model.Group{ID: g.ID, Name: g.Name, Path: g.Path}
}

func toRole(r *keycloak.RoleRepresentation) model.Role {
	return model.Role{ID: r.ID, Name: r.Name, Description: r.Description, ContainerID: r.ContainerID}
}

func toTokenDetails(t *keycloak.TokenResponse) model.TokenDetails {
	return model.TokenDetails{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenType:        t.TokenType,
		ExpiresIn:        t.ExpiresIn,
		RefreshExpiresIn: t.RefreshExpiresIn,
	}
}
