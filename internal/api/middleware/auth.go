// auth.go — JWT middleware для аутентификации и авторизации брокера.
// Токен проверяется ключами realm тенанта из пути запроса:
// issuer токена обязан совпадать с realm этого тенанта.
// Роли realm и клиентов маппятся в capability (reader, writer).
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/authbroker/internal/api/errors"
	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/domain/rbac"
	"github.com/bigkaa/authbroker/internal/keycloak"
)

// TenantParam — имя параметра пути с идентификатором тенанта.
const TenantParam = "tenant"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — claims проверенного токена пользователя тенанта.
type AuthClaims struct {
	// Tenant — тенант из пути запроса.
	Tenant string
	// Subject — sub (Keycloak user ID).
	Subject string
	// Issuer — iss (URL realm).
	Issuer string
	// PreferredUsername — preferred_username.
	PreferredUsername string
	// Email — email.
	Email string
	// Name, GivenName, FamilyName — имя пользователя.
	Name       string
	GivenName  string
	FamilyName string
	// AuthorizedParty — azp (клиент, получивший токен).
	AuthorizedParty string
	// SessionID — sid сессии Keycloak.
	SessionID string
	// RealmRoles — роли из realm_access.roles.
	RealmRoles []string
	// ClientRoles — роли из resource_access по clientId.
	ClientRoles map[string][]string
	// Capability — итоговое право доступа к API брокера.
	Capability rbac.Capability
	// ExpiresAt — время истечения токена.
	ExpiresAt time.Time
	// IssuedAt — время выпуска токена.
	IssuedAt time.Time
}

// AllRoles возвращает realm-роли и роли всех клиентов без повторов.
func (c *AuthClaims) AllRoles() []string {
	seen := make(map[string]bool, len(c.RealmRoles))
	var roles []string
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	for _, r := range c.RealmRoles {
		add(r)
	}
	clients := make([]string, 0, len(c.ClientRoles))
	for id := range c.ClientRoles {
		clients = append(clients, id)
	}
	sort.Strings(clients)
	for _, id := range clients {
		for _, r := range c.ClientRoles[id] {
			add(r)
		}
	}
	return roles
}

// keycloakClaims — raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string                 `json:"preferred_username"`
	Email             string                 `json:"email"`
	Name              string                 `json:"name"`
	GivenName         string                 `json:"given_name"`
	FamilyName        string                 `json:"family_name"`
	Azp               string                 `json:"azp,omitempty"`
	Sid               string                 `json:"sid,omitempty"`
	RealmAccess       *rolesClaim            `json:"realm_access,omitempty"`
	ResourceAccess    map[string]*rolesClaim `json:"resource_access,omitempty"`
}

// rolesClaim — вложенная структура {"roles": [...]} в Keycloak JWT.
type rolesClaim struct {
	Roles []string `json:"roles"`
}

// RealmResolver разрешает тенант в realm IdP. Реализуется keycloak.Gateway.
type RealmResolver interface {
	Realm(ctx context.Context, name string) (model.TenantRealm, error)
}

// KeyfuncSource выдаёт keyfunc realm тенанта. Реализуется TenantKeys.
type KeyfuncSource interface {
	Keyfunc(tr model.TenantRealm) (keyfunc.Keyfunc, error)
	// Forget освобождает ключи тенанта, исчезнувшего из реестра.
	Forget(tenant string)
}

// JWTAuth — middleware JWT-аутентификации через JWKS realm тенанта.
type JWTAuth struct {
	resolver  RealmResolver
	keys      KeyfuncSource
	roles     rbac.RoleNames
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
// roles — имена ролей, дающих capability (AB_READER_ROLE, AB_WRITER_ROLE).
// jwtLeeway — допустимое отклонение времени при проверке JWT (AB_JWT_LEEWAY).
func NewJWTAuth(
	resolver RealmResolver,
	keys KeyfuncSource,
	roles rbac.RoleNames,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		resolver:  resolver,
		keys:      keys,
		roles:     roles,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Должен подключаться внутри маршрута с параметром {tenant}.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := bearerToken(r)
			if msg != "" {
				apierrors.Unauthorized(w, msg)
				return
			}

			tenantName := chi.URLParam(r, TenantParam)
			tr, err := j.resolver.Realm(r.Context(), tenantName)
			if err != nil {
				j.writeRealmError(w, tenantName, err)
				return
			}

			kf, err := j.keys.Keyfunc(tr)
			if err != nil {
				j.logger.Error("JWKS тенанта недоступен",
					slog.String("tenant", tenantName),
					slog.String("error", err.Error()),
				)
				apierrors.Unavailable(w, "Signing keys of the tenant are unavailable")
				return
			}

			raw := &keycloakClaims{}
			token, err := jwt.ParseWithClaims(tokenString, raw, kf.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
				jwt.WithIssuer(tr.Issuer()),
			)
			if err != nil || !token.Valid {
				reason := "invalid token"
				if err != nil {
					reason = err.Error()
				}
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("tenant", tenantName),
					slog.String("error", reason),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Invalid or expired token")
				return
			}

			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Token has no subject")
				return
			}

			claims := j.buildAuthClaims(tenantName, raw)
			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeRealmError отвечает на неразрешённый тенант.
func (j *JWTAuth) writeRealmError(w http.ResponseWriter, tenantName string, err error) {
	if kcErr, ok := keycloak.AsError(err); ok && kcErr.Kind == keycloak.KindUnknownTenant {
		j.keys.Forget(tenantName)
		apierrors.Failure(w, errs.UnknownTenant)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	j.logger.Error("Реестр тенантов недоступен",
		slog.String("tenant", tenantName),
		slog.String("error", err.Error()),
	)
	apierrors.Unavailable(w, "Tenant registry is unavailable")
}

// bearerToken извлекает токен из Authorization. Непустое сообщение — отказ.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Authorization header is missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "Authorization header must be Bearer <token>"
	}
	if strings.TrimSpace(parts[1]) == "" {
		return "", "Bearer token is empty"
	}
	return strings.TrimSpace(parts[1]), ""
}

// buildAuthClaims формирует AuthClaims из raw Keycloak claims.
func (j *JWTAuth) buildAuthClaims(tenantName string, raw *keycloakClaims) *AuthClaims {
	claims := &AuthClaims{
		Tenant:            tenantName,
		Subject:           raw.Subject,
		Issuer:            raw.Issuer,
		PreferredUsername: raw.PreferredUsername,
		Email:             raw.Email,
		Name:              raw.Name,
		GivenName:         raw.GivenName,
		FamilyName:        raw.FamilyName,
		AuthorizedParty:   raw.Azp,
		SessionID:         raw.Sid,
		ClientRoles:       make(map[string][]string, len(raw.ResourceAccess)),
	}
	if raw.RealmAccess != nil {
		claims.RealmRoles = raw.RealmAccess.Roles
	}
	for clientID, access := range raw.ResourceAccess {
		if access != nil {
			claims.ClientRoles[clientID] = access.Roles
		}
	}
	if raw.ExpiresAt != nil {
		claims.ExpiresAt = raw.ExpiresAt.Time
	}
	if raw.IssuedAt != nil {
		claims.IssuedAt = raw.IssuedAt.Time
	}

	claims.Capability = rbac.Resolve(claims.AllRoles(), j.roles)
	return claims
}

// RequireCapability возвращает middleware, требующий capability.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireCapability(required rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Request is not authenticated")
				return
			}
			if !claims.Capability.Allows(required) {
				apierrors.Forbidden(w, fmt.Sprintf("Capability %s is required", required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext извлекает sub из контекста запроса.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}
