// Пакет keycloak — шлюз к Keycloak (Admin REST API и OIDC endpoints)
// с изоляцией по тенантам.
// models.go — представления Keycloak.
package keycloak

import "time"

// TokenResponse — ответ token endpoint (client_credentials, password, refresh_token).
type TokenResponse struct {
	AccessToken      string `json:"access_token"`  //nolint:gosec // G117: структура токена OAuth2
	RefreshToken     string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	Scope            string `json:"scope,omitempty"`
}

// UserRepresentation — пользователь в Keycloak.
type UserRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username"`
	Email         string              `json:"email,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       bool                `json:"enabled"`
	CreatedAt     int64               `json:"createdTimestamp,omitempty"`
	EmailVerified bool                `json:"emailVerified"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

// CreatedAtTime возвращает CreatedAt как time.Time.
// Keycloak хранит timestamp в миллисекундах.
func (u *UserRepresentation) CreatedAtTime() time.Time {
	if u.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.CreatedAt).UTC()
}

// GroupRepresentation — группа в Keycloak.
type GroupRepresentation struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// RoleRepresentation — роль клиента в Keycloak.
type RoleRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

// GroupRoleMappings — привязки ролей группы (GET /groups/{id}/role-mappings).
// Ключ ClientMappings — публичный clientId.
type GroupRoleMappings struct {
	ClientMappings map[string]ClientMappings `json:"clientMappings,omitempty"`
}

// ClientMappings — роли одного клиента в привязках группы.
type ClientMappings struct {
	ID       string               `json:"id"`
	Client   string               `json:"client"`
	Mappings []RoleRepresentation `json:"mappings"`
}

// ClientRepresentation — клиент (application) в Keycloak.
type ClientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Name     string `json:"name,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// CredentialRepresentation — пароль пользователя (reset-password).
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"` //nolint:gosec // G117: пароль передаётся в IdP
	Temporary bool   `json:"temporary"`
}

// RealmRepresentation — публичная информация о realm (GET /realms/{realm}).
type RealmRepresentation struct {
	Realm     string `json:"realm"`
	PublicKey string `json:"public_key,omitempty"`
}
