package model

import (
	"fmt"
	"time"
)

// TenantRealm — соответствие тенанта realm'у IdP и учётным данным клиента брокера.
// Хранится в таблице tenant_realms.
type TenantRealm struct {
	// Tenant — идентификатор тенанта из пути запроса
	Tenant string
	// BaseURL — базовый URL IdP (без trailing slash)
	BaseURL string
	// Realm — имя realm
	Realm string
	// ClientID — confidential client для password grant и service account
	ClientID string
	// ClientSecret — секрет клиента
	ClientSecret string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Issuer возвращает ожидаемый issuer токенов realm.
func (t *TenantRealm) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", t.BaseURL, t.Realm)
}

// JWKSURL возвращает URL JWKS endpoint realm.
func (t *TenantRealm) JWKSURL() string {
	return t.Issuer() + "/protocol/openid-connect/certs"
}
