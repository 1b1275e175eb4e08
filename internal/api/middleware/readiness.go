// readiness.go — проверка готовности Keycloak для /health/ready.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// KeycloakReadinessChecker — проверка доступности Keycloak через JWKS служебного realm.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
	timeout time.Duration
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
// client — HTTP-клиент шлюза (с CA IdP), timeout — таймаут одной проверки.
func NewKeycloakReadinessChecker(jwksURL string, client *http.Client, timeout time.Duration) *KeycloakReadinessChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &KeycloakReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
		timeout: timeout,
	}
}

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации Keycloak
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return statusDegraded, fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return statusDegraded, "Keycloak JWKS: нет ключей"
	}

	return statusOK, fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
