// health.go — обработчики health endpoints брокера.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (реестр тенантов и Keycloak доступны)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/authbroker/internal/config"
)

// serviceName — имя сервиса в ответах health endpoints.
const serviceName = "authbroker"

// Статусы проверок.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	registry    ReadinessChecker
	keycloak    ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// registry — проверка PostgreSQL реестра тенантов, keycloak — проверка IdP.
// nil-checker даёт "fail" для своей зависимости.
func NewHealthHandler(registry, keycloak ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		registry:    registry,
		keycloak:    keycloak,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse — ответ liveness и readiness probe.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    *struct {
		TenantRegistry healthCheckResult `json:"tenant_registry"`
		Keycloak       healthCheckResult `json:"keycloak"`
	} `json:"checks,omitempty"`
}

func newHealthResponse() healthResponse {
	return healthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newHealthResponse())
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := newHealthResponse()
	resp.Checks = &struct {
		TenantRegistry healthCheckResult `json:"tenant_registry"`
		Keycloak       healthCheckResult `json:"keycloak"`
	}{
		TenantRegistry: check(h.registry),
		Keycloak:       check(h.keycloak),
	}
	resp.Status = overallStatus(resp.Checks.TenantRegistry.Status, resp.Checks.Keycloak.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
