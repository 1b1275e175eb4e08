package keycloak

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Операции для лейблов метрик.
const (
	opAdmin        = "admin"
	opToken        = "token"
	opLogout       = "logout"
	opServiceToken = "service_token"

	statusLabelError = "error"
)

var (
	// upstreamRequestsTotal — запросы к Keycloak по операции и статусу.
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_keycloak_requests_total",
			Help: "Общее количество запросов к Keycloak",
		},
		[]string{"operation", "status"},
	)

	// upstreamRequestDuration — длительность запросов к Keycloak.
	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_keycloak_request_duration_seconds",
			Help:    "Длительность запросов к Keycloak в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// serviceTokenRefreshTotal — обновления service token (ok, error).
	serviceTokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_keycloak_service_token_refresh_total",
			Help: "Количество запросов service token по результату",
		},
		[]string{"result"},
	)
)

func observeUpstream(op, status string, start time.Time) {
	upstreamRequestsTotal.WithLabelValues(op, status).Inc()
	upstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
