// ratelimit.go — ограничение частоты login: token bucket на пару тенант+адрес клиента.
// Корзины хранятся в LRU с TTL: неактивные клиенты вытесняются.
package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/authbroker/internal/api/errors"
)

// Параметры хранилища корзин.
const (
	limiterCacheSize = 10000
	limiterTTL       = 10 * time.Minute
)

// LoginLimiter — token bucket на пару тенант+адрес клиента.
type LoginLimiter struct {
	perSecond rate.Limit
	burst     int
	trusted   []netip.Prefix

	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewLoginLimiter создаёт ограничитель.
// perSecond — AB_LOGIN_RATE_LIMIT, burst — AB_LOGIN_RATE_BURST.
// trusted — AB_TRUSTED_PROXIES: только от этих адресов учитывается
// X-Forwarded-For. Пустой список — адрес клиента берётся из соединения.
func NewLoginLimiter(perSecond float64, burst int, trusted []netip.Prefix) *LoginLimiter {
	return &LoginLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		trusted:   trusted,
		buckets:   expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterTTL),
	}
}

// Allow расходует один токен корзины key.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.perSecond, l.burst)
		l.buckets.Add(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware возвращает HTTP middleware ограничения частоты.
func (l *LoginLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := chi.URLParam(r, TenantParam) + "|" + l.clientIP(r)
			if !l.Allow(key) {
				w.Header().Set("Retry-After", "1")
				apierrors.TooManyRequests(w, "Too many login attempts, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP возвращает адрес клиента. X-Forwarded-For читается справа
// налево, пока адреса принадлежат доверенным прокси; первый недоверенный
// адрес считается клиентом. Если соединение пришло не от доверенного
// прокси, заголовок игнорируется.
func (l *LoginLimiter) clientIP(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	if !l.isTrusted(remote) {
		return remote
	}

	hops := r.Header.Values("X-Forwarded-For")
	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		parts := strings.Split(hops[i], ",")
		for j := len(parts) - 1; j >= 0; j-- {
			hop := strings.TrimSpace(parts[j])
			if hop == "" {
				continue
			}
			if _, err := netip.ParseAddr(hop); err != nil {
				return client
			}
			client = hop
			if !l.isTrusted(hop) {
				return client
			}
		}
	}
	return client
}

func (l *LoginLimiter) isTrusted(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range l.trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// remoteHost отрезает порт от RemoteAddr.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
