// Пакет tenant — реестр тенантов: соответствие тенанта realm'у IdP.
// Источник истины — таблица tenant_realms, поверх неё LRU-кэш с TTL.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/repository"
)

// ErrUnknownTenant — тенант не зарегистрирован или имя некорректно.
var ErrUnknownTenant = errors.New("неизвестный тенант")

// Prometheus-метрики кэша реестра.
var (
	registryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ab_tenant_cache_hits_total",
		Help: "Общее количество попаданий в кэш реестра тенантов.",
	})
	registryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ab_tenant_cache_misses_total",
		Help: "Общее количество промахов кэша реестра тенантов.",
	})
)

// loadTimeout ограничивает загрузку записи из хранилища.
const loadTimeout = 10 * time.Second

// nameRe совпадает с CHECK-constraint таблицы tenant_realms.
var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidName проверяет формат идентификатора тенанта.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Store — источник записей тенантов (реализуется repository.TenantRealmRepository).
type Store interface {
	Get(ctx context.Context, tenant string) (*model.TenantRealm, error)
}

// Registry — кэширующий резолвер тенантов.
// Безопасен для конкурентного использования.
type Registry struct {
	store  Store
	cache  *expirable.LRU[string, model.TenantRealm]
	sf     singleflight.Group
	logger *slog.Logger
}

// NewRegistry создаёт реестр с LRU-кэшем указанного размера и TTL.
func NewRegistry(store Store, size int, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  expirable.NewLRU[string, model.TenantRealm](size, nil, ttl),
		logger: logger.With(slog.String("component", "tenant_registry")),
	}
}

// Resolve возвращает realm тенанта. Незарегистрированный тенант — ErrUnknownTenant.
// Возвращается копия: вызывающий не может изменить запись в кэше.
func (r *Registry) Resolve(ctx context.Context, name string) (model.TenantRealm, error) {
	if !ValidName(name) {
		return model.TenantRealm{}, fmt.Errorf("%w: %q", ErrUnknownTenant, name)
	}

	if tr, ok := r.cache.Get(name); ok {
		registryCacheHits.Inc()
		return tr, nil
	}
	registryCacheMisses.Inc()

	// Загрузка не наследует отмену первого вызывающего: её результат
	// ждут и другие запросы того же тенанта.
	ch := r.sf.DoChan(name, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		tr, err := r.store.Get(loadCtx, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTenant, name)
			}
			return nil, fmt.Errorf("загрузка тенанта %q: %w", name, err)
		}
		r.cache.Add(name, *tr)
		r.logger.Debug("Тенант загружен в кэш",
			slog.String("tenant", name),
			slog.String("realm", tr.Realm),
		)
		return *tr, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.TenantRealm{}, res.Err
		}
		return res.Val.(model.TenantRealm), nil
	case <-ctx.Done():
		return model.TenantRealm{}, ctx.Err()
	}
}

// Invalidate удаляет тенант из кэша (после изменения записи в БД).
func (r *Registry) Invalidate(name string) {
	r.cache.Remove(name)
}
