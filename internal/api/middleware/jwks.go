// jwks.go — JWKS ключи realm'ов тенантов.
// Для каждого JWKS URL создаётся jwkset storage с фоновым обновлением.
// Смена realm или BaseURL тенанта даёт новый URL и новый storage,
// старый останавливается.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/authbroker/internal/domain/model"
)

// tenantKeyset — keyfunc одного JWKS URL и функция остановки его storage.
type tenantKeyset struct {
	jwksURL string
	kf      keyfunc.Keyfunc
	stop    context.CancelFunc
}

// TenantKeys — реестр keyfunc по тенантам.
type TenantKeys struct {
	httpClient      *http.Client
	refreshInterval time.Duration
	logger          *slog.Logger

	mu   sync.RWMutex
	sets map[string]tenantKeyset
	sf   singleflight.Group
}

// NewTenantKeys создаёт реестр JWKS.
// httpClient — клиент с CA IdP (тот же, что у шлюза).
// refreshInterval — интервал фонового обновления ключей (AB_JWKS_REFRESH_INTERVAL).
func NewTenantKeys(httpClient *http.Client, refreshInterval time.Duration, logger *slog.Logger) *TenantKeys {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TenantKeys{
		httpClient:      httpClient,
		refreshInterval: refreshInterval,
		logger:          logger.With(slog.String("component", "tenant_jwks")),
		sets:            make(map[string]tenantKeyset),
	}
}

// Keyfunc возвращает keyfunc realm тенанта. Первый вызов для тенанта
// загружает JWKS; параллельные вызовы ждут одну загрузку.
func (k *TenantKeys) Keyfunc(tr model.TenantRealm) (keyfunc.Keyfunc, error) {
	jwksURL := tr.JWKSURL()

	k.mu.RLock()
	set, ok := k.sets[tr.Tenant]
	k.mu.RUnlock()
	if ok && set.jwksURL == jwksURL {
		return set.kf, nil
	}

	v, err, _ := k.sf.Do(tr.Tenant+"|"+jwksURL, func() (any, error) {
		k.mu.RLock()
		set, ok := k.sets[tr.Tenant]
		k.mu.RUnlock()
		if ok && set.jwksURL == jwksURL {
			return set.kf, nil
		}

		created, err := k.create(tr.Tenant, jwksURL)
		if err != nil {
			return nil, err
		}

		k.mu.Lock()
		if old, ok := k.sets[tr.Tenant]; ok {
			old.stop()
		}
		k.sets[tr.Tenant] = created
		k.mu.Unlock()

		k.logger.Info("JWKS тенанта загружен",
			slog.String("tenant", tr.Tenant),
			slog.String("url", jwksURL),
		)
		return created.kf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(keyfunc.Keyfunc), nil
}

// create создаёт storage с фоновым обновлением.
// NoErrorReturnFirstHTTPReq — недоступный IdP не ломает создание,
// проверка подписи в этом случае просто не пройдёт.
func (k *TenantKeys) create(tenantName, jwksURL string) (tenantKeyset, error) {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    k.httpClient,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           k.refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			k.logger.Error("Ошибка обновления JWKS",
				slog.String("tenant", tenantName),
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		cancel()
		return tenantKeyset{}, fmt.Errorf("создание JWKS storage %s: %w", jwksURL, err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		cancel()
		return tenantKeyset{}, fmt.Errorf("создание keyfunc: %w", err)
	}

	return tenantKeyset{jwksURL: jwksURL, kf: kf, stop: cancel}, nil
}

// Forget останавливает обновление JWKS тенанта.
func (k *TenantKeys) Forget(tenantName string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if set, ok := k.sets[tenantName]; ok {
		set.stop()
		delete(k.sets, tenantName)
	}
}

// Close останавливает фоновое обновление всех JWKS.
func (k *TenantKeys) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for name, set := range k.sets {
		set.stop()
		delete(k.sets, name)
	}
}
