package main

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/authbroker/internal/api/handlers"
	"github.com/bigkaa/authbroker/internal/api/middleware"
	"github.com/bigkaa/authbroker/internal/config"
	"github.com/bigkaa/authbroker/internal/database"
	"github.com/bigkaa/authbroker/internal/domain/rbac"
	"github.com/bigkaa/authbroker/internal/idp"
	"github.com/bigkaa/authbroker/internal/keycloak"
	"github.com/bigkaa/authbroker/internal/repository"
	"github.com/bigkaa/authbroker/internal/server"
	"github.com/bigkaa/authbroker/internal/service"
	"github.com/bigkaa/authbroker/internal/tenant"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API брокера",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return fmt.Errorf("загрузка конфигурации: %w", err)
			}
			return runServe(cmd, cfg, logger)
		},
	}
}

func runServe(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	ctx := cmd.Context()

	logger.Info("authbroker запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 1. Миграции и пул PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("миграции БД: %w", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 2. Реестр тенантов
	tenantRepo := repository.NewTenantRealmRepository(pool)
	registry := tenant.NewRegistry(tenantRepo, cfg.TenantCacheSize, cfg.TenantCacheTTL, logger)

	if cfg.TenantsFile != "" {
		tenants, err := tenant.LoadSeedFile(cfg.TenantsFile, cfg.KeycloakURL)
		if err != nil {
			return err
		}
		if err := tenant.Import(ctx, tenantRepo, registry, tenants); err != nil {
			return err
		}
		logger.Info("Тенанты импортированы из файла",
			slog.String("path", cfg.TenantsFile),
			slog.Int("count", len(tenants)),
		)
	}

	// 3. Шлюз Keycloak
	httpClient, err := keycloak.NewHTTPClient(cfg.KeycloakTimeout, cfg.KeycloakCACertPath)
	if err != nil {
		return fmt.Errorf("HTTP-клиент Keycloak: %w", err)
	}
	gateway := keycloak.New(registry, httpClient, logger)
	defer gateway.Wait()

	keys := middleware.NewTenantKeys(httpClient, cfg.JWKSRefreshInterval, logger)
	defer keys.Close()

	// 4. Репозитории IdP и сервисы
	groupRepo := idp.NewGroupRepository(gateway, logger)
	roleRepo := idp.NewRoleRepository(gateway, logger)

	apiHandler := handlers.NewAPIHandler(
		service.NewAuthService(idp.NewAuthRepository(gateway, logger)),
		service.NewGroupService(groupRepo, idp.NewGroupUsersRepository(gateway, logger)),
		service.NewGroupRoleService(groupRepo, roleRepo, idp.NewGroupRolesRepository(gateway, logger), logger),
		service.NewUserService(idp.NewUserRepository(gateway, logger), logger),
		service.NewClientService(idp.NewClientRepository(gateway), roleRepo),
		logger,
	)

	// 5. Health
	jwksURL := service.KeycloakJWKSURL(cfg.KeycloakURL, service.HealthRealm)
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		middleware.NewKeycloakReadinessChecker(jwksURL, httpClient, cfg.KeycloakTimeout),
	)

	// 6. topologymetrics
	if cfg.DephealthTLSSkipVerify {
		logger.Warn("Проверка TLS-сертификата Keycloak в topologymetrics отключена (AB_DEPHEALTH_TLS_SKIP_VERIFY)")
	}
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "authbroker",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		KeycloakURL:   cfg.KeycloakURL,
		CheckInterval: cfg.DephealthCheckInterval,
		TLSSkipVerify: cfg.DephealthTLSSkipVerify,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}
	if dephealthSvc != nil {
		defer dephealthSvc.Stop()
	}

	// 7. Авторизация и ограничение login
	jwtAuth := middleware.NewJWTAuth(
		gateway,
		keys,
		rbac.RoleNames{Reader: cfg.ReaderRole, Writer: cfg.WriterRole},
		cfg.JWTLeeway,
		logger,
	)
	limiter := middleware.NewLoginLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst, cfg.TrustedProxies)

	// 8. HTTP-сервер
	router := server.NewRouter(logger, apiHandler, healthHandler, jwtAuth, limiter)
	srv := server.New(server.Options{Port: cfg.Port, ShutdownTimeout: cfg.ShutdownTimeout}, logger, router)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("authbroker остановлен")
	return nil
}
