package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/authbroker/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает конфиг и функцию для очистки.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("authbroker_test"),
		postgres.WithUsername("authbroker"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Создаём конфиг с минимальными значениями
	t.Setenv("AB_DB_HOST", host)
	t.Setenv("AB_DB_PORT", port.Port())
	t.Setenv("AB_DB_NAME", "authbroker_test")
	t.Setenv("AB_DB_USER", "authbroker")
	t.Setenv("AB_DB_PASSWORD", "test-password")
	t.Setenv("AB_DB_SSL_MODE", "disable")
	t.Setenv("AB_KEYCLOAK_URL", "http://localhost:8080")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	// Проверяем ping
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — должно быть без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	// Проверяем, что таблицы созданы
	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, "tenant_realms").Scan(&exists)
	if err != nil {
		t.Fatalf("Ошибка проверки таблицы tenant_realms: %v", err)
	}
	if !exists {
		t.Error("Таблица tenant_realms не создана")
	}

	// Формат идентификатора тенанта ограничен CHECK-constraint
	_, err = pool.Exec(ctx,
		`INSERT INTO tenant_realms (tenant, base_url, realm, client_id, client_secret)
		 VALUES ('Bad Tenant', 'http://kc', 'r', 'c', 's')`)
	if err == nil {
		t.Error("INSERT с некорректным именем тенанта должен завершиться ошибкой")
	}
}

// TestReadinessChecker проверяет статусы пустого и заполненного реестра.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)

	if status, msg := checker.CheckReady(); status != "degraded" {
		t.Errorf("пустой реестр: status = %q (%s), ожидали degraded", status, msg)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO tenant_realms (tenant, base_url, realm, client_id, client_secret)
		 VALUES ('acme', 'http://kc', 'acme', 'authbroker', 's')`)
	if err != nil {
		t.Fatalf("INSERT тенанта: %v", err)
	}

	if status, msg := checker.CheckReady(); status != "ok" {
		t.Errorf("status = %q (%s), ожидали ok", status, msg)
	}
}
