package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/authbroker/internal/config"
	"github.com/bigkaa/authbroker/internal/database"
	"github.com/bigkaa/authbroker/internal/domain/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
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

	// Настраиваем env для config.Load()
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

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// --- Тесты TenantRealmRepository ---

func newTenant(name, realm string) *model.TenantRealm {
	return &model.TenantRealm{
		Tenant:       name,
		BaseURL:      "http://keycloak:8080",
		Realm:        realm,
		ClientID:     "authbroker",
		ClientSecret: "secret-" + name,
	}
}

func TestTenantRealmCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTenantRealmRepository(pool)

	acme := newTenant("acme", "acme-realm")

	// Create
	if err := repo.Create(ctx, acme); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if acme.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// Дубликат
	if err := repo.Create(ctx, newTenant("acme", "other")); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() дубликата: ожидали ErrConflict, получили %v", err)
	}

	// Get
	got, err := repo.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.Realm != "acme-realm" || got.ClientSecret != "secret-acme" {
		t.Errorf("Get() = %+v", got)
	}

	// Upsert обновляет существующую запись
	acme.Realm = "acme-v2"
	if err := repo.Upsert(ctx, acme); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	got, _ = repo.Get(ctx, "acme")
	if got.Realm != "acme-v2" {
		t.Errorf("Realm после Upsert = %q, ожидали acme-v2", got.Realm)
	}

	// Upsert создаёт новую запись
	if err := repo.Upsert(ctx, newTenant("beta", "beta-realm")); err != nil {
		t.Fatalf("Upsert() новой записи ошибка: %v", err)
	}

	// Тот же realm у другого тенанта — конфликт
	if err := repo.Upsert(ctx, newTenant("gamma", "beta-realm")); !errors.Is(err, ErrConflict) {
		t.Errorf("Upsert() чужого realm: ожидали ErrConflict, получили %v", err)
	}

	// List
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 2 || list[0].Tenant != "acme" || list[1].Tenant != "beta" {
		t.Errorf("List() = %d записей, ожидали [acme beta]", len(list))
	}

	// Delete
	if err := repo.Delete(ctx, "beta"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, "beta"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete(): ожидали ErrNotFound, получили %v", err)
	}
	if _, err := repo.Get(ctx, "beta"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() удалённого: ожидали ErrNotFound, получили %v", err)
	}
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	runner := NewTxRunner(pool)

	errAbort := errors.New("abort")
	err := runner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewTenantRealmRepository(tx).Create(ctx, newTenant("rollback", "rb")); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("RunInTx() = %v, ожидали errAbort", err)
	}

	if _, err := NewTenantRealmRepository(pool).Get(ctx, "rollback"); !errors.Is(err, ErrNotFound) {
		t.Errorf("запись должна быть откачена, Get() = %v", err)
	}
}

func TestTenantRealm_InvalidName(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTenantRealmRepository(pool)

	if err := repo.Create(ctx, newTenant("-bad", "bad-realm")); !errors.Is(err, ErrInvalid) {
		t.Errorf("Create() с некорректным именем: ожидали ErrInvalid, получили %v", err)
	}
	if err := repo.Upsert(ctx, newTenant("Acme", "acme")); !errors.Is(err, ErrInvalid) {
		t.Errorf("Upsert() с заглавными буквами: ожидали ErrInvalid, получили %v", err)
	}
}
