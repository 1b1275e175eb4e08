package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bigkaa/authbroker/internal/config"
	"github.com/bigkaa/authbroker/internal/database"
	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/repository"
	"github.com/bigkaa/authbroker/internal/tenant"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции реестра тенантов",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return fmt.Errorf("загрузка конфигурации: %w", err)
			}
			return database.Migrate(cfg, logger)
		},
	}
}

func newTenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Управление реестром тенантов",
	}
	cmd.AddCommand(newTenantsImportCmd(), newTenantsListCmd(), newTenantsRemoveCmd())
	return cmd
}

func newTenantsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Импортировать тенантов из YAML-файла",
		Long: `Создаёт или обновляет записи реестра по YAML-файлу.
Все записи сохраняются в одной транзакции: при ошибке реестр не меняется.

Формат файла:
  tenants:
    - name: acme
      realm: acme
      client_id: authbroker
      client_secret: ${ACME_SECRET}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistryDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) error {
				tenants, err := tenant.LoadSeedFile(args[0], cfg.KeycloakURL)
				if err != nil {
					return err
				}
				err = repository.NewTxRunner(pool).RunInTx(ctx, func(tx pgx.Tx) error {
					return tenant.Import(ctx, repository.NewTenantRealmRepository(tx), nil, tenants)
				})
				if err != nil {
					return err
				}
				logger.Info("Тенанты импортированы",
					slog.String("path", args[0]),
					slog.Int("count", len(tenants)),
				)
				return nil
			})
		},
	}
}

func newTenantsListCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать зарегистрированных тенантов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("--output: недопустимое значение %q, допустимые: text, json", output)
			}
			return withRegistryDB(cmd.Context(), func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool, _ *slog.Logger) error {
				tenants, err := repository.NewTenantRealmRepository(pool).List(ctx)
				if err != nil {
					return err
				}
				return printTenants(cmd.OutOrStdout(), output, tenants)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "формат вывода: text|json")
	return cmd
}

func newTenantsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Удалить тенанта из реестра",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistryDB(cmd.Context(), func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool, logger *slog.Logger) error {
				err := repository.NewTenantRealmRepository(pool).Delete(ctx, args[0])
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("тенант %q не зарегистрирован", args[0])
				}
				if err != nil {
					return err
				}
				logger.Info("Тенант удалён", slog.String("tenant", args[0]))
				return nil
			})
		},
	}
}

// withRegistryDB загружает конфигурацию, применяет миграции и открывает
// пул PostgreSQL на время выполнения fn.
func withRegistryDB(ctx context.Context, fn func(context.Context, *config.Config, *pgxpool.Pool, *slog.Logger) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}
	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool, logger)
}

// tenantView — запись реестра для вывода; секрет клиента не показывается.
type tenantView struct {
	Tenant    string    `json:"tenant"`
	BaseURL   string    `json:"baseUrl"`
	Realm     string    `json:"realm"`
	ClientID  string    `json:"clientId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func printTenants(w io.Writer, output string, tenants []*model.TenantRealm) error {
	views := make([]tenantView, 0, len(tenants))
	for _, tr := range tenants {
		views = append(views, tenantView{
			Tenant:    tr.Tenant,
			BaseURL:   tr.BaseURL,
			Realm:     tr.Realm,
			ClientID:  tr.ClientID,
			UpdatedAt: tr.UpdatedAt,
		})
	}

	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tREALM\tCLIENT\tBASE URL\tUPDATED")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.Tenant, v.Realm, v.ClientID, v.BaseURL, v.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
