// Точка входа authbroker — брокер идентификации перед Keycloak.
// Подкоманды: serve (HTTP API), migrate (миграции реестра тенантов),
// tenants import/list/remove (управление реестром без запуска сервера).
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/authbroker/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Ошибка выполнения команды", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "authbroker",
		Short:         "Мультитенантный брокер идентификации поверх Keycloak",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "файл переменных окружения (если существует)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTenantsCmd(),
	)
	return root
}

// loadConfig загружает конфигурацию и настраивает логгер.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.SetupLogger(cfg), nil
}
