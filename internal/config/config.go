// Пакет config — загрузка и валидация конфигурации брокера
// из переменных окружения (и опционального .env файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации брокера.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL (реестр тенантов) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak ---

	// URL IdP по умолчанию (для тенантов без собственного URL)
	KeycloakURL string
	// Таймаут HTTP-запросов к IdP
	KeycloakTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединений с IdP (опционально)
	KeycloakCACertPath string

	// --- Тенанты ---

	// YAML-файл для начального заполнения реестра тенантов (опционально)
	TenantsFile string
	// Размер LRU-кэша реестра тенантов
	TenantCacheSize int
	// TTL записи кэша реестра тенантов
	TenantCacheTTL time.Duration

	// --- Авторизация ---

	// Роль, дающая capability reader
	ReaderRole string
	// Роль, дающая capability writer
	WriterRole string
	// Интервал обновления JWKS тенанта
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Ограничение login ---

	// Запросов в секунду на пару тенант+адрес
	LoginRateLimit float64
	// Размер burst
	LoginRateBurst int
	// Доверенные прокси (CIDR или адреса): только от них учитывается X-Forwarded-For
	TrustedProxies []netip.Prefix

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	// Отключение проверки TLS-сертификата Keycloak в topologymetrics (только dev)
	DephealthTLSSkipVerify bool

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// LoadDotEnv загружает переменные из .env (если файл есть).
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("загрузка %s: %w", path, err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("AB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("AB_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AB_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("AB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("AB_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("AB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("AB_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("AB_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("AB_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("AB_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("AB_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("AB_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak ---

	if cfg.KeycloakURL, err = getEnvRequired("AB_KEYCLOAK_URL"); err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	cfg.KeycloakTimeout, err = getEnvDuration("AB_KEYCLOAK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AB_KEYCLOAK_TIMEOUT: %w", err)
	}
	cfg.KeycloakCACertPath = getEnvDefault("AB_KEYCLOAK_CA_CERT_PATH", "")

	// --- Тенанты ---

	cfg.TenantsFile = getEnvDefault("AB_TENANTS_FILE", "")
	cfg.TenantCacheSize, err = getEnvInt("AB_TENANT_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("AB_TENANT_CACHE_SIZE: %w", err)
	}
	if cfg.TenantCacheSize < 1 {
		return nil, fmt.Errorf("AB_TENANT_CACHE_SIZE: значение %d должно быть положительным", cfg.TenantCacheSize)
	}
	cfg.TenantCacheTTL, err = getEnvDuration("AB_TENANT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AB_TENANT_CACHE_TTL: %w", err)
	}

	// --- Авторизация ---

	cfg.ReaderRole = getEnvDefault("AB_READER_ROLE", "Feijuca.ApiReader")
	cfg.WriterRole = getEnvDefault("AB_WRITER_ROLE", "Feijuca.ApiWriter")
	if cfg.ReaderRole == cfg.WriterRole {
		return nil, fmt.Errorf("AB_READER_ROLE и AB_WRITER_ROLE не должны совпадать (%q)", cfg.ReaderRole)
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("AB_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AB_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("AB_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AB_JWT_LEEWAY: %w", err)
	}

	// --- Ограничение login ---

	cfg.LoginRateLimit, err = getEnvFloat("AB_LOGIN_RATE_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("AB_LOGIN_RATE_LIMIT: %w", err)
	}
	cfg.LoginRateBurst, err = getEnvInt("AB_LOGIN_RATE_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("AB_LOGIN_RATE_BURST: %w", err)
	}
	if cfg.LoginRateLimit <= 0 || cfg.LoginRateBurst < 1 {
		return nil, fmt.Errorf("AB_LOGIN_RATE_LIMIT/AB_LOGIN_RATE_BURST: значения должны быть положительными")
	}
	cfg.TrustedProxies, err = parsePrefixes(getEnvDefault("AB_TRUSTED_PROXIES", ""))
	if err != nil {
		return nil, fmt.Errorf("AB_TRUSTED_PROXIES: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("AB_DEPHEALTH_GROUP", "authbroker")
	cfg.DephealthCheckInterval, err = getEnvDuration("AB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AB_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthTLSSkipVerify, err = getEnvBool("AB_DEPHEALTH_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("AB_DEPHEALTH_TLS_SKIP_VERIFY: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("AB_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AB_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrationURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrationURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvFloat возвращает дробное значение переменной окружения или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parsePrefixes разбирает список через запятую. Одиночный адрес
// превращается в префикс /32 (/128 для IPv6).
func parsePrefixes(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("некорректный CIDR %q", item)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("некорректный адрес %q", item)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
