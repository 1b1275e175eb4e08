package tenant

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/authbroker/internal/domain/model"
)

// seedFile — формат YAML-файла начального заполнения реестра.
//
//	tenants:
//	  - name: acme
//	    realm: acme
//	    client_id: authbroker
//	    client_secret: ${ACME_SECRET}
//	    base_url: https://keycloak.example.com   # опционально
type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	Name         string `yaml:"name"`
	BaseURL      string `yaml:"base_url"`
	Realm        string `yaml:"realm"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Upserter — приёмник записей при импорте.
type Upserter interface {
	Upsert(ctx context.Context, tr *model.TenantRealm) error
}

// LoadSeedFile читает YAML-файл тенантов. Значения client_secret
// поддерживают подстановку переменных окружения (${VAR}).
// Пустой base_url заменяется на defaultBaseURL.
func LoadSeedFile(path, defaultBaseURL string) ([]*model.TenantRealm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла тенантов: %w", err)
	}
	return ParseSeed(data, defaultBaseURL)
}

// ParseSeed разбирает и валидирует содержимое файла тенантов.
func ParseSeed(data []byte, defaultBaseURL string) ([]*model.TenantRealm, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор YAML тенантов: %w", err)
	}

	seen := make(map[string]bool, len(f.Tenants))
	out := make([]*model.TenantRealm, 0, len(f.Tenants))
	for i, t := range f.Tenants {
		if !ValidName(t.Name) {
			return nil, fmt.Errorf("тенант #%d: некорректное имя %q", i+1, t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("тенант %q указан повторно", t.Name)
		}
		seen[t.Name] = true

		if t.Realm == "" || t.ClientID == "" {
			return nil, fmt.Errorf("тенант %q: realm и client_id обязательны", t.Name)
		}
		secret := os.ExpandEnv(t.ClientSecret)
		if secret == "" {
			return nil, fmt.Errorf("тенант %q: client_secret пуст", t.Name)
		}

		baseURL := t.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		if baseURL == "" {
			return nil, fmt.Errorf("тенант %q: base_url не задан", t.Name)
		}

		out = append(out, &model.TenantRealm{
			Tenant:       t.Name,
			BaseURL:      strings.TrimRight(baseURL, "/"),
			Realm:        t.Realm,
			ClientID:     t.ClientID,
			ClientSecret: secret,
		})
	}
	return out, nil
}

// Import сохраняет тенанты через dst и сбрасывает их записи в кэше реестра.
// reg может быть nil (CLI-импорт без запущенного сервера).
func Import(ctx context.Context, dst Upserter, reg *Registry, tenants []*model.TenantRealm) error {
	for _, tr := range tenants {
		if err := dst.Upsert(ctx, tr); err != nil {
			return fmt.Errorf("импорт тенанта %q: %w", tr.Tenant, err)
		}
		if reg != nil {
			reg.Invalidate(tr.Tenant)
		}
	}
	return nil
}
