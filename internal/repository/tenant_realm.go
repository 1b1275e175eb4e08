package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/authbroker/internal/domain/model"
)

// TenantRealmRepository — интерфейс CRUD для таблицы tenant_realms.
type TenantRealmRepository interface {
	// Create регистрирует новый тенант. Дубликат — ErrConflict.
	Create(ctx context.Context, tr *model.TenantRealm) error
	// Upsert создаёт или обновляет запись тенанта.
	Upsert(ctx context.Context, tr *model.TenantRealm) error
	// Get возвращает запись по идентификатору тенанта.
	Get(ctx context.Context, tenant string) (*model.TenantRealm, error)
	// List возвращает все тенанты, отсортированные по имени.
	List(ctx context.Context) ([]*model.TenantRealm, error)
	// Delete удаляет тенант из реестра.
	Delete(ctx context.Context, tenant string) error
}

// tenantRealmRepo — реализация TenantRealmRepository.
type tenantRealmRepo struct {
	db DBTX
}

// NewTenantRealmRepository создаёт репозиторий реестра тенантов.
func NewTenantRealmRepository(db DBTX) TenantRealmRepository {
	return &tenantRealmRepo{db: db}
}

const tenantRealmColumns = `tenant, base_url, realm, client_id, client_secret, created_at, updated_at`

func (r *tenantRealmRepo) Create(ctx context.Context, tr *model.TenantRealm) error {
	query := `
		INSERT INTO tenant_realms (tenant, base_url, realm, client_id, client_secret)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		tr.Tenant, tr.BaseURL, tr.Realm, tr.ClientID, tr.ClientSecret,
	).Scan(&tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if mapped := mapWriteError(err, tr); mapped != nil {
			return mapped
		}
		return fmt.Errorf("ошибка создания тенанта: %w", err)
	}
	return nil
}

func (r *tenantRealmRepo) Upsert(ctx context.Context, tr *model.TenantRealm) error {
	query := `
		INSERT INTO tenant_realms (tenant, base_url, realm, client_id, client_secret)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant) DO UPDATE
		SET base_url = EXCLUDED.base_url,
			realm = EXCLUDED.realm,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		tr.Tenant, tr.BaseURL, tr.Realm, tr.ClientID, tr.ClientSecret,
	).Scan(&tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if mapped := mapWriteError(err, tr); mapped != nil {
			return mapped
		}
		return fmt.Errorf("ошибка сохранения тенанта: %w", err)
	}
	return nil
}

func (r *tenantRealmRepo) Get(ctx context.Context, tenant string) (*model.TenantRealm, error) {
	query := `SELECT ` + tenantRealmColumns + ` FROM tenant_realms WHERE tenant = $1`

	tr := &model.TenantRealm{}
	err := r.db.QueryRow(ctx, query, tenant).Scan(
		&tr.Tenant, &tr.BaseURL, &tr.Realm, &tr.ClientID, &tr.ClientSecret,
		&tr.CreatedAt, &tr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения тенанта: %w", err)
	}
	return tr, nil
}

func (r *tenantRealmRepo) List(ctx context.Context) ([]*model.TenantRealm, error) {
	query := `SELECT ` + tenantRealmColumns + ` FROM tenant_realms ORDER BY tenant`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка тенантов: %w", err)
	}
	defer rows.Close()

	var result []*model.TenantRealm
	for rows.Next() {
		tr := &model.TenantRealm{}
		if err := rows.Scan(
			&tr.Tenant, &tr.BaseURL, &tr.Realm, &tr.ClientID, &tr.ClientSecret,
			&tr.CreatedAt, &tr.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования тенанта: %w", err)
		}
		result = append(result, tr)
	}
	return result, rows.Err()
}

func (r *tenantRealmRepo) Delete(ctx context.Context, tenant string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tenant_realms WHERE tenant = $1`, tenant)
	if err != nil {
		return fmt.Errorf("ошибка удаления тенанта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ограничения таблицы tenant_realms (см. миграцию 001).
const (
	constraintTenantPK     = "tenant_realms_pkey"
	constraintRealmUnique  = "idx_tenant_realms_base_url_realm"
	constraintTenantFormat = "tenant_realms_tenant_format"
)

// mapWriteError переводит нарушение ограничения в ErrConflict/ErrInvalid.
// nil — ошибка не связана с ограничениями.
func mapWriteError(err error, tr *model.TenantRealm) error {
	code, constraint, ok := violation(err)
	if !ok {
		return nil
	}
	switch {
	case code == codeUniqueViolation && constraint == constraintTenantPK:
		return fmt.Errorf("%w: тенант %q уже зарегистрирован", ErrConflict, tr.Tenant)
	case code == codeUniqueViolation && constraint == constraintRealmUnique:
		return fmt.Errorf("%w: realm %q на %s уже назначен другому тенанту", ErrConflict, tr.Realm, tr.BaseURL)
	case code == codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, constraint)
	case code == codeCheckViolation && constraint == constraintTenantFormat:
		return fmt.Errorf("%w: недопустимое имя тенанта %q", ErrInvalid, tr.Tenant)
	case code == codeCheckViolation:
		return fmt.Errorf("%w: %s", ErrInvalid, constraint)
	}
	return nil
}
