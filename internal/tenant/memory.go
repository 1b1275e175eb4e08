package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/repository"
)

// MemoryStore — Store в памяти. Используется в тестах и для
// запуска без PostgreSQL (tenants-файл как единственный источник).
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]model.TenantRealm
}

// NewMemoryStore создаёт хранилище с начальным набором тенантов.
func NewMemoryStore(tenants ...*model.TenantRealm) *MemoryStore {
	s := &MemoryStore{tenants: make(map[string]model.TenantRealm, len(tenants))}
	for _, tr := range tenants {
		s.tenants[tr.Tenant] = *tr
	}
	return s
}

// Get возвращает копию записи или repository.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, name string) (*model.TenantRealm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.tenants[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tr, nil
}

// Upsert создаёт или заменяет запись.
func (s *MemoryStore) Upsert(_ context.Context, tr *model.TenantRealm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.tenants[tr.Tenant]; ok {
		tr.CreatedAt = prev.CreatedAt
	} else {
		tr.CreatedAt = now
	}
	tr.UpdatedAt = now
	s.tenants[tr.Tenant] = *tr
	return nil
}

// Delete удаляет запись. Отсутствующая запись — не ошибка.
func (s *MemoryStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, name)
}
