package tenant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore — Store со счётчиком обращений.
type countingStore struct {
	inner Store
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *countingStore) Get(ctx context.Context, name string) (*model.TenantRealm, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.inner.Get(ctx, name)
}

func acme() *model.TenantRealm {
	return &model.TenantRealm{
		Tenant:       "acme",
		BaseURL:      "http://kc",
		Realm:        "acme-realm",
		ClientID:     "authbroker",
		ClientSecret: "s3cret",
	}
}

func TestRegistry_ResolveCaches(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore(acme())}
	reg := NewRegistry(store, 16, time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		tr, err := reg.Resolve(context.Background(), "acme")
		if err != nil {
			t.Fatalf("Resolve() ошибка: %v", err)
		}
		if tr.Realm != "acme-realm" {
			t.Errorf("Realm = %q, ожидали acme-realm", tr.Realm)
		}
	}
	if got := store.calls.Load(); got != 1 {
		t.Errorf("обращений к store = %d, ожидали 1", got)
	}

	// После Invalidate — повторная загрузка
	reg.Invalidate("acme")
	if _, err := reg.Resolve(context.Background(), "acme"); err != nil {
		t.Fatalf("Resolve() ошибка: %v", err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Errorf("обращений к store после Invalidate = %d, ожидали 2", got)
	}
}

func TestRegistry_UnknownTenant(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore(acme())}
	reg := NewRegistry(store, 16, time.Minute, testLogger())

	if _, err := reg.Resolve(context.Background(), "globex"); !errors.Is(err, ErrUnknownTenant) {
		t.Errorf("Resolve(globex) = %v, ожидали ErrUnknownTenant", err)
	}

	// Некорректное имя отклоняется без обращения к store
	before := store.calls.Load()
	for _, name := range []string{"", "ACME", "../acme", "a b"} {
		if _, err := reg.Resolve(context.Background(), name); !errors.Is(err, ErrUnknownTenant) {
			t.Errorf("Resolve(%q) = %v, ожидали ErrUnknownTenant", name, err)
		}
	}
	if store.calls.Load() != before {
		t.Error("некорректные имена не должны доходить до store")
	}
}

func TestRegistry_StoreFailureNotCached(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore(acme()), err: errors.New("connection refused")}
	reg := NewRegistry(store, 16, time.Minute, testLogger())

	_, err := reg.Resolve(context.Background(), "acme")
	if err == nil || errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("Resolve() = %v, ожидали инфраструктурную ошибку", err)
	}

	store.err = nil
	if _, err := reg.Resolve(context.Background(), "acme"); err != nil {
		t.Errorf("Resolve() после восстановления store: %v", err)
	}
}

func TestRegistry_ConcurrentMissLoadsOnce(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore(acme()), delay: 50 * time.Millisecond}
	reg := NewRegistry(store, 16, time.Minute, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Resolve(context.Background(), "acme"); err != nil {
				t.Errorf("Resolve() ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.calls.Load(); got != 1 {
		t.Errorf("обращений к store = %d, ожидали 1", got)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "acme"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Get() = %v, ожидали repository.ErrNotFound", err)
	}
}

// blockingStore держит Get до закрытия release и уважает отмену ctx.
type blockingStore struct {
	inner   Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (s *blockingStore) Get(ctx context.Context, name string) (*model.TenantRealm, error) {
	s.calls.Add(1)
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return s.inner.Get(ctx, name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRegistry_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := &blockingStore{
		inner:   NewMemoryStore(acme()),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := NewRegistry(store, 16, time.Minute, testLogger())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := reg.Resolve(ctxA, "acme")
		errA <- err
	}()
	<-store.started

	type outcome struct {
		tr  model.TenantRealm
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		tr, err := reg.Resolve(context.Background(), "acme")
		resB <- outcome{tr, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("отменённый вызывающий: ожидали context.Canceled, получили %v", err)
	}

	close(store.release)
	got := <-resB
	if got.err != nil {
		t.Fatalf("неотменённый вызывающий получил ошибку: %v", got.err)
	}
	if got.tr.Realm != "acme-realm" {
		t.Errorf("Realm = %q, ожидали acme-realm", got.tr.Realm)
	}
	if n := store.calls.Load(); n != 1 {
		t.Errorf("обращений к хранилищу = %d, ожидали 1", n)
	}
}
