package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/authbroker/internal/domain/rbac"
	"github.com/bigkaa/authbroker/internal/keycloak"
	"github.com/bigkaa/authbroker/internal/keycloak/kctest"
	"github.com/bigkaa/authbroker/internal/tenant"
)

var testRoles = rbac.RoleNames{Reader: "Feijuca.ApiReader", Writer: "Feijuca.ApiWriter"}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// authFixture — эмулятор Keycloak с тенантами acme и globex и роутер
// с маршрутами reader/writer под /api/v1/{tenant}.
type authFixture struct {
	srv    *kctest.Server
	store  *tenant.MemoryStore
	reg    *tenant.Registry
	keys   *TenantKeys
	router http.Handler
}

func setupAuth(t *testing.T) authFixture {
	t.Helper()

	srv := kctest.New()
	t.Cleanup(srv.Close)
	store := tenant.NewMemoryStore(srv.AddRealm("acme"), srv.AddRealm("globex"))
	reg := tenant.NewRegistry(store, 16, time.Minute, testLogger())
	gw := keycloak.New(reg, srv.Client(), testLogger())
	keys := NewTenantKeys(srv.Client(), time.Hour, testLogger())
	t.Cleanup(keys.Close)

	auth := NewJWTAuth(gw, keys, testRoles, 0, testLogger())

	r := chi.NewRouter()
	r.Route("/api/v1/{tenant}", func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"tenant":     claims.Tenant,
				"subject":    claims.Subject,
				"username":   claims.PreferredUsername,
				"capability": claims.Capability.String(),
			})
		})
		r.With(RequireCapability(rbac.CapabilityReader)).Get("/read", okHandler)
		r.With(RequireCapability(rbac.CapabilityWriter)).Post("/write", okHandler)
	})

	return authFixture{srv: srv, store: store, reg: reg, keys: keys, router: r}
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (f authFixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	return body
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	f := setupAuth(t)

	rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидался 401, получен %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "Auth.Unauthorized" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestJWTAuth_InvalidFormat(t *testing.T) {
	f := setupAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/acme/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался 401, получен %d", rec.Code)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", "not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался 401 для мусорного токена, получен %d", rec.Code)
	}
}

func TestJWTAuth_ValidToken(t *testing.T) {
	f := setupAuth(t)
	userID := f.srv.AddUser("acme", "alice", "password-123", testRoles.Writer)

	rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", f.srv.UserToken("acme", "alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["tenant"] != "acme" || body["subject"] != userID || body["username"] != "alice" {
		t.Errorf("неожиданные claims: %v", body)
	}
	if body["capability"] != "writer" {
		t.Errorf("capability = %q, ожидался writer", body["capability"])
	}
}

func TestJWTAuth_ForeignIssuerRejected(t *testing.T) {
	f := setupAuth(t)
	f.srv.AddUser("globex", "mallory", "password-123", testRoles.Writer)

	// Подпись валидна (общий ключ эмулятора), но issuer — realm другого тенанта
	rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", f.srv.UserToken("globex", "mallory"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался 401 для токена чужого realm, получен %d", rec.Code)
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	f := setupAuth(t)
	f.srv.AddUser("acme", "bob", "password-123", testRoles.Reader)
	f.srv.SetNow(func() time.Time { return time.Now().Add(-time.Hour) })
	token := f.srv.UserToken("acme", "bob")
	f.srv.SetNow(time.Now)

	if rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", token); rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался 401 для просроченного токена, получен %d", rec.Code)
	}
}

func TestJWTAuth_UnknownTenant(t *testing.T) {
	f := setupAuth(t)
	f.srv.AddUser("acme", "carol", "password-123", testRoles.Reader)

	rec := f.do(t, http.MethodGet, "/api/v1/initech/whoami", f.srv.UserToken("acme", "carol"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался 400, получен %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "Tenant.UnknownTenant" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestRequireCapability(t *testing.T) {
	f := setupAuth(t)
	f.srv.AddUser("acme", "reader", "password-123", testRoles.Reader)
	f.srv.AddUser("acme", "writer", "password-123", testRoles.Writer)
	f.srv.AddUser("acme", "nobody", "password-123", "offline_access")

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		want   int
	}{
		{"reader читает", "reader", http.MethodGet, "/api/v1/acme/read", http.StatusOK},
		{"reader не пишет", "reader", http.MethodPost, "/api/v1/acme/write", http.StatusForbidden},
		{"writer читает", "writer", http.MethodGet, "/api/v1/acme/read", http.StatusOK},
		{"writer пишет", "writer", http.MethodPost, "/api/v1/acme/write", http.StatusOK},
		{"без ролей не читает", "nobody", http.MethodGet, "/api/v1/acme/read", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, f.srv.UserToken("acme", tt.user))
			if rec.Code != tt.want {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireCapability_ClientRoles(t *testing.T) {
	f := setupAuth(t)
	userID := f.srv.AddUser("acme", "dave", "password-123")
	clientID := f.srv.AddClient("acme", "broker-api")
	roleID := f.srv.AddClientRole("acme", clientID, testRoles.Writer)
	groupID := f.srv.AddGroup("acme", "admins")
	f.srv.BindGroupRole("acme", groupID, clientID, roleID)
	f.srv.AddUserToGroup("acme", userID, groupID)

	rec := f.do(t, http.MethodPost, "/api/v1/acme/write", f.srv.UserToken("acme", "dave"))
	if rec.Code != http.StatusOK {
		t.Errorf("роль клиента должна давать writer, статус %d", rec.Code)
	}
}

func TestRequireCapability_NoClaims(t *testing.T) {
	handler := RequireCapability(rbac.CapabilityReader)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался 401 без claims, получен %d", rec.Code)
	}
}

func TestTenantKeys_ReusedPerRealm(t *testing.T) {
	f := setupAuth(t)
	tr := *f.srv.Tenant("acme")

	if _, err := f.keys.Keyfunc(tr); err != nil {
		t.Fatalf("Keyfunc: %v", err)
	}
	calls := f.srv.Calls(kctest.CertsPattern)

	if _, err := f.keys.Keyfunc(tr); err != nil {
		t.Fatalf("Keyfunc: %v", err)
	}
	if n := f.srv.Calls(kctest.CertsPattern); n != calls {
		t.Errorf("повторный Keyfunc загрузил JWKS заново: %d → %d", calls, n)
	}

	moved := tr
	moved.Realm = "globex"
	if _, err := f.keys.Keyfunc(moved); err != nil {
		t.Fatalf("Keyfunc после смены realm: %v", err)
	}
	if n := f.srv.RealmCalls("globex", kctest.CertsPattern); n == 0 {
		t.Error("после смены realm JWKS нового realm не загружен")
	}
}

func (k *TenantKeys) has(tenantName string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.sets[tenantName]
	return ok
}

func TestJWTAuth_RemovedTenantDropsKeys(t *testing.T) {
	f := setupAuth(t)
	f.srv.AddUser("acme", "dave", "password-123", testRoles.Reader)
	token := f.srv.UserToken("acme", "dave")

	if rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", token); rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	if !f.keys.has("acme") {
		t.Fatal("JWKS тенанта acme не закэширован")
	}

	f.store.Delete("acme")
	f.reg.Invalidate("acme")

	rec := f.do(t, http.MethodGet, "/api/v1/acme/whoami", token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался 400 для удалённого тенанта, получен %d", rec.Code)
	}
	if f.keys.has("acme") {
		t.Error("JWKS удалённого тенанта продолжает обновляться")
	}
}

func TestAuthClaims_AllRoles(t *testing.T) {
	c := &AuthClaims{
		RealmRoles: []string{"a", "b"},
		ClientRoles: map[string][]string{
			"z-client": {"c", "a"},
			"a-client": {"d"},
		},
	}
	got := c.AllRoles()
	want := []string{"a", "b", "d", "c"}
	if len(got) != len(want) {
		t.Fatalf("AllRoles() = %v, ожидалось %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllRoles() = %v, ожидалось %v", got, want)
		}
	}
}
