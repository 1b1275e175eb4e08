package keycloak

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/keycloak/kctest"
	"github.com/bigkaa/authbroker/internal/tenant"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupGateway поднимает эмулятор Keycloak с realm на каждый тенант
// и шлюз поверх реестра в памяти.
func setupGateway(t *testing.T, tenants ...string) (*kctest.Server, *Gateway) {
	t.Helper()

	srv := kctest.New()
	t.Cleanup(srv.Close)

	var records []*model.TenantRealm
	for _, name := range tenants {
		records = append(records, srv.AddRealm(name))
	}
	return srv, newGateway(srv, records...)
}

func newGateway(srv *kctest.Server, records ...*model.TenantRealm) *Gateway {
	reg := tenant.NewRegistry(tenant.NewMemoryStore(records...), 16, time.Minute, testLogger())
	return New(reg, srv.Client(), testLogger())
}

// requireKind проверяет категорию ошибки шлюза.
func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	kcErr, ok := AsError(err)
	if !ok {
		t.Fatalf("ожидалась *keycloak.Error, получено %v", err)
	}
	if kcErr.Kind != kind {
		t.Fatalf("Kind = %s, ожидался %s (%v)", kcErr.Kind, kind, err)
	}
	return kcErr
}

// TestGateway_ServiceTokenCaching проверяет, что service token запрашивается один раз.
func TestGateway_ServiceTokenCaching(t *testing.T) {
	srv, gw := setupGateway(t, "acme")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		var groups []GroupRepresentation
		if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, &groups); err != nil {
			t.Fatalf("Admin GET /groups: %v", err)
		}
	}

	if n := srv.TokenCalls("acme", "client_credentials"); n != 1 {
		t.Errorf("ожидался 1 запрос service token, было %d", n)
	}
	if n := srv.RealmCalls("acme", kctest.Admin("GET", "/groups")); n != 3 {
		t.Errorf("ожидалось 3 запроса /groups, было %d", n)
	}
}

// TestGateway_ServiceTokenRefreshMargin проверяет обновление токена за 30s до истечения.
func TestGateway_ServiceTokenRefreshMargin(t *testing.T) {
	srv, gw := setupGateway(t, "acme")
	ctx := context.Background()

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("первый запрос: %v", err)
	}

	// ServiceTokenTTL эмулятора — 5m: через 4m40s токен ещё в запасе 20s, что меньше 30s
	gw.now = func() time.Time { return time.Now().Add(4*time.Minute + 40*time.Second) }

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("второй запрос: %v", err)
	}
	if n := srv.TokenCalls("acme", "client_credentials"); n != 2 {
		t.Errorf("ожидалось 2 запроса service token, было %d", n)
	}
}

// TestGateway_ConcurrentRefreshSingleFlight проверяет, что конкурентные вызовы
// с истёкшим токеном порождают ровно один запрос токена и разделяют его.
func TestGateway_ConcurrentRefreshSingleFlight(t *testing.T) {
	srv, gw := setupGateway(t, "acme")
	ctx := context.Background()

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("прогрев: %v", err)
	}
	first := gw.tokens["acme"].accessToken

	gw.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	srv.Hook(kctest.TokenPattern, func(http.ResponseWriter, *http.Request) bool {
		time.Sleep(100 * time.Millisecond)
		return false
	})

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr, err := gw.Realm(ctx, "acme")
			if err != nil {
				errs[i] = err
				return
			}
			tokens[i], errs[i] = gw.serviceToken(ctx, tr)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("вызов %d: %v", i, err)
		}
	}
	for i := 1; i < callers; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("вызовы получили разные токены: %q и %q", tokens[0], tokens[i])
		}
	}
	if tokens[0] == first {
		t.Error("ожидался новый токен после истечения")
	}
	if n := srv.TokenCalls("acme", "client_credentials"); n != 2 {
		t.Errorf("ожидалось 2 запроса service token (прогрев + обновление), было %d", n)
	}
}

// TestGateway_RefreshWaitRespectsCancellation проверяет, что ожидание
// общего обновления прерывается отменой ctx, а токен всё равно кэшируется.
func TestGateway_RefreshWaitRespectsCancellation(t *testing.T) {
	srv, gw := setupGateway(t, "acme")

	release := make(chan struct{})
	srv.Hook(kctest.TokenPattern, func(http.ResponseWriter, *http.Request) bool {
		<-release
		return false
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ожидался DeadlineExceeded, получено %v", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		tr, _ := gw.Realm(context.Background(), "acme")
		if _, ok := gw.cached(tr); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("токен не закэширован после отмены ожидания")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := srv.RealmCalls("acme", kctest.Admin("GET", "/groups")); n != 0 {
		t.Errorf("запрос к Admin API не должен отправляться, было %d", n)
	}
}

// TestGateway_TokenAcquisitionFailure проверяет, что ошибка получения токена
// прерывает вызов до обращения к ресурсу.
func TestGateway_TokenAcquisitionFailure(t *testing.T) {
	srv := kctest.New()
	t.Cleanup(srv.Close)
	tr := srv.AddRealm("acme")
	tr.ClientSecret = "wrong"
	gw := newGateway(srv, tr)

	_, err := gw.Admin(context.Background(), "acme", http.MethodGet, "/groups", nil, nil)
	kcErr := requireKind(t, err, KindTokenAcquisition)
	if kcErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, ожидался 401", kcErr.StatusCode)
	}
	if kcErr.Message == "" {
		t.Error("ожидалось сообщение IdP")
	}
	if n := srv.Calls(kctest.Admin("GET", "/groups")); n != 0 {
		t.Errorf("запрос к Admin API не должен отправляться, было %d", n)
	}
}

// TestGateway_RejectedCarriesMessage проверяет перенос статуса и сообщения IdP.
func TestGateway_RejectedCarriesMessage(t *testing.T) {
	srv, gw := setupGateway(t, "acme")
	srv.AddGroup("acme", "readers")

	_, err := gw.Admin(context.Background(), "acme", http.MethodPost, "/groups",
		GroupRepresentation{Name: "readers"}, nil)
	kcErr := requireKind(t, err, KindRejected)
	if kcErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, ожидался 409", kcErr.StatusCode)
	}
	if want := "Top level group named 'readers' already exists."; kcErr.Message != want {
		t.Errorf("Message = %q, ожидалось %q", kcErr.Message, want)
	}
	if !IsStatus(err, http.StatusConflict) {
		t.Error("IsStatus(409) = false")
	}
}

// TestGateway_CreatedID проверяет извлечение ID из Location.
func TestGateway_CreatedID(t *testing.T) {
	srv, gw := setupGateway(t, "acme")

	resp, err := gw.Admin(context.Background(), "acme", http.MethodPost, "/groups",
		GroupRepresentation{Name: "writers"}, nil)
	if err != nil {
		t.Fatalf("создание группы: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, ожидался 201", resp.StatusCode)
	}

	var group GroupRepresentation
	if _, err := gw.Admin(context.Background(), "acme", http.MethodGet, "/groups/"+resp.CreatedID(), nil, &group); err != nil {
		t.Fatalf("чтение группы по CreatedID: %v", err)
	}
	if group.Name != "writers" {
		t.Errorf("Name = %q, ожидалось writers", group.Name)
	}
	if got := srv.GroupNames("acme"); len(got) != 1 {
		t.Errorf("групп = %v, ожидалась одна", got)
	}
}

// TestGateway_TenantIsolation проверяет, что ресурсы и токены тенантов не смешиваются.
func TestGateway_TenantIsolation(t *testing.T) {
	srv, gw := setupGateway(t, "acme", "globex")
	srv.AddGroup("acme", "readers")
	ctx := context.Background()

	var acme, globex []GroupRepresentation
	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, &acme); err != nil {
		t.Fatalf("acme: %v", err)
	}
	if _, err := gw.Admin(ctx, "globex", http.MethodGet, "/groups", nil, &globex); err != nil {
		t.Fatalf("globex: %v", err)
	}

	if len(acme) != 1 || len(globex) != 0 {
		t.Errorf("acme=%v globex=%v: группы не изолированы", acme, globex)
	}
	if srv.TokenCalls("acme", "client_credentials") != 1 || srv.TokenCalls("globex", "client_credentials") != 1 {
		t.Error("ожидался отдельный service token на каждый тенант")
	}
	if gw.tokens["acme"].accessToken == gw.tokens["globex"].accessToken {
		t.Error("тенанты разделяют service token")
	}
}

// TestGateway_RealmChangeDropsToken проверяет, что токен не переиспользуется после смены realm.
func TestGateway_RealmChangeDropsToken(t *testing.T) {
	srv := kctest.New()
	t.Cleanup(srv.Close)
	acme := srv.AddRealm("acme")
	other := srv.AddRealm("acme-v2")

	store := tenant.NewMemoryStore(acme)
	reg := tenant.NewRegistry(store, 16, time.Minute, testLogger())
	gw := New(reg, srv.Client(), testLogger())
	ctx := context.Background()

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("первый запрос: %v", err)
	}

	moved := *other
	moved.Tenant = "acme"
	if err := store.Upsert(ctx, &moved); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	reg.Invalidate("acme")

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("запрос после смены realm: %v", err)
	}
	if n := srv.TokenCalls("acme-v2", "client_credentials"); n != 1 {
		t.Errorf("ожидался запрос токена нового realm, было %d", n)
	}
}

// TestGateway_UnauthorizedInvalidatesToken проверяет сброс токена после 401 без повтора.
func TestGateway_UnauthorizedInvalidatesToken(t *testing.T) {
	srv, gw := setupGateway(t, "acme")
	ctx := context.Background()

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("прогрев: %v", err)
	}
	srv.ExpireServiceTokens("acme")

	_, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil)
	kcErr := requireKind(t, err, KindRejected)
	if kcErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, ожидался 401", kcErr.StatusCode)
	}
	if n := srv.TokenCalls("acme", "client_credentials"); n != 1 {
		t.Errorf("автоматического повтора быть не должно: запросов токена %d", n)
	}

	if _, err := gw.Admin(ctx, "acme", http.MethodGet, "/groups", nil, nil); err != nil {
		t.Fatalf("запрос после сброса токена: %v", err)
	}
	if n := srv.TokenCalls("acme", "client_credentials"); n != 2 {
		t.Errorf("ожидалось 2 запроса токена, было %d", n)
	}
}

// TestGateway_UnknownTenant проверяет отказ без обращения к IdP.
func TestGateway_UnknownTenant(t *testing.T) {
	srv, gw := setupGateway(t, "acme")

	for _, name := range []string{"globex", "Bad Tenant", ""} {
		_, err := gw.Admin(context.Background(), name, http.MethodGet, "/groups", nil, nil)
		requireKind(t, err, KindUnknownTenant)
		if !errors.Is(err, tenant.ErrUnknownTenant) {
			t.Errorf("%q: ожидалась цепочка с ErrUnknownTenant", name)
		}
	}
	if n := srv.Calls(kctest.TokenPattern); n != 0 {
		t.Errorf("запросов к IdP быть не должно, было %d", n)
	}
}

// TestGateway_Unreachable проверяет транспортную ошибку.
func TestGateway_Unreachable(t *testing.T) {
	srv := kctest.New()
	tr := srv.AddRealm("acme")
	srv.Close()
	gw := newGateway(srv, tr)

	_, err := gw.Token(context.Background(), "acme", url.Values{"grant_type": {"password"}})
	requireKind(t, err, KindUnreachable)

	_, err = gw.Admin(context.Background(), "acme", http.MethodGet, "/groups", nil, nil)
	requireKind(t, err, KindTokenAcquisition)
}

// TestGateway_MutationNotSentWhenCancelled проверяет, что мутация
// с отменённым ctx не отправляется.
func TestGateway_MutationNotSentWhenCancelled(t *testing.T) {
	srv, gw := setupGateway(t, "acme")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Admin(ctx, "acme", http.MethodPost, "/groups", GroupRepresentation{Name: "readers"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидался context.Canceled, получено %v", err)
	}
	if n := srv.Calls(kctest.Admin("POST", "/groups")); n != 0 {
		t.Errorf("мутация не должна отправляться, было %d", n)
	}
	if n := srv.Calls(kctest.TokenPattern); n != 0 {
		t.Errorf("токен не должен запрашиваться, было %d", n)
	}
}

// TestGateway_MutationCompletesAfterCancel проверяет, что отправленная мутация
// доводится до конца, а вызывающий получает ошибку отмены сразу.
func TestGateway_MutationCompletesAfterCancel(t *testing.T) {
	srv, gw := setupGateway(t, "acme")

	started := make(chan struct{})
	release := make(chan struct{})
	srv.Hook(kctest.Admin("POST", "/groups"), func(http.ResponseWriter, *http.Request) bool {
		close(started)
		<-release
		return false
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := gw.Admin(ctx, "acme", http.MethodPost, "/groups", GroupRepresentation{Name: "readers"}, nil)
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ожидался context.Canceled, получено %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("вызывающий не получил отмену")
	}

	close(release)
	gw.Wait()

	if names := srv.GroupNames("acme"); len(names) != 1 || names[0] != "readers" {
		t.Errorf("группы = %v, мутация должна завершиться", names)
	}
}

// TestGateway_WaitCoversCancelledMutation: Wait, начатый сразу после отмены,
// не возвращается раньше завершения мутации.
func TestGateway_WaitCoversCancelledMutation(t *testing.T) {
	srv, gw := setupGateway(t, "acme")

	started := make(chan struct{})
	release := make(chan struct{})
	srv.Hook(kctest.Admin("POST", "/groups"), func(http.ResponseWriter, *http.Request) bool {
		close(started)
		<-release
		return false
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := gw.Admin(ctx, "acme", http.MethodPost, "/groups", GroupRepresentation{Name: "readers"}, nil)
		errCh <- err
	}()

	<-started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидался context.Canceled, получено %v", err)
	}

	waited := make(chan struct{})
	go func() {
		gw.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait вернулся до завершения мутации")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait не вернулся после завершения мутации")
	}
	if names := srv.GroupNames("acme"); len(names) != 1 {
		t.Errorf("группы = %v, мутация должна завершиться", names)
	}
}

// TestGateway_WaitAfterCompletedMutations: завершённые без отмены мутации
// не оставляют незакрытых слотов.
func TestGateway_WaitAfterCompletedMutations(t *testing.T) {
	_, gw := setupGateway(t, "acme")
	ctx := context.Background()

	for _, name := range []string{"readers", "writers", "admins"} {
		if _, err := gw.Admin(ctx, "acme", http.MethodPost, "/groups", GroupRepresentation{Name: name}, nil); err != nil {
			t.Fatalf("создание %s: %v", name, err)
		}
	}

	waited := make(chan struct{})
	go func() {
		gw.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait завис после завершённых мутаций")
	}
}

// TestGateway_TokenGrants проверяет password и refresh_token grants и logout.
func TestGateway_TokenGrants(t *testing.T) {
	srv, gw := setupGateway(t, "acme")
	srv.AddUser("acme", "alice", "correct-horse")
	ctx := context.Background()

	_, err := gw.Token(ctx, "acme", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"wrong"},
	})
	kcErr := requireKind(t, err, KindRejected)
	if kcErr.StatusCode != http.StatusUnauthorized || kcErr.Message != "Invalid user credentials" {
		t.Errorf("неожиданный отказ: %v", kcErr)
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"correct-horse"},
	}
	tok, err := gw.Token(ctx, "acme", form)
	if err != nil {
		t.Fatalf("password grant: %v", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.ExpiresIn <= 0 {
		t.Fatalf("неполный ответ: %+v", tok)
	}
	if form.Get("client_secret") != "" {
		t.Error("Token не должен изменять форму вызывающего")
	}

	refreshed, err := gw.Token(ctx, "acme", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken},
	})
	if err != nil {
		t.Fatalf("refresh grant: %v", err)
	}
	if refreshed.RefreshToken == tok.RefreshToken {
		t.Error("ожидался новый refresh token")
	}

	if err := gw.Logout(ctx, "acme", refreshed.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n := srv.ActiveSessions("acme"); n != 0 {
		t.Errorf("активных сессий %d, ожидалось 0", n)
	}
	err = gw.Logout(ctx, "acme", refreshed.RefreshToken)
	requireKind(t, err, KindRejected)
}

// TestResponse_CreatedID проверяет разбор Location.
func TestResponse_CreatedID(t *testing.T) {
	tests := map[string]string{
		"":                                   "",
		"http://kc/admin/realms/a/users/42":  "42",
		"http://kc/admin/realms/a/users/42/": "42",
	}
	for location, want := range tests {
		r := &Response{Header: http.Header{}}
		if location != "" {
			r.Header.Set("Location", location)
		}
		if got := r.CreatedID(); got != want {
			t.Errorf("CreatedID(%q) = %q, ожидалось %q", location, got, want)
		}
	}
}

// TestParseErrorMessage проверяет извлечение сообщения из вариантов тела ошибки.
func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"errorMessage":"User exists with same username"}`, "User exists with same username"},
		{`{"error":"invalid_grant","error_description":"Invalid refresh token"}`, "Invalid refresh token"},
		{`{"error":"unknown_error"}`, "unknown_error"},
		{"  plain text  ", "plain text"},
	}
	for _, tt := range tests {
		if got := parseErrorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("parseErrorMessage(%s) = %q, ожидалось %q", tt.body, got, tt.want)
		}
	}
}

// TestParseErrorMessage_TruncatesOnRuneBoundary: граница обрезки приходится
// на середину двухбайтовой руны.
func TestParseErrorMessage_TruncatesOnRuneBoundary(t *testing.T) {
	prefix := strings.Repeat("a", maxMessageLen-1)
	body := prefix + strings.Repeat("ошибка ", 100)

	got := parseErrorMessage([]byte(body))
	if !utf8.ValidString(got) {
		t.Fatalf("сообщение не является валидным UTF-8: %q", got[len(got)-4:])
	}
	if got != prefix {
		t.Errorf("len = %d, ожидалось %d", len(got), len(prefix))
	}

	cyrillic := strings.Repeat("ж", maxMessageLen)
	got = parseErrorMessage([]byte(cyrillic))
	if len(got) != maxMessageLen || !utf8.ValidString(got) {
		t.Errorf("len = %d, valid = %v", len(got), utf8.ValidString(got))
	}
}
