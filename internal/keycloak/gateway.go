// gateway.go — шлюз к Keycloak с изоляцией по тенантам.
// Каждый вызов начинается с разрешения тенанта в realm через реестр.
// Service token (Client Credentials flow) кэшируется отдельно для каждого
// тенанта и обновляется за 30s до expiration одним запросом на тенант
// (singleflight). Автоматических повторов нет.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/authbroker/internal/domain/model"
	"github.com/bigkaa/authbroker/internal/tenant"
)

const (
	// tokenRefreshMargin — service token считается истёкшим заранее.
	tokenRefreshMargin = 30 * time.Second
	// maxBodySize — предел чтения тела ответа IdP.
	maxBodySize = 10 << 20
)

// Resolver разрешает тенант в realm (реализуется tenant.Registry).
type Resolver interface {
	Resolve(ctx context.Context, name string) (model.TenantRealm, error)
}

// Response — успешный (2xx) ответ Admin API.
type Response struct {
	StatusCode int
	Header     http.Header
}

// CreatedID возвращает ID созданного ресурса из заголовка Location
// (Keycloak отвечает 201 с Location: .../{id}).
func (r *Response) CreatedID() string {
	location := r.Header.Get("Location")
	if location == "" {
		return ""
	}
	location = strings.TrimRight(location, "/")
	return location[strings.LastIndex(location, "/")+1:]
}

// cachedToken — service token тенанта.
type cachedToken struct {
	accessToken string
	// issuer фиксирует realm, для которого получен токен:
	// после смены realm тенанта токен не переиспользуется.
	issuer string
	expiry time.Time
}

// Gateway — HTTP-шлюз к Keycloak для всех тенантов.
// HTTP-клиент (пул соединений) общий, токены и URL — по тенанту.
type Gateway struct {
	resolver   Resolver
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken
	sf     singleflight.Group

	// inflight — мутации, продолжающиеся после отмены запроса клиента.
	inflight sync.WaitGroup

	now func() time.Time
}

// New создаёт шлюз.
// httpClient — HTTP-клиент (может содержать TLS конфигурацию), nil — таймаут 30s.
func New(resolver Resolver, httpClient *http.Client, logger *slog.Logger) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Gateway{
		resolver:   resolver,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "keycloak_gateway")),
		tokens:     make(map[string]cachedToken),
		now:        time.Now,
	}
}

// Realm разрешает тенант. Незарегистрированный тенант — *Error{Kind: KindUnknownTenant}.
func (g *Gateway) Realm(ctx context.Context, name string) (model.TenantRealm, error) {
	tr, err := g.resolver.Resolve(ctx, name)
	if err == nil {
		return tr, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.TenantRealm{}, ctxErr
	}
	if errors.Is(err, tenant.ErrUnknownTenant) {
		return model.TenantRealm{}, &Error{Kind: KindUnknownTenant, Tenant: name, Err: err}
	}
	return model.TenantRealm{}, &Error{Kind: KindUnreachable, Tenant: name, Message: "реестр тенантов недоступен", Err: err}
}

// Wait ожидает завершения мутаций, отвязанных от отменённых запросов.
// Вызывается при graceful shutdown.
func (g *Gateway) Wait() {
	g.inflight.Wait()
}

// --- Service token ---

// InvalidateToken удаляет кэшированный service token тенанта.
func (g *Gateway) InvalidateToken(name string) {
	g.mu.Lock()
	delete(g.tokens, name)
	g.mu.Unlock()
}

// cached возвращает service token, если он действителен ещё tokenRefreshMargin.
func (g *Gateway) cached(tr model.TenantRealm) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tok, ok := g.tokens[tr.Tenant]
	if !ok || tok.issuer != tr.Issuer() {
		return "", false
	}
	if !g.now().Add(tokenRefreshMargin).Before(tok.expiry) {
		return "", false
	}
	return tok.accessToken, true
}

// serviceToken возвращает service token тенанта, запрашивая новый при необходимости.
// Конкурентные вызовы для одного тенанта разделяют один запрос к IdP.
// Ожидание прерывается отменой ctx вызывающего; сам запрос токена
// завершается независимо и кэширует результат для остальных.
func (g *Gateway) serviceToken(ctx context.Context, tr model.TenantRealm) (string, error) {
	if tok, ok := g.cached(tr); ok {
		return tok, nil
	}

	ch := g.sf.DoChan(tr.Tenant, func() (any, error) {
		// Пока ждали очереди, токен мог обновить предыдущий запрос
		if tok, ok := g.cached(tr); ok {
			return tok, nil
		}
		return g.refreshServiceToken(context.WithoutCancel(ctx), tr)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refreshServiceToken выполняет Client Credentials flow и кэширует токен.
func (g *Gateway) refreshServiceToken(ctx context.Context, tr model.TenantRealm) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tr.ClientID},
		"client_secret": {tr.ClientSecret},
	}

	data, err := g.postForm(ctx, tr, opServiceToken, tokenEndpoint(tr), form)
	if err != nil {
		serviceTokenRefreshTotal.WithLabelValues("error").Inc()
		return "", tokenAcquisitionError(tr.Tenant, err)
	}

	var token TokenResponse
	if err := json.Unmarshal(data, &token); err != nil || token.AccessToken == "" {
		serviceTokenRefreshTotal.WithLabelValues("error").Inc()
		return "", &Error{Kind: KindTokenAcquisition, Tenant: tr.Tenant, Message: "некорректный ответ token endpoint", Err: err}
	}

	expiry := g.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	g.mu.Lock()
	g.tokens[tr.Tenant] = cachedToken{
		accessToken: token.AccessToken,
		issuer:      tr.Issuer(),
		expiry:      expiry,
	}
	g.mu.Unlock()
	serviceTokenRefreshTotal.WithLabelValues("ok").Inc()

	g.logger.Debug("Service token тенанта обновлён",
		slog.String("tenant", tr.Tenant),
		slog.String("realm", tr.Realm),
		slog.Time("expires_at", expiry),
	)

	return token.AccessToken, nil
}

// tokenAcquisitionError переводит ошибку token endpoint в KindTokenAcquisition,
// сохраняя статус и сообщение IdP.
func tokenAcquisitionError(name string, err error) error {
	out := &Error{Kind: KindTokenAcquisition, Tenant: name, Err: err}
	if kcErr, ok := AsError(err); ok {
		out.StatusCode = kcErr.StatusCode
		out.Message = kcErr.Message
		out.Err = kcErr.Err
	}
	return out
}

// --- Admin REST API ---

// Admin выполняет запрос к Admin REST API realm тенанта.
// path — путь относительно /admin/realms/{realm} (сегменты уже экранированы).
// body сериализуется в JSON, ответ 2xx декодируется в target (если не nil).
//
// Мутирующий запрос (не GET/HEAD) с уже отменённым ctx не отправляется.
// Отправленная мутация выполняется до конца, даже если вызывающий
// отменил ctx; вызывающий в этом случае сразу получает ctx.Err(),
// а итог мутации попадает в лог.
func (g *Gateway) Admin(ctx context.Context, name, method, path string, body, target any) (*Response, error) {
	tr, err := g.Realm(ctx, name)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
	}

	mutating := method != http.MethodGet && method != http.MethodHead
	if mutating {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	token, err := g.serviceToken(ctx, tr)
	if err != nil {
		return nil, err
	}

	var (
		resp *Response
		data []byte
	)
	if mutating {
		var out adminOutcome
		out, err = runDetached(ctx, g, method+" "+path, name, func(dctx context.Context) (adminOutcome, error) {
			r, d, sendErr := g.sendAdmin(dctx, tr, token, method, path, payload)
			return adminOutcome{resp: r, data: d}, sendErr
		})
		resp, data = out.resp, out.data
	} else {
		resp, data, err = g.sendAdmin(ctx, tr, token, method, path, payload)
	}
	if err != nil {
		return nil, err
	}

	if target != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, target); err != nil {
			return nil, &Error{Kind: KindRejected, Tenant: name, StatusCode: resp.StatusCode,
				Message: "некорректный JSON в ответе Keycloak", Err: err}
		}
	}
	return resp, nil
}

type adminOutcome struct {
	resp *Response
	data []byte
}

// sendAdmin отправляет один запрос к Admin API. 401 сбрасывает service token тенанта.
func (g *Gateway) sendAdmin(ctx context.Context, tr model.TenantRealm, token, method, path string, payload []byte) (*Response, []byte, error) {
	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	reqURL := adminBaseURL(tr) + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, status, header, err := g.do(ctx, tr, opAdmin, req)
	if err != nil {
		return nil, nil, err
	}

	if status == http.StatusUnauthorized {
		g.InvalidateToken(tr.Tenant)
	}
	if status < 200 || status >= 300 {
		return nil, nil, &Error{Kind: KindRejected, Tenant: tr.Tenant, StatusCode: status, Message: parseErrorMessage(data)}
	}
	return &Response{StatusCode: status, Header: header}, data, nil
}

// --- OIDC endpoints ---

// Token вызывает token endpoint realm тенанта (password, refresh_token grants).
// client_id и client_secret тенанта добавляются автоматически.
func (g *Gateway) Token(ctx context.Context, name string, form url.Values) (*TokenResponse, error) {
	tr, err := g.Realm(ctx, name)
	if err != nil {
		return nil, err
	}

	f := cloneForm(form)
	f.Set("client_id", tr.ClientID)
	f.Set("client_secret", tr.ClientSecret)

	data, err := g.postForm(ctx, tr, opToken, tokenEndpoint(tr), f)
	if err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, &Error{Kind: KindRejected, Tenant: name, StatusCode: http.StatusOK,
			Message: "некорректный ответ token endpoint", Err: err}
	}
	return &token, nil
}

// Logout завершает сессию, которой принадлежит refresh token.
// Это мутация: отправленный запрос доводится до конца при отмене ctx.
func (g *Gateway) Logout(ctx context.Context, name, refreshToken string) error {
	tr, err := g.Realm(ctx, name)
	if err != nil {
		return err
	}

	form := url.Values{
		"client_id":     {tr.ClientID},
		"client_secret": {tr.ClientSecret},
		"refresh_token": {refreshToken},
	}

	_, err = runDetached(ctx, g, opLogout, name, func(dctx context.Context) ([]byte, error) {
		return g.postForm(dctx, tr, opLogout, logoutEndpoint(tr), form)
	})
	return err
}

// postForm отправляет application/x-www-form-urlencoded и возвращает тело 2xx ответа.
func (g *Gateway) postForm(ctx context.Context, tr model.TenantRealm, op, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	data, status, _, err := g.do(ctx, tr, op, req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &Error{Kind: KindRejected, Tenant: tr.Tenant, StatusCode: status, Message: parseErrorMessage(data)}
	}
	return data, nil
}

// do выполняет HTTP-запрос, читает тело и пишет метрики.
// Транспортная ошибка — KindUnreachable, отмена ctx — ctx.Err().
func (g *Gateway) do(ctx context.Context, tr model.TenantRealm, op string, req *http.Request) ([]byte, int, http.Header, error) {
	start := time.Now()
	resp, err := g.httpClient.Do(req) //nolint:gosec // G704: URL из реестра тенантов
	if err != nil {
		observeUpstream(op, statusLabelError, start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, nil, ctxErr
		}
		g.logger.Warn("Keycloak недоступен",
			slog.String("tenant", tr.Tenant),
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, 0, nil, &Error{Kind: KindUnreachable, Tenant: tr.Tenant, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	observeUpstream(op, statusLabel(resp.StatusCode), start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, nil, ctxErr
		}
		return nil, 0, nil, &Error{Kind: KindUnreachable, Tenant: tr.Tenant, Message: "чтение ответа", Err: err}
	}

	if resp.StatusCode >= 400 {
		g.logger.Debug("Keycloak отклонил запрос",
			slog.String("tenant", tr.Tenant),
			slog.String("operation", op),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
		)
	}
	return data, resp.StatusCode, resp.Header, nil
}

// runDetached выполняет мутацию fn на контексте без отмены.
// Если ctx отменён до отправки — fn не вызывается.
// Если ctx отменён во время выполнения — возвращается ctx.Err(),
// fn продолжает работу, итог логируется.
func runDetached[T any](ctx context.Context, g *Gateway, op, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)

	// Второй слот резервируется заранее за горутиной логирования:
	// Add после отмены мог бы пересечься с Wait.
	g.inflight.Add(2)
	go func() {
		defer g.inflight.Done()
		v, err := fn(context.WithoutCancel(ctx))
		ch <- outcome{v: v, err: err}
	}()

	select {
	case o := <-ch:
		g.inflight.Done()
		return o.v, o.err
	case <-ctx.Done():
		go func() {
			defer g.inflight.Done()
			o := <-ch
			if o.err != nil {
				g.logger.Warn("Мутация после отмены запроса завершилась ошибкой",
					slog.String("tenant", name),
					slog.String("operation", op),
					slog.String("error", o.err.Error()),
				)
				return
			}
			g.logger.Info("Мутация после отмены запроса выполнена",
				slog.String("tenant", name),
				slog.String("operation", op),
			)
		}()
		return zero, ctx.Err()
	}
}

// --- URL helpers ---

// tokenEndpoint возвращает URL endpoint'а получения токена.
func tokenEndpoint(tr model.TenantRealm) string {
	return tr.Issuer() + "/protocol/openid-connect/token"
}

// logoutEndpoint возвращает URL endpoint'а завершения сессии.
func logoutEndpoint(tr model.TenantRealm) string {
	return tr.Issuer() + "/protocol/openid-connect/logout"
}

// adminBaseURL возвращает базовый URL Admin REST API для realm.
func adminBaseURL(tr model.TenantRealm) string {
	return fmt.Sprintf("%s/admin/realms/%s", tr.BaseURL, url.PathEscape(tr.Realm))
}

func cloneForm(form url.Values) url.Values {
	out := make(url.Values, len(form)+2)
	for k, v := range form {
		out[k] = append([]string(nil), v...)
	}
	return out
}
