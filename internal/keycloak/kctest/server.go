// Пакет kctest — in-memory эмуляция Keycloak для тестов.
// Поддерживает token/logout/certs endpoints и подмножество Admin REST API
// (users, groups, clients, client roles, group role mappings).
// Access tokens пользователей — RS256 JWT, подписанные ключом сервера,
// service tokens — непрозрачные строки, привязанные к realm.
package kctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/authbroker/internal/domain/model"
)

// KeyID — kid ключа подписи сервера.
const KeyID = "kctest-rs256"

// Шаблоны маршрутов OIDC endpoints (ключи для Calls и Hook).
const (
	TokenPattern  = "POST /realms/{realm}/protocol/openid-connect/token"
	LogoutPattern = "POST /realms/{realm}/protocol/openid-connect/logout"
	CertsPattern  = "GET /realms/{realm}/protocol/openid-connect/certs"
	RealmPattern  = "GET /realms/{realm}"
)

// Admin возвращает шаблон маршрута Admin API (ключ для Calls и Hook).
// Например Admin("GET", "/groups") → "GET /admin/realms/{realm}/groups".
func Admin(method, path string) string {
	return method + " /admin/realms/{realm}" + path
}

// Hook перехватывает запрос до обработчика. true — ответ уже записан.
type Hook func(w http.ResponseWriter, r *http.Request) bool

// Server — эмулятор Keycloak.
type Server struct {
	*httptest.Server

	// AccessTokenTTL — время жизни access token пользователя.
	AccessTokenTTL time.Duration
	// RefreshTokenTTL — время жизни refresh token.
	RefreshTokenTTL time.Duration
	// ServiceTokenTTL — время жизни service token (client_credentials).
	ServiceTokenTTL time.Duration

	key *rsa.PrivateKey
	mux *http.ServeMux

	mu     sync.Mutex
	realms map[string]*realm
	calls  map[string]int
	hooks  map[string]Hook
	now    func() time.Time
}

type realm struct {
	name          string
	brokerClient  string
	brokerSecret  string
	users         map[string]*user
	groups        map[string]*group
	clients       map[string]*client
	serviceTokens map[string]time.Time
	sessions      map[string]*session
}

type user struct {
	id            string
	username      string
	email         string
	firstName     string
	lastName      string
	enabled       bool
	emailVerified bool
	created       time.Time
	attributes    map[string][]string
	password      string
	realmRoles    []string
	groups        map[string]bool
	verifyEmails  int
}

type group struct {
	id   string
	name string
	// clientRoles — clientInternalID → roleID
	clientRoles map[string]map[string]bool
}

type client struct {
	id       string
	clientID string
	enabled  bool
	roles    map[string]*role
}

type role struct {
	id          string
	name        string
	description string
	containerID string
}

type session struct {
	id           string
	userID       string
	refreshToken string
	expiry       time.Time
}

// New запускает эмулятор. Останавливается через t.Cleanup вызывающего (srv.Close).
func New() *Server {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("kctest: генерация RSA ключа: " + err.Error())
	}

	s := &Server{
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 30 * time.Minute,
		ServiceTokenTTL: 5 * time.Minute,
		key:             key,
		mux:             http.NewServeMux(),
		realms:          make(map[string]*realm),
		calls:           make(map[string]int),
		hooks:           make(map[string]Hook),
		now:             time.Now,
	}
	s.routes()
	s.Server = httptest.NewServer(s.mux)
	return s
}

// SetNow подменяет часы сервера (exp токенов, истечение service tokens).
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Hook устанавливает перехватчик для шаблона маршрута; nil — снимает.
func (s *Server) Hook(pattern string, h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		delete(s.hooks, pattern)
		return
	}
	s.hooks[pattern] = h
}

// Calls возвращает число запросов к шаблону маршрута (по всем realm).
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// RealmCalls возвращает число запросов к шаблону маршрута для realm.
func (s *Server) RealmCalls(realmName, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern+"@"+realmName]
}

// TokenCalls возвращает число запросов token endpoint с указанным grant_type.
func (s *Server) TokenCalls(realmName, grant string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls["grant:"+grant+"@"+realmName]
}

// PublicKey возвращает публичный ключ подписи токенов.
func (s *Server) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// JWKS возвращает JWKS JSON сервера.
func (s *Server) JWKS() json.RawMessage {
	pub := &s.key.PublicKey
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": KeyID,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// --- Наполнение ---

// AddRealm создаёт realm с confidential client брокера
// и возвращает запись тенанта с тем же именем.
func (s *Server) AddRealm(name string) *model.TenantRealm {
	s.mu.Lock()
	defer s.mu.Unlock()

	rl := &realm{
		name:          name,
		brokerClient:  "authbroker",
		brokerSecret:  "secret-" + name,
		users:         make(map[string]*user),
		groups:        make(map[string]*group),
		clients:       make(map[string]*client),
		serviceTokens: make(map[string]time.Time),
		sessions:      make(map[string]*session),
	}
	broker := &client{id: uuid.NewString(), clientID: rl.brokerClient, enabled: true, roles: make(map[string]*role)}
	rl.clients[broker.id] = broker
	s.realms[name] = rl

	return s.tenantLocked(name)
}

// Tenant возвращает запись тенанта для существующего realm.
func (s *Server) Tenant(name string) *model.TenantRealm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenantLocked(name)
}

func (s *Server) tenantLocked(name string) *model.TenantRealm {
	rl := s.realms[name]
	if rl == nil {
		return nil
	}
	return &model.TenantRealm{
		Tenant:       name,
		BaseURL:      s.URL,
		Realm:        name,
		ClientID:     rl.brokerClient,
		ClientSecret: rl.brokerSecret,
	}
}

// AddUser создаёт пользователя с паролем и realm-ролями, возвращает ID.
func (s *Server) AddUser(realmName, username, password string, realmRoles ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl := s.mustRealm(realmName)
	u := &user{
		id:         uuid.NewString(),
		username:   strings.ToLower(username),
		email:      strings.ToLower(username) + "@example.test",
		enabled:    true,
		created:    s.now(),
		password:   password,
		realmRoles: realmRoles,
		groups:     make(map[string]bool),
	}
	rl.users[u.id] = u
	return u.id
}

// AddGroup создаёт группу и возвращает её ID.
func (s *Server) AddGroup(realmName, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl := s.mustRealm(realmName)
	g := &group{id: uuid.NewString(), name: name, clientRoles: make(map[string]map[string]bool)}
	rl.groups[g.id] = g
	return g.id
}

// AddClient создаёт клиента и возвращает его внутренний ID.
func (s *Server) AddClient(realmName, clientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl := s.mustRealm(realmName)
	c := &client{id: uuid.NewString(), clientID: clientID, enabled: true, roles: make(map[string]*role)}
	rl.clients[c.id] = c
	return c.id
}

// AddClientRole создаёт роль клиента и возвращает её ID.
func (s *Server) AddClientRole(realmName, clientInternalID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.mustRealm(realmName).clients[clientInternalID]
	if c == nil {
		panic("kctest: клиент не найден: " + clientInternalID)
	}
	r := &role{id: uuid.NewString(), name: name, containerID: c.id}
	c.roles[r.id] = r
	return r.id
}

// BindGroupRole привязывает роль клиента к группе.
func (s *Server) BindGroupRole(realmName, groupID, clientInternalID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.mustRealm(realmName).groups[groupID]
	if g == nil {
		panic("kctest: группа не найдена: " + groupID)
	}
	if g.clientRoles[clientInternalID] == nil {
		g.clientRoles[clientInternalID] = make(map[string]bool)
	}
	g.clientRoles[clientInternalID][roleID] = true
}

// AddUserToGroup добавляет пользователя в группу.
func (s *Server) AddUserToGroup(realmName, userID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.mustRealm(realmName).users[userID]
	if u == nil {
		panic("kctest: пользователь не найден: " + userID)
	}
	u.groups[groupID] = true
}

// GroupHasRole сообщает, привязана ли роль к группе.
func (s *Server) GroupHasRole(realmName, groupID, clientInternalID, roleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.mustRealm(realmName).groups[groupID]
	return g != nil && g.clientRoles[clientInternalID][roleID]
}

// GroupNames возвращает имена групп realm (отсортированы).
func (s *Server) GroupNames(realmName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, g := range s.mustRealm(realmName).groups {
		names = append(names, g.name)
	}
	sort.Strings(names)
	return names
}

// UserID возвращает ID пользователя по username ("" если нет).
func (s *Server) UserID(realmName, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.mustRealm(realmName).userByName(username); u != nil {
		return u.id
	}
	return ""
}

// UserInGroup сообщает, состоит ли пользователь в группе.
func (s *Server) UserInGroup(realmName, userID, groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.mustRealm(realmName).users[userID]
	return u != nil && u.groups[groupID]
}

// PasswordOf возвращает текущий пароль пользователя.
func (s *Server) PasswordOf(realmName, userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.mustRealm(realmName).users[userID]; u != nil {
		return u.password
	}
	return ""
}

// VerifyEmailsSent возвращает число отправленных писем подтверждения.
func (s *Server) VerifyEmailsSent(realmName, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.mustRealm(realmName).users[userID]; u != nil {
		return u.verifyEmails
	}
	return 0
}

// ActiveSessions возвращает число активных сессий realm.
func (s *Server) ActiveSessions(realmName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mustRealm(realmName).sessions)
}

// ExpireServiceTokens делает все выданные service tokens realm недействительными.
func (s *Server) ExpireServiceTokens(realmName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl := s.mustRealm(realmName)
	for tok := range rl.serviceTokens {
		delete(rl.serviceTokens, tok)
	}
}

// UserToken выдаёт access token пользователю напрямую (минуя password grant).
func (s *Server) UserToken(realmName, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl := s.mustRealm(realmName)
	u := rl.userByName(username)
	if u == nil {
		panic("kctest: пользователь не найден: " + username)
	}
	tok, err := s.signAccessToken(rl, u, uuid.NewString())
	if err != nil {
		panic("kctest: подпись токена: " + err.Error())
	}
	return tok
}

func (s *Server) mustRealm(name string) *realm {
	rl := s.realms[name]
	if rl == nil {
		panic("kctest: realm не найден: " + name)
	}
	return rl
}

func (rl *realm) userByName(username string) *user {
	username = strings.ToLower(username)
	for _, u := range rl.users {
		if u.username == username {
			return u
		}
	}
	return nil
}

// --- Токены ---

func (s *Server) issuer(rl *realm) string {
	return s.URL + "/realms/" + rl.name
}

// signAccessToken подписывает access token пользователя.
// Роли клиентов берутся из групп пользователя (resource_access).
func (s *Server) signAccessToken(rl *realm, u *user, sessionID string) (string, error) {
	now := s.now()
	resourceAccess := map[string]any{}
	for gid := range u.groups {
		g := rl.groups[gid]
		if g == nil {
			continue
		}
		for cid, roleIDs := range g.clientRoles {
			c := rl.clients[cid]
			if c == nil {
				continue
			}
			var names []string
			if existing, ok := resourceAccess[c.clientID].(map[string]any); ok {
				names = existing["roles"].([]string)
			}
			for rid := range roleIDs {
				if r := c.roles[rid]; r != nil {
					names = append(names, r.name)
				}
			}
			sort.Strings(names)
			resourceAccess[c.clientID] = map[string]any{"roles": names}
		}
	}

	claims := jwt.MapClaims{
		"iss":                s.issuer(rl),
		"sub":                u.id,
		"aud":                "account",
		"azp":                rl.brokerClient,
		"typ":                "Bearer",
		"jti":                uuid.NewString(),
		"sid":                sessionID,
		"exp":                jwt.NewNumericDate(now.Add(s.AccessTokenTTL)),
		"iat":                jwt.NewNumericDate(now),
		"preferred_username": u.username,
		"email":              u.email,
		"scope":              "openid profile email",
		"realm_access":       map[string]any{"roles": append([]string{}, u.realmRoles...)},
		"resource_access":    resourceAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = KeyID
	return token.SignedString(s.key)
}

// --- HTTP helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, field, msg string) {
	writeJSON(w, status, map[string]string{field: msg})
}
