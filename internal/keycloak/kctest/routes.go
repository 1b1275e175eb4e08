package kctest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// --- JSON-представления (подмножество Keycloak) ---

type userJSON struct {
	ID               string              `json:"id,omitempty"`
	Username         string              `json:"username"`
	Email            string              `json:"email,omitempty"`
	FirstName        string              `json:"firstName,omitempty"`
	LastName         string              `json:"lastName,omitempty"`
	Enabled          bool                `json:"enabled"`
	EmailVerified    bool                `json:"emailVerified"`
	CreatedTimestamp int64               `json:"createdTimestamp,omitempty"`
	Attributes       map[string][]string `json:"attributes,omitempty"`
}

type groupJSON struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

type roleJSON struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

type clientJSON struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Enabled  bool   `json:"enabled"`
}

type credentialJSON struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (u *user) json() userJSON {
	return userJSON{
		ID:               u.id,
		Username:         u.username,
		Email:            u.email,
		FirstName:        u.firstName,
		LastName:         u.lastName,
		Enabled:          u.enabled,
		EmailVerified:    u.emailVerified,
		CreatedTimestamp: u.created.UnixMilli(),
		Attributes:       u.attributes,
	}
}

func (g *group) json() groupJSON {
	return groupJSON{ID: g.id, Name: g.name, Path: "/" + g.name}
}

func (r *role) json() roleJSON {
	return roleJSON{ID: r.id, Name: r.name, Description: r.description, ClientRole: true, ContainerID: r.containerID}
}

// minPasswordLen — политика паролей realm.
const minPasswordLen = 8

// --- Маршруты ---

type realmHandler func(w http.ResponseWriter, r *http.Request, rl *realm)

func (s *Server) routes() {
	s.handle(RealmPattern, s.realmInfo)
	s.handle(CertsPattern, func(w http.ResponseWriter, _ *http.Request, _ *realm) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.JWKS())
	})
	s.handle(TokenPattern, s.token)
	s.handle(LogoutPattern, s.logout)

	s.admin("GET", "/users", s.listUsers)
	s.admin("POST", "/users", s.createUser)
	s.admin("GET", "/users/{id}", s.getUser)
	s.admin("DELETE", "/users/{id}", s.deleteUser)
	s.admin("PUT", "/users/{id}/reset-password", s.resetPassword)
	s.admin("PUT", "/users/{id}/send-verify-email", s.sendVerifyEmail)
	s.admin("GET", "/users/{id}/groups", s.userGroups)
	s.admin("PUT", "/users/{id}/groups/{groupId}", s.joinGroup)
	s.admin("DELETE", "/users/{id}/groups/{groupId}", s.leaveGroup)

	s.admin("GET", "/groups", s.listGroups)
	s.admin("POST", "/groups", s.createGroup)
	s.admin("GET", "/groups/{id}", s.getGroup)
	s.admin("DELETE", "/groups/{id}", s.deleteGroup)
	s.admin("GET", "/groups/{id}/members", s.groupMembers)
	s.admin("GET", "/groups/{id}/role-mappings", s.groupRoleMappings)
	s.admin("GET", "/groups/{id}/role-mappings/clients/{client}", s.groupClientRoles)
	s.admin("POST", "/groups/{id}/role-mappings/clients/{client}", s.addGroupClientRoles)
	s.admin("DELETE", "/groups/{id}/role-mappings/clients/{client}", s.removeGroupClientRoles)

	s.admin("GET", "/clients", s.listClients)
	s.admin("GET", "/clients/{id}/roles", s.listClientRoles)
	s.admin("POST", "/clients/{id}/roles", s.createClientRole)
	s.admin("GET", "/clients/{id}/roles/{roleName}", s.getClientRole)
}

// handle регистрирует маршрут: счётчик, hook, realm lookup, блокировка.
func (s *Server) handle(pattern string, fn realmHandler) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		realmName := r.PathValue("realm")

		s.mu.Lock()
		s.calls[pattern]++
		s.calls[pattern+"@"+realmName]++
		hook := s.hooks[pattern]
		s.mu.Unlock()

		if hook != nil && hook(w, r) {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		rl := s.realms[realmName]
		if rl == nil {
			writeError(w, http.StatusNotFound, "error", "Realm does not exist")
			return
		}
		fn(w, r, rl)
	})
}

// admin регистрирует маршрут Admin API с проверкой service token realm.
func (s *Server) admin(method, path string, fn realmHandler) {
	s.handle(Admin(method, path), func(w http.ResponseWriter, r *http.Request, rl *realm) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		expiry, known := rl.serviceTokens[token]
		if !ok || !known || !s.now().Before(expiry) {
			writeError(w, http.StatusUnauthorized, "error", "HTTP 401 Unauthorized")
			return
		}
		fn(w, r, rl)
	})
}

// --- OIDC ---

func (s *Server) realmInfo(w http.ResponseWriter, _ *http.Request, rl *realm) {
	writeJSON(w, http.StatusOK, map[string]string{
		"realm":             rl.name,
		"token-service":     s.issuer(rl) + "/protocol/openid-connect",
		"account-service":   s.issuer(rl) + "/account",
		"tokens-not-before": "0",
	})
}

func (s *Server) checkClient(w http.ResponseWriter, r *http.Request, rl *realm) bool {
	if r.PostFormValue("client_id") != rl.brokerClient || r.PostFormValue("client_secret") != rl.brokerSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client or Invalid client credentials",
		})
		return false
	}
	return true
}

func (s *Server) token(w http.ResponseWriter, r *http.Request, rl *realm) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "error", "invalid_request")
		return
	}
	grant := r.PostFormValue("grant_type")
	s.calls["grant:"+grant+"@"+rl.name]++

	if !s.checkClient(w, r, rl) {
		return
	}

	switch grant {
	case "client_credentials":
		tok := "svc-" + uuid.NewString()
		rl.serviceTokens[tok] = s.now().Add(s.ServiceTokenTTL)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": tok,
			"token_type":   "Bearer",
			"expires_in":   int(s.ServiceTokenTTL.Seconds()),
		})

	case "password":
		u := rl.userByName(r.PostFormValue("username"))
		if u == nil || u.password == "" || u.password != r.PostFormValue("password") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid user credentials",
			})
			return
		}
		if !u.enabled {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Account disabled",
			})
			return
		}
		sess := &session{id: uuid.NewString(), userID: u.id}
		s.issueUserTokens(w, rl, u, sess)

	case "refresh_token":
		sess := rl.sessionByRefresh(r.PostFormValue("refresh_token"))
		if sess == nil || !s.now().Before(sess.expiry) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid refresh token",
			})
			return
		}
		u := rl.users[sess.userID]
		if u == nil {
			delete(rl.sessions, sess.id)
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "User not found",
			})
			return
		}
		s.issueUserTokens(w, rl, u, sess)

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "unsupported_grant_type",
			"error_description": "Unsupported grant_type",
		})
	}
}

// issueUserTokens выдаёт новую пару токенов, ротируя refresh token сессии.
func (s *Server) issueUserTokens(w http.ResponseWriter, rl *realm, u *user, sess *session) {
	access, err := s.signAccessToken(rl, u, sess.id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error", err.Error())
		return
	}
	sess.refreshToken = "rt-" + uuid.NewString()
	sess.expiry = s.now().Add(s.RefreshTokenTTL)
	rl.sessions[sess.id] = sess

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":       access,
		"refresh_token":      sess.refreshToken,
		"token_type":         "Bearer",
		"expires_in":         int(s.AccessTokenTTL.Seconds()),
		"refresh_expires_in": int(s.RefreshTokenTTL.Seconds()),
		"session_state":      sess.id,
		"scope":              "openid profile email",
	})
}

func (rl *realm) sessionByRefresh(token string) *session {
	if token == "" {
		return nil
	}
	for _, sess := range rl.sessions {
		if sess.refreshToken == token {
			return sess
		}
	}
	return nil
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, rl *realm) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "error", "invalid_request")
		return
	}
	if !s.checkClient(w, r, rl) {
		return
	}
	sess := rl.sessionByRefresh(r.PostFormValue("refresh_token"))
	if sess == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid refresh token",
		})
		return
	}
	delete(rl.sessions, sess.id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, rl *realm) {
	q := r.URL.Query()
	username := strings.ToLower(q.Get("username"))
	exact := q.Get("exact") == "true"
	search := strings.ToLower(q.Get("search"))

	users := make([]*user, 0, len(rl.users))
	for _, u := range rl.users {
		switch {
		case username != "" && exact && u.username != username:
			continue
		case username != "" && !exact && !strings.Contains(u.username, username):
			continue
		case search != "" && !strings.Contains(u.username, search) && !strings.Contains(u.email, search):
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].username < users[j].username })

	first, _ := strconv.Atoi(q.Get("first"))
	maxN, err := strconv.Atoi(q.Get("max"))
	if err != nil || maxN <= 0 {
		maxN = 100
	}
	out := make([]userJSON, 0)
	for i := first; i < len(users) && len(out) < maxN; i++ {
		out = append(out, users[i].json())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, rl *realm) {
	var body struct {
		userJSON
		Credentials []credentialJSON `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "errorMessage", "Invalid JSON")
		return
	}
	username := strings.ToLower(strings.TrimSpace(body.Username))
	if username == "" {
		writeError(w, http.StatusBadRequest, "errorMessage", "User name is missing")
		return
	}
	if rl.userByName(username) != nil {
		writeError(w, http.StatusConflict, "errorMessage", "User exists with same username")
		return
	}
	email := strings.ToLower(body.Email)
	if email != "" {
		for _, u := range rl.users {
			if u.email == email {
				writeError(w, http.StatusConflict, "errorMessage", "User exists with same email")
				return
			}
		}
	}

	u := &user{
		id:            uuid.NewString(),
		username:      username,
		email:         email,
		firstName:     body.FirstName,
		lastName:      body.LastName,
		enabled:       body.Enabled,
		emailVerified: body.EmailVerified,
		created:       s.now(),
		attributes:    body.Attributes,
		groups:        make(map[string]bool),
	}
	for _, c := range body.Credentials {
		if c.Type == "password" {
			u.password = c.Value
		}
	}
	rl.users[u.id] = u

	w.Header().Set("Location", s.URL+"/admin/realms/"+rl.name+"/users/"+u.id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, rl *realm) {
	u := rl.users[r.PathValue("id")]
	if u == nil {
		writeError(w, http.StatusNotFound, "error", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u.json())
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, rl *realm) {
	id := r.PathValue("id")
	if rl.users[id] == nil {
		writeError(w, http.StatusNotFound, "error", "User not found")
		return
	}
	delete(rl.users, id)
	for sid, sess := range rl.sessions {
		if sess.userID == id {
			delete(rl.sessions, sid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request, rl *realm) {
	u := rl.users[r.PathValue("id")]
	if u == nil {
		writeError(w, http.StatusNotFound, "error", "User not found")
		return
	}
	var cred credentialJSON
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "errorMessage", "Invalid JSON")
		return
	}
	if len(cred.Value) < minPasswordLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalidPasswordMinLengthMessage",
			"error_description": "Invalid password: minimum length 8.",
		})
		return
	}
	u.password = cred.Value
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendVerifyEmail(w http.ResponseWriter, r *http.Request, rl *realm) {
	u := rl.users[r.PathValue("id")]
	if u == nil {
		writeError(w, http.StatusNotFound, "error", "User not found")
		return
	}
	if u.email == "" {
		writeError(w, http.StatusBadRequest, "errorMessage", "User email missing")
		return
	}
	u.verifyEmails++
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) userGroups(w http.ResponseWriter, r *http.Request, rl *realm) {
	u := rl.users[r.PathValue("id")]
	if u == nil {
		writeError(w, http.StatusNotFound, "error", "User not found")
		return
	}
	out := make([]groupJSON, 0, len(u.groups))
	for gid := range u.groups {
		if g := rl.groups[gid]; g != nil {
			out = append(out, g.json())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) joinGroup(w http.ResponseWriter, r *http.Request, rl *realm) {
	u, g := rl.users[r.PathValue("id")], rl.groups[r.PathValue("groupId")]
	if u == nil || g == nil {
		writeError(w, http.StatusNotFound, "error", "User or group not found")
		return
	}
	u.groups[g.id] = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) leaveGroup(w http.ResponseWriter, r *http.Request, rl *realm) {
	u, g := rl.users[r.PathValue("id")], rl.groups[r.PathValue("groupId")]
	if u == nil || g == nil {
		writeError(w, http.StatusNotFound, "error", "User or group not found")
		return
	}
	delete(u.groups, g.id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Groups ---

func (s *Server) listGroups(w http.ResponseWriter, _ *http.Request, rl *realm) {
	out := make([]groupJSON, 0, len(rl.groups))
	for _, g := range rl.groups {
		out = append(out, g.json())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request, rl *realm) {
	var body groupJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "errorMessage", "Group name is missing")
		return
	}
	for _, g := range rl.groups {
		if g.name == body.Name {
			writeError(w, http.StatusConflict, "errorMessage", "Top level group named '"+body.Name+"' already exists.")
			return
		}
	}
	g := &group{id: uuid.NewString(), name: body.Name, clientRoles: make(map[string]map[string]bool)}
	rl.groups[g.id] = g

	w.Header().Set("Location", s.URL+"/admin/realms/"+rl.name+"/groups/"+g.id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request, rl *realm) {
	g := rl.groups[r.PathValue("id")]
	if g == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find group by id")
		return
	}
	writeJSON(w, http.StatusOK, g.json())
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request, rl *realm) {
	id := r.PathValue("id")
	if rl.groups[id] == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find group by id")
		return
	}
	delete(rl.groups, id)
	for _, u := range rl.users {
		delete(u.groups, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) groupMembers(w http.ResponseWriter, r *http.Request, rl *realm) {
	g := rl.groups[r.PathValue("id")]
	if g == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find group by id")
		return
	}
	out := make([]userJSON, 0)
	for _, u := range rl.users {
		if u.groups[g.id] {
			out = append(out, u.json())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) groupRoleMappings(w http.ResponseWriter, r *http.Request, rl *realm) {
	g := rl.groups[r.PathValue("id")]
	if g == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find group by id")
		return
	}

	type clientMapping struct {
		ID       string     `json:"id"`
		Client   string     `json:"client"`
		Mappings []roleJSON `json:"mappings"`
	}
	mappings := make(map[string]clientMapping)
	for cid, roleIDs := range g.clientRoles {
		c := rl.clients[cid]
		if c == nil || len(roleIDs) == 0 {
			continue
		}
		cm := clientMapping{ID: c.id, Client: c.clientID}
		for rid := range roleIDs {
			if ro := c.roles[rid]; ro != nil {
				cm.Mappings = append(cm.Mappings, ro.json())
			}
		}
		sort.Slice(cm.Mappings, func(i, j int) bool { return cm.Mappings[i].Name < cm.Mappings[j].Name })
		mappings[c.clientID] = cm
	}
	writeJSON(w, http.StatusOK, map[string]any{"clientMappings": mappings})
}

// groupAndClient разрешает {id} и {client} маршрутов role-mappings.
func groupAndClient(w http.ResponseWriter, r *http.Request, rl *realm) (*group, *client, bool) {
	g := rl.groups[r.PathValue("id")]
	if g == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find group by id")
		return nil, nil, false
	}
	c := rl.clients[r.PathValue("client")]
	if c == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find client")
		return nil, nil, false
	}
	return g, c, true
}

func (s *Server) groupClientRoles(w http.ResponseWriter, r *http.Request, rl *realm) {
	g, c, ok := groupAndClient(w, r, rl)
	if !ok {
		return
	}
	out := make([]roleJSON, 0)
	for rid := range g.clientRoles[c.id] {
		if ro := c.roles[rid]; ro != nil {
			out = append(out, ro.json())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// resolveRoles находит роли клиента из тела запроса (по id или name).
func resolveRoles(w http.ResponseWriter, r *http.Request, c *client) ([]*role, bool) {
	var body []roleJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "errorMessage", "Invalid JSON")
		return nil, false
	}
	out := make([]*role, 0, len(body))
	for _, rj := range body {
		var found *role
		for _, ro := range c.roles {
			if (rj.ID != "" && ro.id == rj.ID) || (rj.ID == "" && ro.name == rj.Name) {
				found = ro
				break
			}
		}
		if found == nil {
			writeError(w, http.StatusNotFound, "error", "Role not found")
			return nil, false
		}
		out = append(out, found)
	}
	return out, true
}

func (s *Server) addGroupClientRoles(w http.ResponseWriter, r *http.Request, rl *realm) {
	g, c, ok := groupAndClient(w, r, rl)
	if !ok {
		return
	}
	roles, ok := resolveRoles(w, r, c)
	if !ok {
		return
	}
	if g.clientRoles[c.id] == nil {
		g.clientRoles[c.id] = make(map[string]bool)
	}
	for _, ro := range roles {
		g.clientRoles[c.id][ro.id] = true
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeGroupClientRoles(w http.ResponseWriter, r *http.Request, rl *realm) {
	g, c, ok := groupAndClient(w, r, rl)
	if !ok {
		return
	}
	roles, ok := resolveRoles(w, r, c)
	if !ok {
		return
	}
	for _, ro := range roles {
		delete(g.clientRoles[c.id], ro.id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Clients ---

func (s *Server) listClients(w http.ResponseWriter, r *http.Request, rl *realm) {
	filter := r.URL.Query().Get("clientId")
	out := make([]clientJSON, 0, len(rl.clients))
	for _, c := range rl.clients {
		if filter != "" && c.clientID != filter {
			continue
		}
		out = append(out, clientJSON{ID: c.id, ClientID: c.clientID, Enabled: c.enabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listClientRoles(w http.ResponseWriter, r *http.Request, rl *realm) {
	c := rl.clients[r.PathValue("id")]
	if c == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find client")
		return
	}
	out := make([]roleJSON, 0, len(c.roles))
	for _, ro := range c.roles {
		out = append(out, ro.json())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createClientRole(w http.ResponseWriter, r *http.Request, rl *realm) {
	c := rl.clients[r.PathValue("id")]
	if c == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find client")
		return
	}
	var body roleJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "errorMessage", "Role name is missing")
		return
	}
	for _, ro := range c.roles {
		if ro.name == body.Name {
			writeError(w, http.StatusConflict, "errorMessage", "Role with name "+body.Name+" already exists")
			return
		}
	}
	ro := &role{id: uuid.NewString(), name: body.Name, description: body.Description, containerID: c.id}
	c.roles[ro.id] = ro

	w.Header().Set("Location", s.URL+"/admin/realms/"+rl.name+"/clients/"+c.id+"/roles/"+ro.name)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getClientRole(w http.ResponseWriter, r *http.Request, rl *realm) {
	c := rl.clients[r.PathValue("id")]
	if c == nil {
		writeError(w, http.StatusNotFound, "error", "Could not find client")
		return
	}
	name := r.PathValue("roleName")
	for _, ro := range c.roles {
		if ro.name == name {
			writeJSON(w, http.StatusOK, ro.json())
			return
		}
	}
	writeError(w, http.StatusNotFound, "error", "Could not find role")
}
