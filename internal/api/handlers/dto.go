// dto.go — JSON-представления запросов и ответов API брокера.
package handlers

import (
	"time"

	"github.com/bigkaa/authbroker/internal/api/middleware"
	"github.com/bigkaa/authbroker/internal/domain/model"
)

// --- Запросы ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type groupRoleRequest struct {
	ClientID string `json:"clientId"`
	RoleID   string `json:"roleId"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createUserRequest struct {
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Password   string              `json:"password"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// --- Ответы ---

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
}

type userResponse struct {
	ID            string              `json:"id"`
	Username      string              `json:"username"`
	Email         string              `json:"email,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       bool                `json:"enabled"`
	EmailVerified bool                `json:"emailVerified"`
	CreatedAt     *time.Time          `json:"createdAt,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

type groupResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClientID    string `json:"clientId,omitempty"`
}

type clientResponse struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Enabled  bool   `json:"enabled"`
}

type clientRolesResponse struct {
	ClientID string         `json:"clientId"`
	Client   string         `json:"client"`
	Roles    []roleResponse `json:"roles"`
}

type decodedTokenResponse struct {
	Tenant            string              `json:"tenant"`
	Subject           string              `json:"sub"`
	Issuer            string              `json:"iss"`
	PreferredUsername string              `json:"preferredUsername"`
	Email             string              `json:"email,omitempty"`
	Name              string              `json:"name,omitempty"`
	GivenName         string              `json:"givenName,omitempty"`
	FamilyName        string              `json:"familyName,omitempty"`
	AuthorizedParty   string              `json:"azp,omitempty"`
	SessionID         string              `json:"sid,omitempty"`
	RealmRoles        []string            `json:"realmRoles"`
	ClientRoles       map[string][]string `json:"clientRoles"`
	Capability        string              `json:"capability"`
	ExpiresAt         time.Time           `json:"expiresAt"`
	IssuedAt          *time.Time          `json:"issuedAt,omitempty"`
}

// --- Маппинг ---

func mapToken(t model.TokenDetails) tokenResponse {
	return tokenResponse{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenType:        t.TokenType,
		ExpiresIn:        t.ExpiresIn,
		RefreshExpiresIn: t.RefreshExpiresIn,
	}
}

func mapUser(u model.User) userResponse {
	resp := userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Enabled:       u.Enabled,
		EmailVerified: u.EmailVerified,
		Attributes:    u.Attributes,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func mapUsers(users []model.User) []userResponse {
	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = mapUser(u)
	}
	return items
}

func mapGroup(g model.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, Path: g.Path}
}

func mapGroups(groups []model.Group) []groupResponse {
	items := make([]groupResponse, len(groups))
	for i, g := range groups {
		items[i] = mapGroup(g)
	}
	return items
}

func mapRoles(roles []model.Role) []roleResponse {
	items := make([]roleResponse, len(roles))
	for i, r := range roles {
		items[i] = roleResponse{ID: r.ID, Name: r.Name, Description: r.Description, ClientID: r.ContainerID}
	}
	return items
}

func mapClients(clients []model.Client) []clientResponse {
	items := make([]clientResponse, len(clients))
	for i, c := range clients {
		items[i] = clientResponse{ID: c.ID, ClientID: c.ClientID, Enabled: c.Enabled}
	}
	return items
}

func mapClientRoles(bindings []model.ClientRoles) []clientRolesResponse {
	items := make([]clientRolesResponse, len(bindings))
	for i, b := range bindings {
		items[i] = clientRolesResponse{ClientID: b.ClientID, Client: b.Client, Roles: mapRoles(b.Roles)}
	}
	return items
}

func mapClaims(c *middleware.AuthClaims) decodedTokenResponse {
	resp := decodedTokenResponse{
		Tenant:            c.Tenant,
		Subject:           c.Subject,
		Issuer:            c.Issuer,
		PreferredUsername: c.PreferredUsername,
		Email:             c.Email,
		Name:              c.Name,
		GivenName:         c.GivenName,
		FamilyName:        c.FamilyName,
		AuthorizedParty:   c.AuthorizedParty,
		SessionID:         c.SessionID,
		RealmRoles:        c.RealmRoles,
		ClientRoles:       c.ClientRoles,
		Capability:        c.Capability.String(),
		ExpiresAt:         c.ExpiresAt,
	}
	if resp.RealmRoles == nil {
		resp.RealmRoles = []string{}
	}
	if !c.IssuedAt.IsZero() {
		issued := c.IssuedAt
		resp.IssuedAt = &issued
	}
	return resp
}
