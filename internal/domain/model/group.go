package model

// Group — группа realm. Создаётся и удаляется целиком,
// привязки ролей — отдельное отношение.
type Group struct {
	ID   string
	Name string
	Path string
}

// Role — роль клиента (application) внутри realm.
// Без контекста клиента роль не имеет смысла.
type Role struct {
	ID          string
	Name        string
	Description string
	// ContainerID — внутренний ID клиента-владельца
	ContainerID string
}

// Client — приложение, зарегистрированное в realm.
type Client struct {
	// ID — внутренний идентификатор клиента в IdP
	ID string
	// ClientID — публичный clientId
	ClientID string
	Enabled  bool
}

// GroupRoleBinding — привязка роли клиента к группе в рамках тенанта.
// Существование группы и роли проверяется в IdP перед каждой мутацией.
type GroupRoleBinding struct {
	Tenant   string
	ClientID string
	GroupID  string
	RoleID   string
	RoleName string
}

// ClientRoles — роли одного клиента, привязанные к группе.
type ClientRoles struct {
	// ClientID — внутренний ID клиента
	ClientID string
	// Client — публичный clientId
	Client string
	Roles  []Role
}
