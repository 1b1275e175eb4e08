// Пакет model — доменные модели брокера.
package model

import "time"

// User — пользователь realm тенанта.
// Не хранится брокером — проецируется из представления IdP.
type User struct {
	// ID — идентификатор пользователя в IdP
	ID string
	// Username — имя пользователя
	Username string
	// Email — адрес электронной почты
	Email string
	// FirstName — имя
	FirstName string
	// LastName — фамилия
	LastName string
	// Enabled — активен ли аккаунт
	Enabled bool
	// EmailVerified — подтверждён ли email
	EmailVerified bool
	// CreatedAt — дата создания в IdP
	CreatedAt time.Time
	// Attributes — произвольные атрибуты пользователя
	Attributes map[string][]string
}

// NewUser — данные для создания пользователя.
type NewUser struct {
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Password   string
	Attributes map[string][]string
}

// TokenDetails — пара токенов, выданная IdP.
// Создаётся при Login/Refresh и сразу отдаётся наружу, не сохраняется.
type TokenDetails struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int
	RefreshExpiresIn int
}

// UserFilter — параметры выборки пользователей realm.
type UserFilter struct {
	// Search — подстрока username/email/имени
	Search string
	// First — смещение
	First int
	// Max — размер страницы
	Max int
}
