package keycloak

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrorKind — категория отказа шлюза.
type ErrorKind string

const (
	// KindUnknownTenant — тенант не зарегистрирован, запрос к IdP не отправлялся.
	KindUnknownTenant ErrorKind = "unknown_tenant"
	// KindTokenAcquisition — не удалось получить service token тенанта.
	KindTokenAcquisition ErrorKind = "token_acquisition"
	// KindUnreachable — транспортная ошибка (DNS, TCP, TLS, таймаут).
	KindUnreachable ErrorKind = "unreachable"
	// KindRejected — IdP ответил non-2xx.
	KindRejected ErrorKind = "rejected"
)

// Error — ошибка обращения к IdP.
// StatusCode заполнен только для KindRejected и KindTokenAcquisition
// (если IdP успел ответить), Message — техническое сообщение IdP.
type Error struct {
	Kind       ErrorKind
	Tenant     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "keycloak [%s] tenant=%s", e.Kind, e.Tenant)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError извлекает *Error из цепочки ошибок.
func AsError(err error) (*Error, bool) {
	var kcErr *Error
	if errors.As(err, &kcErr) {
		return kcErr, true
	}
	return nil, false
}

// IsStatus сообщает, что err — отказ IdP с указанным HTTP-статусом.
func IsStatus(err error, status int) bool {
	kcErr, ok := AsError(err)
	return ok && kcErr.StatusCode == status
}

// maxMessageLen ограничивает длину технического сообщения в ошибках и логах.
const maxMessageLen = 512

// errorBody — варианты тела ошибки Keycloak:
// Admin API — {"errorMessage": "..."} или {"error": "..."},
// OIDC endpoints — {"error": "invalid_grant", "error_description": "..."}.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorMessage     string `json:"errorMessage"`
}

// parseErrorMessage извлекает человекочитаемое сообщение из тела ответа.
func parseErrorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.ErrorMessage != "":
			return eb.ErrorMessage
		case eb.ErrorDescription != "":
			return eb.ErrorDescription
		case eb.Error != "":
			return eb.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	return truncateMessage(msg, maxMessageLen)
}

// truncateMessage обрезает msg до n байт по границе руны.
func truncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
