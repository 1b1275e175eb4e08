// Пакет service — обработчики команд и запросов брокера.
// Каждый обработчик принимает типизированную команду, проверяет ввод
// до обращения к IdP и оркестрирует вызовы репозиториев idp.
// Результат — result.Result; автоматических повторов нет.
package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/authbroker/internal/domain/errs"
	"github.com/bigkaa/authbroker/internal/result"
)

// rule — проверка одного поля команды.
type rule struct {
	ok     bool
	reason string
}

func required(field, value string) rule {
	return rule{ok: strings.TrimSpace(value) != "", reason: field + " is required"}
}

// id проверяет идентификатор ресурса IdP (UUID).
func id(field, value string) rule {
	if strings.TrimSpace(value) == "" {
		return required(field, value)
	}
	_, err := uuid.Parse(value)
	return rule{ok: err == nil, reason: field + " must be a UUID"}
}

func maxLen(field, value string, n int) rule {
	return rule{ok: len(value) <= n, reason: field + " is too long"}
}

// validate возвращает ошибку первой нарушенной проверки.
func validate(rules ...rule) (result.Error, bool) {
	for _, r := range rules {
		if !r.ok {
			return errs.Invalid(r.reason), false
		}
	}
	return result.Error{}, true
}
