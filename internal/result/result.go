// Пакет result — единый контракт результата операций брокера.
// Каждый репозиторий и обработчик возвращает Result вместо ошибки
// для ожидаемых отказов (неверные credentials, not found, отказ IdP).
package result

import "fmt"

// Kind — категория ошибки. Используется внутри сервиса для логирования
// и метрик, клиенту не отдаётся.
type Kind string

const (
	// KindValidation — некорректный ввод, обнаруженный до сетевого вызова.
	KindValidation Kind = "validation"
	// KindNotFound — упомянутый ресурс не существует в IdP.
	KindNotFound Kind = "not_found"
	// KindRejected — IdP вернул non-2xx на корректный запрос.
	KindRejected Kind = "rejected"
	// KindUnreachable — транспортная ошибка.
	KindUnreachable Kind = "unreachable"
	// KindTokenInvalid — просроченный или отозванный токен.
	KindTokenInvalid Kind = "token_invalid"
)

// Error — стабильный машиночитаемый код и описание для диагностики.
// Техническое сообщение IdP дописывается в Description конкретного значения.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Kind        Kind   `json:"-"`
}

// NewError создаёт ошибку каталога.
func NewError(code, description string, kind Kind) Error {
	if code == "" {
		panic("result: пустой код ошибки")
	}
	return Error{Code: code, Description: description, Kind: kind}
}

// WithTechnical возвращает копию ошибки с техническим сообщением IdP.
func (e Error) WithTechnical(msg string) Error {
	if msg == "" {
		return e
	}
	e.Description = e.Description + " " + msg
	return e
}

// WithKind возвращает копию ошибки с другой категорией.
func (e Error) WithKind(kind Kind) Error {
	e.Kind = kind
	return e
}

// Error реализует интерфейс error (удобно для логирования).
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Result — tagged union Success(value) | Failure(error).
// После создания не изменяется.
type Result[T any] struct {
	value T
	err   *Error
}

// Success создаёт успешный результат.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure создаёт неуспешный результат.
func Failure[T any](err Error) Result[T] {
	if err.Code == "" {
		panic("result: Failure без кода ошибки")
	}
	return Result[T]{err: &err}
}

// IsSuccess возвращает true для Success.
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// Value возвращает значение. Для Failure — нулевое значение T.
func (r Result[T]) Value() T {
	return r.value
}

// Err возвращает ошибку. Для Success — нулевое значение Error.
func (r Result[T]) Err() Error {
	if r.err == nil {
		return Error{}
	}
	return *r.err
}

// Empty — результат без полезной нагрузки.
type Empty = Result[struct{}]

// Ok создаёт успешный Empty.
func Ok() Empty {
	return Success(struct{}{})
}

// Fail создаёт неуспешный Empty.
func Fail(err Error) Empty {
	return Failure[struct{}](err)
}

// Map преобразует значение успешного результата, Failure передаётся без изменений.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.IsSuccess() {
		return Failure[U](r.Err())
	}
	return Success(fn(r.value))
}
