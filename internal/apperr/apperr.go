package apperr

import (
	"errors"
	"net/http"
)

// Error — типизированная ошибка сервисного уровня, несёт HTTP-статус и сообщение.
// Сервисы возвращают её (обычно обернутую через fmt.Errorf с op),
// транспортный слой разворачивает через errors.As и мапит в JSON-конверт.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: http.StatusNotFound, Message: message}
}

func BadRequest(message string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Code: http.StatusUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: http.StatusForbidden, Message: message}
}

// From достаёт *Error из цепочки обёрток. Если её там нет — ошибка внутренняя.
func From(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
