package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout - ОС не ответила в пределах бюджета профиля.
	ErrTimeout = errors.New("capability: platform did not respond in time")
	// ErrPlatformUnavailable - адаптер не может подобрать примитив для типа и версии ОС.
	ErrPlatformUnavailable = errors.New("capability: no platform primitive for capability")
	// ErrInvalidContext - ошибка программиста, возвращается сразу на границе API.
	ErrInvalidContext = errors.New("capability: invalid request context")
)

// TransientPlatformError - ОС бросила ошибку, которую считаем повторяемой
// (например, вмешательство слоя безопасности производителя).
type TransientPlatformError struct {
	Primitive string
	Cause     error
}

func (e *TransientPlatformError) Error() string {
	return fmt.Sprintf("transient platform error on %s: %v", e.Primitive, e.Cause)
}

func (e *TransientPlatformError) Unwrap() error {
	return e.Cause
}

// ErrorTag помечает синтезированные результаты в metadata.
type ErrorTag string

const (
	TagNone                ErrorTag = ""
	TagTimeout             ErrorTag = "timeout"
	TagTransient           ErrorTag = "transient"
	TagPlatformUnavailable ErrorTag = "platform_unavailable"
	TagPlatformError       ErrorTag = "platform_error"
	TagEducationDeclined   ErrorTag = "education_declined"
	TagCanceled            ErrorTag = "canceled"
)

// Classify раскладывает ошибку платформенного слоя по таксономии.
func Classify(err error) ErrorTag {
	var tErr *TransientPlatformError
	switch {
	case err == nil:
		return TagNone
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return TagTimeout
	case errors.As(err, &tErr):
		return TagTransient
	case errors.Is(err, ErrPlatformUnavailable):
		return TagPlatformUnavailable
	case errors.Is(err, context.Canceled):
		return TagCanceled
	default:
		return TagPlatformError
	}
}

// IsRetriable: таймаут и временный сбой ОС.
func IsRetriable(err error) bool {
	switch Classify(err) {
	case TagTimeout, TagTransient:
		return true
	}
	return false
}
