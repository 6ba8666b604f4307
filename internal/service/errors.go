package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// ErrorKind classifies service failures so the transport can pick a status.
type ErrorKind string

// Error kinds surfaced by the services.
const (
	KindInvalidInput          ErrorKind = "invalid_input"
	KindAuthenticationFailure ErrorKind = "authentication_failure"
	KindAccountDisabled       ErrorKind = "account_disabled"
	KindForbidden             ErrorKind = "forbidden"
	KindNotFound              ErrorKind = "not_found"
	KindConflict              ErrorKind = "conflict"
	KindStoreUnavailable      ErrorKind = "store_unavailable"
	KindInternal              ErrorKind = "internal"
)

// Error is a classified service failure. Message is safe to show to clients;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return KindInvalidInput
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func invalidInput(message string) error {
	return newError(KindInvalidInput, message, nil)
}

func forbidden(message string) error {
	return newError(KindForbidden, message, nil)
}

func notFound(message string) error {
	return newError(KindNotFound, message, nil)
}

func conflict(message string) error {
	return newError(KindConflict, message, nil)
}

// storeFailure classifies an error returned by a repository call.
func storeFailure(operation string, err error) error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newError(KindConflict, "record already exists", err)
	case isUnavailable(err):
		return newError(KindStoreUnavailable, "data store unavailable", fmt.Errorf("%s: %w", operation, err))
	default:
		return newError(KindInternal, "internal error", fmt.Errorf("%s: %w", operation, err))
	}
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// validationFailure turns validator output into an invalid_input error with a readable message.
func validationFailure(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return newError(KindInvalidInput, "invalid payload", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, describeFieldError(fieldErr))
	}
	return newError(KindInvalidInput, strings.Join(messages, "; "), err)
}

func describeFieldError(fieldErr validator.FieldError) string {
	field := snakeCase(fieldErr.Field())
	switch fieldErr.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	case "email":
		return field + " must be a valid email address"
	default:
		return field + " is invalid"
	}
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 && !unicode.IsUpper(rune(name[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
