package gateway

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindDuplicateRegistration ErrorKind = "duplicate_registration"
	KindInvalidCredentials    ErrorKind = "invalid_credentials"
	KindEmailUnconfirmed      ErrorKind = "email_unconfirmed"
	KindUnreachable           ErrorKind = "unreachable"
	KindGeneric               ErrorKind = "generic"
)

// Error is a structured failure reported by the gateway, classified
// into a user-facing category with a generic fallback.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

// UserMessage maps the category to a message suitable for the UI.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindDuplicateRegistration:
		return "Este correo ya está registrado. Por favor inicia sesión."
	case KindInvalidCredentials:
		return "Credenciales incorrectas. Verifica tu correo y contraseña."
	case KindEmailUnconfirmed:
		return "Por favor verifica tu correo electrónico antes de iniciar sesión."
	case KindUnreachable:
		return "No se pudo contactar al servidor. Verifica tu conexión a internet."
	default:
		return "Ocurrió un error inesperado. Por favor intenta nuevamente."
	}
}

// Classify builds an Error from a backend status and message, matching
// on the message text the way the auth service reports these cases.
func Classify(status int, message string) *Error {
	kind := KindGeneric
	switch {
	case strings.Contains(message, "User already registered"),
		strings.Contains(message, "user_already_exists"):
		kind = KindDuplicateRegistration
	case strings.Contains(message, "Invalid login credentials"),
		strings.Contains(message, "invalid_credentials"):
		kind = KindInvalidCredentials
	case strings.Contains(message, "Email not confirmed"),
		strings.Contains(message, "email_not_confirmed"):
		kind = KindEmailUnconfirmed
	case status == 422:
		kind = KindInvalidCredentials
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

// Unreachable wraps a transport failure: the backend could not be
// contacted at all. This is the only failure class that may surface the
// full-screen connection-error state.
func Unreachable(err error) *Error {
	return &Error{Kind: KindUnreachable, Message: err.Error()}
}

// IsUnreachable reports whether err is an unreachable-classified
// gateway error.
func IsUnreachable(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindUnreachable
}

// KindOf extracts the gateway error kind, or KindGeneric for plain
// errors.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindGeneric
}
