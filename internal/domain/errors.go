package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by storage, service and transport. Callers test
// them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// Error pairs a sentinel with the translation key shown to API clients.
type Error struct {
	Kind error
	Key  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Key)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error for kind with the given message key.
func Errorf(kind error, key string) error {
	return &Error{Kind: kind, Key: key}
}

// MessageKey returns the translation key carried by err, if any.
func MessageKey(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Key, true
	}
	return "", false
}
