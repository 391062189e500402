package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error for callers. Its string form is stable and is
// written to API clients.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindValidation          Kind = "validation"
	KindUnauthenticated     Kind = "unauthenticated"
	KindProvider            Kind = "provider_error"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindInfrastructure      Kind = "infrastructure"
)

// Error is a kind-tagged error carrying a client-safe message and the
// underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an Error of the given kind.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NotFound(msg string) error { return E(KindNotFound, msg, nil) }
func Forbidden(msg string) error { return E(KindForbidden, msg, nil) }
func Conflict(msg string) error { return E(KindConflict, msg, nil) }
func Validation(msg string) error { return E(KindValidation, msg, nil) }
func Unauthenticated(msg string) error { return E(KindUnauthenticated, msg, nil) }
func Provider(msg string, err error) error { return E(KindProvider, msg, err) }
func Infrastructure(msg string, err error) error { return E(KindInfrastructure, msg, err) }

func ProviderUnavailable(msg string, err error) error {
	return E(KindProviderUnavailable, msg, err)
}

// KindOf reports the kind of err. Untagged errors are infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ValidationErrors collects per-field validation failures.
type ValidationErrors map[string][]string

func ValidationErrs() ValidationErrors {
	return ValidationErrors{}
}

func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Err returns nil when nothing was added, otherwise a validation error
// listing the fields in a stable order.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s %s", f, strings.Join(v[f], ", ")))
	}
	return E(KindValidation, strings.Join(parts, "; "), nil)
}
