// Package apperr defines the error kinds shared by services and handlers.
// Every business failure is an *Error whose Kind is one of the sentinels
// below, so callers can branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflict          = errors.New("conflict")
	ErrPaymentRequired   = errors.New("payment required")
	ErrStorage           = errors.New("storage failure")
)

// Error carries a kind plus a message fit for the API response body.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

func InvalidTransition(format string, args ...any) error {
	return newf(ErrInvalidTransition, format, args...)
}

func InvalidState(format string, args ...any) error { return newf(ErrInvalidState, format, args...) }

func Conflict(format string, args ...any) error { return newf(ErrConflict, format, args...) }

func PaymentRequired(format string, args ...any) error {
	return newf(ErrPaymentRequired, format, args...)
}

func Storage(format string, args ...any) error { return newf(ErrStorage, format, args...) }

// Message returns the client-facing text of err when it is an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// FromDB translates pgx.ErrNoRows and constraint violations into error kinds.
// Anything else is returned unchanged. what names the entity for messages.
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return Conflict("%s already exists", what)
		case "23503":
			return Conflict("%s is still referenced", what)
		}
	}
	return err
}
