// Package apperr holds the error classes shared by the workflow and its adapters.
// Domain packages wrap one of these so callers can classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Validation returns an error of the validation class with a readable message.
func Validation(format string, args ...any) error {
	return &classified{class: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an error of the not-found class with a readable message.
func NotFound(format string, args ...any) error {
	return &classified{class: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflict returns an error of the conflict class with a readable message.
func Conflict(format string, args ...any) error {
	return &classified{class: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

type classified struct {
	class error
	msg   string
}

func (e *classified) Error() string { return e.msg }

func (e *classified) Unwrap() error { return e.class }

// IsClassified reports whether err belongs to one of the known classes.
// Anything else is treated as an internal failure.
func IsClassified(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
