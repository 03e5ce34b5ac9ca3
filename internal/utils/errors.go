package utils

import (
	"errors"
	"fmt"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Degradable reports whether err belongs to the recoverable taxonomy that
// callers absorb by falling back to a safe default.
func Degradable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrInsufficientSamples),
		errors.Is(err, models.ErrEmptyDataset),
		errors.Is(err, models.ErrUnknownStrategy),
		errors.Is(err, models.ErrStoreUnavailable):
		return true
	default:
		return false
	}
}
