// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerline/reconcile/internal/model"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Matching errors.
	ErrMatchConflict        = errors.New("transaction already matched")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrRetrievalUnavailable = errors.New("candidate retrieval unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TransitionError reports an operation attempted from a status that forbids
// it. It wraps ErrInvalidTransition so callers can test with errors.Is.
type TransitionError struct {
	Op   string
	From model.InboxStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from status %q", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewTransitionError creates a TransitionError for the given operation.
func NewTransitionError(op string, from model.InboxStatus) error {
	return &TransitionError{Op: op, From: from}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable reports whether retrying the failed operation could succeed.
// Unknown errors are assumed transient; the classes that encode a settled
// outcome never retry.
func IsRetryable(err error) bool {
	// Conflicts are resolved by re-scoring, not by retrying the same write;
	// transition guards and validation failures are never retried.
	if errors.Is(err, ErrMatchConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return true
}
