package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerline/reconcile/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrEmptySlice   = errors.New("slice cannot be empty")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := transactions[i].Validate(); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateInboxItem validates a single inbox item.
func validateInboxItem(item *model.InboxItem) error {
	if item == nil {
		return fmt.Errorf("%w: inbox item", ErrNilParameter)
	}
	return item.Validate()
}

// validateSuggestions validates a slice of match suggestions.
func validateSuggestions(suggestions []model.MatchSuggestion) error {
	for i := range suggestions {
		if err := suggestions[i].Validate(); err != nil {
			return fmt.Errorf("suggestion at index %d: %w", i, err)
		}
	}
	return nil
}
