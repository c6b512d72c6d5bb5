// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InboxStatus tracks where an inbox item is in its matching lifecycle.
type InboxStatus string

// Inbox item status constants.
const (
	StatusNew            InboxStatus = "new"
	StatusAnalyzing      InboxStatus = "analyzing"
	StatusDone           InboxStatus = "done"
	StatusSuggestedMatch InboxStatus = "suggested_match"
	StatusNoMatch        InboxStatus = "no_match"
	StatusPending        InboxStatus = "pending"
	StatusArchived       InboxStatus = "archived"
	StatusDeleted        InboxStatus = "deleted"
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s InboxStatus) bool {
	switch s {
	case StatusNew, StatusAnalyzing, StatusDone, StatusSuggestedMatch,
		StatusNoMatch, StatusPending, StatusArchived, StatusDeleted:
		return true
	default:
		return false
	}
}

// DocumentKind distinguishes the two document flavors the date scorer
// treats differently.
type DocumentKind string

// Document kind constants.
const (
	KindExpense DocumentKind = "expense"
	KindInvoice DocumentKind = "invoice"
)

// InboxItem is an incoming financial document awaiting reconciliation
// against a ledger transaction.
type InboxItem struct {
	Date                 time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Amount               *decimal.Decimal
	BaseAmount           *decimal.Decimal
	MatchedTransactionID *string
	ID                   string
	TeamID               string
	DisplayName          string
	Currency             string
	BaseCurrency         string
	Kind                 DocumentKind
	Status               InboxStatus
	Embedding            []float64
}

// Validate ensures the InboxItem has valid data.
func (i *InboxItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("inbox item ID is required")
	}
	if i.TeamID == "" {
		return fmt.Errorf("inbox item team ID is required")
	}
	if i.Date.IsZero() {
		return fmt.Errorf("inbox item date is required")
	}
	if i.Kind != KindExpense && i.Kind != KindInvoice {
		return fmt.Errorf("invalid document kind: %q", i.Kind)
	}
	if !ValidStatus(i.Status) {
		return fmt.Errorf("invalid status: %q", i.Status)
	}
	if i.Amount != nil && i.Currency == "" {
		return fmt.Errorf("amount requires a currency code")
	}
	if i.BaseAmount != nil && i.BaseCurrency == "" {
		return fmt.Errorf("base amount requires a base currency code")
	}
	return i.CheckConsistency()
}

// CheckConsistency enforces the status/back-reference invariant: done items
// carry exactly one matched transaction, everything else carries none.
func (i *InboxItem) CheckConsistency() error {
	switch i.Status {
	case StatusDone:
		if i.MatchedTransactionID == nil || *i.MatchedTransactionID == "" {
			return fmt.Errorf("item %s is done but has no matched transaction", i.ID)
		}
	case StatusNew, StatusAnalyzing, StatusSuggestedMatch, StatusNoMatch, StatusPending:
		if i.MatchedTransactionID != nil {
			return fmt.Errorf("item %s is %s but references transaction %s", i.ID, i.Status, *i.MatchedTransactionID)
		}
	case StatusArchived, StatusDeleted:
		// Administrative states keep whatever reference they had.
	}
	return nil
}
