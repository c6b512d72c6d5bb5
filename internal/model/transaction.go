package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single ledger transaction from any source.
// For matching purposes it is immutable; the engine only reads it and
// maintains the confirmed-match back-reference.
type Transaction struct {
	Date         time.Time
	BaseAmount   *decimal.Decimal
	ID           string
	TeamID       string
	Name         string // Raw transaction description
	AccountID    string
	Currency     string
	BaseCurrency string
	Hash         string
	Amount       decimal.Decimal
	Embedding    []float64
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Currency,
		t.Name,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Validate ensures the Transaction has valid data.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if t.TeamID == "" {
		return fmt.Errorf("transaction team ID is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date is required")
	}
	if t.Currency == "" {
		return fmt.Errorf("transaction currency is required")
	}
	if t.BaseAmount != nil && t.BaseCurrency == "" {
		return fmt.Errorf("base amount requires a base currency code")
	}
	return nil
}
