// Package testutil provides test utilities for the reconciliation engine:
// in-memory databases with migrations applied and builders for the domain
// fixtures most tests need.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/storage"
)

// SetupTestDB creates a new in-memory test database with migrations applied
// and cleanup registered.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// NewInboxItem builds a valid expense inbox item for tests. Callers mutate
// the returned value for anything test-specific.
func NewInboxItem(teamID string, amount string, date time.Time) *model.InboxItem {
	amt := decimal.RequireFromString(amount)
	return &model.InboxItem{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		DisplayName: "Test Receipt",
		Amount:      &amt,
		Currency:    "USD",
		Date:        date,
		Kind:        model.KindExpense,
		Status:      model.StatusNew,
	}
}

// NewTransaction builds a valid ledger transaction for tests.
func NewTransaction(teamID string, amount string, date time.Time) model.Transaction {
	txn := model.Transaction{
		ID:       uuid.NewString(),
		TeamID:   teamID,
		Name:     "TEST TRANSACTION",
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
		Date:     date,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}
