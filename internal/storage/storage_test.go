package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/reconcile/internal/model"
)

// createTestStorage creates an in-memory database with migrations applied.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testItem(teamID, amount string, date time.Time) *model.InboxItem {
	amt := decimal.RequireFromString(amount)
	return &model.InboxItem{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		DisplayName: "Coffee receipt",
		Amount:      &amt,
		Currency:    "USD",
		Date:        date,
		Kind:        model.KindExpense,
		Status:      model.StatusNew,
	}
}

func testTxn(teamID, amount string, date time.Time) model.Transaction {
	txn := model.Transaction{
		ID:       uuid.NewString(),
		TeamID:   teamID,
		Name:     "CARD PURCHASE",
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
		Date:     date,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}
