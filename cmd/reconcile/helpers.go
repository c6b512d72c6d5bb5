package main

import (
	"context"
	"fmt"

	"github.com/ledgerline/reconcile/internal/config"
	"github.com/ledgerline/reconcile/internal/engine"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/retriever"
	"github.com/ledgerline/reconcile/internal/storage"
	"github.com/ledgerline/reconcile/internal/vector"
)

// initStorage opens the configured database and applies migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine builds the full matching stack from configuration: storage,
// local vector index, retriever, and engine. Configuration problems are
// fatal here, before any item is touched.
func initEngine(ctx context.Context) (*engine.MatchEngine, *storage.SQLiteStorage, config.Matching, error) {
	matching, err := config.LoadMatching()
	if err != nil {
		return nil, nil, config.Matching{}, err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, config.Matching{}, err
	}

	index := vector.NewLocalIndex(store)
	candidates := retriever.NewWithConfig(store, index, matching.RetrieverConfig())

	eng, err := engine.NewWithConfig(store, candidates, matching.EngineConfig())
	if err != nil {
		_ = store.Close()
		return nil, nil, config.Matching{}, err
	}

	return eng, store, matching, nil
}

// formatAmount renders an item amount for display.
func formatAmount(item *model.InboxItem) string {
	if item.Amount == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s", item.Amount.StringFixed(2), item.Currency)
}
