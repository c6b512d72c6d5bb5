package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
)

func TestSQLiteStorage_InboxItemRoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	item := testItem("team-1", "25.99", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	item.Embedding = []float64{0.1, 0.2, 0.3}

	require.NoError(t, store.SaveInboxItem(ctx, item))

	got, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "team-1", got.TeamID)
	assert.True(t, item.Amount.Equal(*got.Amount))
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, model.KindExpense, got.Kind)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got.Embedding)
	assert.Nil(t, got.MatchedTransactionID)
	assert.Nil(t, got.BaseAmount)
}

func TestSQLiteStorage_GetInboxItemNotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetInboxItem(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_TransitionInboxItem(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	item := testItem("team-1", "10.00", time.Now().UTC())
	require.NoError(t, store.SaveInboxItem(ctx, item))

	got, err := store.TransitionInboxItem(ctx, item.ID,
		[]model.InboxStatus{model.StatusNew}, model.StatusAnalyzing, "ingest")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAnalyzing, got.Status)

	// Same transition again: the item is no longer in an allowed source
	// status, so the guard rejects it and the state is untouched.
	_, err = store.TransitionInboxItem(ctx, item.ID,
		[]model.InboxStatus{model.StatusNew}, model.StatusAnalyzing, "ingest")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	var transitionErr *common.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.StatusAnalyzing, transitionErr.From)
	assert.Equal(t, "ingest", transitionErr.Op)

	got, err = store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAnalyzing, got.Status)
}

func TestSQLiteStorage_ListInboxItemsByStatus(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	statuses := []model.InboxStatus{
		model.StatusNoMatch, model.StatusPending, model.StatusDone, model.StatusNoMatch,
	}
	for i, st := range statuses {
		item := testItem("team-1", "10.00", base.AddDate(0, 0, i))
		item.Status = st
		if st == model.StatusDone {
			txnID := "txn-done"
			item.MatchedTransactionID = &txnID
		}
		require.NoError(t, store.SaveInboxItem(ctx, item))
	}
	other := testItem("team-2", "10.00", base)
	other.Status = model.StatusPending
	require.NoError(t, store.SaveInboxItem(ctx, other))

	got, err := store.ListInboxItemsByStatus(ctx, "team-1",
		[]model.InboxStatus{model.StatusNoMatch, model.StatusPending}, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.True(t, got[0].Date.After(got[1].Date))
	for _, item := range got {
		assert.Equal(t, "team-1", item.TeamID)
		assert.NotEqual(t, model.StatusDone, item.Status)
	}
}

func TestSQLiteStorage_UpdateInboxItemEmbedding(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	item := testItem("team-1", "10.00", time.Now().UTC())
	require.NoError(t, store.SaveInboxItem(ctx, item))

	require.NoError(t, store.UpdateInboxItemEmbedding(ctx, item.ID, []float64{0.5, 0.5}))

	got, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, got.Embedding)

	err = store.UpdateInboxItemEmbedding(ctx, "missing", []float64{1})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
