package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/service"
)

func TestSQLiteStorage_ReplaceSuggestions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	item := testItem("team-1", "25.99", now)
	require.NoError(t, store.SaveInboxItem(ctx, item))

	txns := []model.Transaction{
		testTxn("team-1", "25.99", now),
		testTxn("team-1", "26.00", now.AddDate(0, 0, -1)),
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	first := []model.MatchSuggestion{
		{InboxItemID: item.ID, TransactionID: txns[0].ID, Confidence: 0.76},
	}
	require.NoError(t, store.ReplaceSuggestions(ctx, item.ID, first))

	// A new scoring pass supersedes the previous set wholesale.
	second := []model.MatchSuggestion{
		{InboxItemID: item.ID, TransactionID: txns[0].ID, Confidence: 0.81},
		{InboxItemID: item.ID, TransactionID: txns[1].ID, Confidence: 0.62},
	}
	require.NoError(t, store.ReplaceSuggestions(ctx, item.ID, second))

	got, err := store.GetSuggestionsForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, txns[0].ID, got[0].TransactionID)
	assert.InDelta(t, 0.81, got[0].Confidence, 1e-9)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].ScoredAt.IsZero())
	assert.Equal(t, txns[1].Date.Format("2006-01-02"), got[1].TransactionDate.Format("2006-01-02"))
}

func TestSQLiteStorage_DeleteSuggestion(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	item := testItem("team-1", "25.99", now)
	require.NoError(t, store.SaveInboxItem(ctx, item))

	txns := []model.Transaction{
		testTxn("team-1", "25.99", now),
		testTxn("team-1", "26.00", now),
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	require.NoError(t, store.ReplaceSuggestions(ctx, item.ID, []model.MatchSuggestion{
		{InboxItemID: item.ID, TransactionID: txns[0].ID, Confidence: 0.8},
		{InboxItemID: item.ID, TransactionID: txns[1].ID, Confidence: 0.6},
	}))

	got, err := store.GetSuggestionsForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	remaining, err := store.DeleteSuggestion(ctx, item.ID, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = store.DeleteSuggestion(ctx, item.ID, got[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Declines land in the audit trail.
	events, err := store.GetMatchHistory(ctx, txns[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDeclined, events[0].Type)
}

func TestSQLiteStorage_DeleteSuggestionNotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.DeleteSuggestion(context.Background(), "item", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_CandidatesExcludeClaimed(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	item := testItem("team-1", "25.99", now)
	item.Status = model.StatusPending
	require.NoError(t, store.SaveInboxItem(ctx, item))

	claimed := testTxn("team-1", "25.99", now)
	open := testTxn("team-1", "30.00", now)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{claimed, open}))

	_, err := store.ClaimMatch(ctx, suggestedClaim(item.ID, claimed.ID, model.MatchByUser))
	require.NoError(t, err)

	got, err := store.GetCandidateTransactions(ctx, service.CandidateQuery{
		TeamID: "team-1",
		Start:  now.AddDate(0, 0, -7),
		End:    now.AddDate(0, 0, 7),
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)
}
