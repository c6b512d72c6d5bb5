package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/engine"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/policy"
	"github.com/ledgerline/reconcile/internal/retriever"
	"github.com/ledgerline/reconcile/internal/score"
	"github.com/ledgerline/reconcile/internal/service"
	"github.com/ledgerline/reconcile/internal/storage"
	"github.com/ledgerline/reconcile/internal/testutil"
)

// stubRetriever returns a fixed candidate list without touching storage.
type stubRetriever struct {
	candidates []retriever.Candidate
	err        error
	calls      int
	lastItem   *model.InboxItem
}

func (s *stubRetriever) Retrieve(_ context.Context, item *model.InboxItem) ([]retriever.Candidate, error) {
	s.calls++
	s.lastItem = item
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

type stubEmbedder struct {
	embedding []float64
	err       error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return s.embedding, s.err
}

type stubConverter struct {
	base     decimal.Decimal
	currency string
	err      error
}

func (s *stubConverter) ToBaseCurrency(_ context.Context, _ decimal.Decimal, _ string, _ time.Time) (decimal.Decimal, string, error) {
	if s.err != nil {
		return decimal.Decimal{}, "", s.err
	}
	return s.base, s.currency, nil
}

// faultyStorage passes through to a real store but fails selected writes.
type faultyStorage struct {
	service.Storage
	replaceErr error
	claimErr   error
}

func (f *faultyStorage) ReplaceSuggestions(ctx context.Context, inboxItemID string, suggestions []model.MatchSuggestion) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.Storage.ReplaceSuggestions(ctx, inboxItemID, suggestions)
}

func (f *faultyStorage) ClaimMatch(ctx context.Context, claim service.MatchClaim) (*model.InboxItem, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.Storage.ClaimMatch(ctx, claim)
}

func candidateFor(txn model.Transaction, distance float64) retriever.Candidate {
	d := distance
	return retriever.Candidate{Transaction: txn, Distance: &d}
}

// eagerConfig lowers the auto-match bar so the default weights can reach it.
func eagerConfig() engine.Config {
	return engine.Config{
		Weights: score.DefaultWeights(),
		Thresholds: policy.Thresholds{
			Suggest:        0.5,
			AutoMatch:      0.75,
			Margin:         0.05,
			MaxSuggestions: 3,
		},
	}
}

func saveTransactions(t *testing.T, store *storage.SQLiteStorage, txns ...model.Transaction) {
	t.Helper()
	require.NoError(t, store.SaveTransactions(context.Background(), txns))
}

func TestIngestProducesSuggestion(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	stub := &stubRetriever{candidates: []retriever.Candidate{candidateFor(txn, 0.1)}}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuggestedMatch, updated.Status)
	assert.Nil(t, updated.MatchedTransactionID)

	suggestions, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, txn.ID, suggestions[0].TransactionID)
	// similarity 0.9, amount 1.0, same-day date 0.99 under default weights.
	assert.InDelta(t, 0.7645, suggestions[0].Confidence, 1e-9)
	assert.InDelta(t, 0.9, suggestions[0].SimilarityScore, 1e-9)
	assert.InDelta(t, 1.0, suggestions[0].AmountScore, 1e-9)
}

func TestIngestAutoMatchesClearWinner(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	winner := testutil.NewTransaction("team-1", "25.99", date)
	loser := testutil.NewTransaction("team-1", "500.00", date.AddDate(0, 0, -20))
	saveTransactions(t, store, winner, loser)

	stub := &stubRetriever{candidates: []retriever.Candidate{
		candidateFor(winner, 0),
		candidateFor(loser, 0.9),
	}}
	eng, err := engine.NewWithConfig(store, stub, eagerConfig())
	require.NoError(t, err)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	assert.Equal(t, model.StatusDone, updated.Status)
	require.NotNil(t, updated.MatchedTransactionID)
	assert.Equal(t, winner.ID, *updated.MatchedTransactionID)

	// Auto-matching leaves no suggestions behind and records a system
	// confirmation in the audit trail.
	suggestions, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	history, err := eng.MatchHistory(ctx, winner.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.EventConfirmed, history[0].Type)
	assert.Equal(t, model.MatchBySystem, history[0].Actor)
}

func TestIngestWithoutCandidatesLandsNoMatch(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	stub := &stubRetriever{}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	assert.Equal(t, model.StatusNoMatch, updated.Status)
	assert.Equal(t, 1, stub.calls)
}

func TestIngestRejectsDuplicateID(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)
	require.Equal(t, model.StatusNoMatch, updated.Status)

	// Re-ingesting an existing ID would reset the item's lifecycle.
	duplicate := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	duplicate.ID = item.ID
	_, err = eng.Ingest(ctx, duplicate)
	require.ErrorIs(t, err, common.ErrDuplicateEntry)

	stored, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoMatch, stored.Status)
}

func TestRetrievalFailureDegradesToPending(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	stub := &stubRetriever{err: common.ErrRetrievalUnavailable}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	// Degraded retrieval is not terminal: the item waits in pending where
	// a retry sweep can pick it up.
	assert.Equal(t, model.StatusPending, updated.Status)

	stub.err = nil
	retried, err := eng.RetryMatching(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoMatch, retried.Status)
}

func TestSuggestionPersistFailureDegradesToPending(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	faulty := &faultyStorage{Storage: store, replaceErr: errors.New("disk I/O error")}
	eng := engine.New(faulty, &stubRetriever{candidates: []retriever.Candidate{candidateFor(txn, 0.1)}})

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, item)
	require.Error(t, err)

	// A failed pass must not strand the item in analyzing: it waits in
	// pending where the discrepancy queue and retry sweeps can reach it.
	stored, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)

	faulty.replaceErr = nil
	retried, err := eng.RetryMatching(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuggestedMatch, retried.Status)
}

func TestAutoMatchPersistFailureDegradesToPending(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	faulty := &faultyStorage{Storage: store, claimErr: errors.New("disk I/O error")}
	eng, err := engine.NewWithConfig(faulty,
		&stubRetriever{candidates: []retriever.Candidate{candidateFor(txn, 0)}}, eagerConfig())
	require.NoError(t, err)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err = eng.Ingest(ctx, item)
	require.Error(t, err)

	stored, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)

	faulty.claimErr = nil
	retried, err := eng.RetryMatching(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, retried.Status)
}

func TestConfirmSuggestedItem(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	stub := &stubRetriever{candidates: []retriever.Candidate{candidateFor(txn, 0.1)}}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	updated, err := eng.Confirm(ctx, item.ID, txn.ID, model.MatchByUser)
	require.NoError(t, err)

	assert.Equal(t, model.StatusDone, updated.Status)
	require.NotNil(t, updated.MatchedTransactionID)
	assert.Equal(t, txn.ID, *updated.MatchedTransactionID)

	suggestions, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	history, err := eng.MatchHistory(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.MatchByUser, history[0].Actor)
}

func TestConfirmRejectsDoneItem(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	other := testutil.NewTransaction("team-1", "26.00", date)
	saveTransactions(t, store, txn, other)

	stub := &stubRetriever{candidates: []retriever.Candidate{candidateFor(txn, 0.1)}}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)
	_, err = eng.Confirm(ctx, item.ID, txn.ID, model.MatchByUser)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, item.ID, other.ID, model.MatchByUser)
	require.ErrorIs(t, err, common.ErrInvalidTransition)

	var transitionErr *common.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.StatusDone, transitionErr.From)
}

func TestConfirmRejectsClaimedTransaction(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	stub := &stubRetriever{}
	eng := engine.New(store, stub)

	first := testutil.NewInboxItem("team-1", "25.99", date)
	second := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, first)
	require.NoError(t, err)
	_, err = eng.Ingest(ctx, second)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, first.ID, txn.ID, model.MatchByUser)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, second.ID, txn.ID, model.MatchByUser)
	require.ErrorIs(t, err, common.ErrMatchConflict)
}

func TestConfirmUnknownTransaction(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})

	item := testutil.NewInboxItem("team-1", "25.99", time.Now().UTC())
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, item.ID, "missing-txn", model.MatchByUser)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeclineLastSuggestion(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	stub := &stubRetriever{candidates: []retriever.Candidate{candidateFor(txn, 0.1)}}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	suggestions, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	updated, err := eng.Decline(ctx, item.ID, suggestions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoMatch, updated.Status)

	history, err := eng.MatchHistory(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.EventDeclined, history[0].Type)
}

func TestDeclineKeepsRemainingSuggestions(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txnA := testutil.NewTransaction("team-1", "25.99", date)
	txnB := testutil.NewTransaction("team-1", "26.50", date.AddDate(0, 0, 1))
	saveTransactions(t, store, txnA, txnB)

	stub := &stubRetriever{candidates: []retriever.Candidate{
		candidateFor(txnA, 0.1),
		candidateFor(txnB, 0.2),
	}}
	eng := engine.New(store, stub)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	suggestions, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	updated, err := eng.Decline(ctx, item.ID, suggestions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuggestedMatch, updated.Status)

	remaining, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, suggestions[1].TransactionID, remaining[0].TransactionID)
}

func TestDeclineRequiresSuggestedStatus(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	_, err = eng.Decline(ctx, item.ID, "any")
	require.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestUnmatchIsIdempotent(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", date)
	saveTransactions(t, store, txn)

	eng := engine.New(store, &stubRetriever{})

	item := testutil.NewInboxItem("team-1", "25.99", date)
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)
	_, err = eng.Confirm(ctx, item.ID, txn.ID, model.MatchByUser)
	require.NoError(t, err)

	released, err := eng.Unmatch(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, released.Status)
	assert.Nil(t, released.MatchedTransactionID)

	// The transaction becomes claimable again.
	_, err = store.GetMatchForTransaction(ctx, txn.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	again, err := eng.Unmatch(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again.Status)

	history, err := eng.MatchHistory(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.EventUnmatched, history[1].Type)
}

func TestAutoMatchConflictFallsBackToRunnerUp(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	contested := testutil.NewTransaction("team-1", "25.99", date)
	fallback := testutil.NewTransaction("team-1", "25.99", date.AddDate(0, 0, -1))
	saveTransactions(t, store, contested, fallback)

	eng, err := engine.NewWithConfig(store, &stubRetriever{candidates: []retriever.Candidate{
		candidateFor(contested, 0),
		candidateFor(fallback, 0.4),
	}}, eagerConfig())
	require.NoError(t, err)

	// Another item claimed the contested transaction first.
	winner := testutil.NewInboxItem("team-1", "25.99", date)
	_, err = engine.New(store, &stubRetriever{}).Ingest(ctx, winner)
	require.NoError(t, err)
	_, err = eng.Confirm(ctx, winner.ID, contested.ID, model.MatchByUser)
	require.NoError(t, err)

	item := testutil.NewInboxItem("team-1", "25.99", date)
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	// The contested transaction is filtered out and the pass re-decides
	// against the remainder instead of failing.
	assert.Equal(t, model.StatusSuggestedMatch, updated.Status)
	suggestions, err := eng.Suggestions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, fallback.ID, suggestions[0].TransactionID)
}

func TestRetryMatchingRequiresUnresolvedStatus(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	require.NoError(t, store.SaveInboxItem(ctx, item))

	_, err := eng.RetryMatching(ctx, item.ID)
	require.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestArchiveAndDelete(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	require.NoError(t, store.SaveInboxItem(ctx, item))

	archived, err := eng.Archive(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, archived.Status)

	deleted, err := eng.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, deleted.Status)

	// Deleted is terminal for every operation.
	_, err = eng.Archive(ctx, item.ID)
	require.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = eng.Delete(ctx, item.ID)
	require.ErrorIs(t, err, common.ErrInvalidTransition)
}

// recordingScheduler captures scheduled item IDs without running anything.
type recordingScheduler struct {
	items []string
	teams []string
}

func (r *recordingScheduler) ScheduleItem(_ context.Context, itemID string) error {
	r.items = append(r.items, itemID)
	return nil
}

func (r *recordingScheduler) ScheduleTeam(_ context.Context, teamID string) error {
	r.teams = append(r.teams, teamID)
	return nil
}

var _ service.JobScheduler = (*recordingScheduler)(nil)

func TestIngestWithSchedulerDefersScoring(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	stub := &stubRetriever{}
	eng := engine.New(store, stub)
	sched := &recordingScheduler{}
	eng.SetScheduler(sched)

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	assert.Equal(t, model.StatusNew, updated.Status)
	assert.Equal(t, []string{item.ID}, sched.items)
	assert.Equal(t, 0, stub.calls)
}

func TestIngestBackfillsEmbedding(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	stub := &stubRetriever{}
	eng := engine.New(store, stub)
	eng.SetEmbeddingProvider(&stubEmbedder{embedding: []float64{0.1, 0.2, 0.3}})

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	// The scoring pass sees the fresh embedding and it is persisted.
	require.NotNil(t, stub.lastItem)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, stub.lastItem.Embedding)

	stored, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, stored.Embedding)
}

func TestIngestSurvivesEmbedderFailure(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})
	eng.SetEmbeddingProvider(&stubEmbedder{err: errors.New("provider down")})

	item := testutil.NewInboxItem("team-1", "10.00", time.Now().UTC())
	updated, err := eng.Ingest(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoMatch, updated.Status)
}

func TestIngestDerivesBaseAmount(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})
	eng.SetCurrencyConverter(&stubConverter{
		base:     decimal.RequireFromString("108.50"),
		currency: "USD",
	})

	item := testutil.NewInboxItem("team-1", "100.00", time.Now().UTC())
	item.Currency = "EUR"
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	stored, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BaseAmount)
	assert.True(t, stored.BaseAmount.Equal(decimal.RequireFromString("108.50")))
	assert.Equal(t, "USD", stored.BaseCurrency)
}

func TestIngestToleratesMissingRate(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	eng := engine.New(store, &stubRetriever{})
	eng.SetCurrencyConverter(&stubConverter{err: service.ErrRateUnavailable})

	item := testutil.NewInboxItem("team-1", "100.00", time.Now().UTC())
	item.Currency = "EUR"
	_, err := eng.Ingest(ctx, item)
	require.NoError(t, err)

	stored, err := store.GetInboxItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.BaseAmount)
}

func TestNewWithConfigRejectsBadThresholds(t *testing.T) {
	store := testutil.SetupTestDB(t)

	bad := engine.Config{
		Weights: score.DefaultWeights(),
		Thresholds: policy.Thresholds{
			Suggest:        0.95,
			AutoMatch:      0.9,
			Margin:         0.05,
			MaxSuggestions: 3,
		},
	}
	_, err := engine.NewWithConfig(store, &stubRetriever{}, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}
