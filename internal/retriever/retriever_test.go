package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/service"
	"github.com/ledgerline/reconcile/internal/testutil"
)

type stubIndex struct {
	err       error
	neighbors []service.Neighbor
	calls     int
}

func (s *stubIndex) Nearest(_ context.Context, _ string, _ []float64, _ int) ([]service.Neighbor, error) {
	s.calls++
	return s.neighbors, s.err
}

func TestRetriever_WindowAndTeamScope(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	inWindow := testutil.NewTransaction("team-1", "25.99", day.AddDate(0, 0, 2))
	tooOld := testutil.NewTransaction("team-1", "25.99", day.AddDate(0, 0, -60))
	tooFar := testutil.NewTransaction("team-1", "25.99", day.AddDate(0, 0, 90))
	otherTeam := testutil.NewTransaction("team-2", "25.99", day)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{inWindow, tooOld, tooFar, otherTeam}))

	r := New(store, &stubIndex{})
	item := testutil.NewInboxItem("team-1", "25.99", day)

	got, err := r.Retrieve(ctx, item)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inWindow.ID, got[0].Transaction.ID)
}

func TestRetriever_InvoiceWindowReachesFurtherForward(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	net90 := testutil.NewTransaction("team-1", "990.00", day.AddDate(0, 0, 90))
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{net90}))

	r := New(store, &stubIndex{})

	expense := testutil.NewInboxItem("team-1", "990.00", day)
	got, err := r.Retrieve(ctx, expense)
	require.NoError(t, err)
	assert.Empty(t, got)

	invoice := testutil.NewInboxItem("team-1", "990.00", day)
	invoice.Kind = model.KindInvoice
	got, err = r.Retrieve(ctx, invoice)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, net90.ID, got[0].Transaction.ID)
}

func TestRetriever_FallbackRankingWithoutEmbedding(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	exact := testutil.NewTransaction("team-1", "25.99", day)
	off := testutil.NewTransaction("team-1", "99.00", day.AddDate(0, 0, 20))
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{off, exact}))

	idx := &stubIndex{}
	r := New(store, idx)
	item := testutil.NewInboxItem("team-1", "25.99", day)

	got, err := r.Retrieve(ctx, item)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, exact.ID, got[0].Transaction.ID)
	assert.Equal(t, off.ID, got[1].Transaction.ID)
	assert.Nil(t, got[0].Distance)
	assert.Zero(t, idx.calls, "index should not be queried without an embedding")
}

func TestRetriever_SimilarityRanking(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	near := testutil.NewTransaction("team-1", "20.00", day)
	far := testutil.NewTransaction("team-1", "25.99", day)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{near, far}))

	idx := &stubIndex{neighbors: []service.Neighbor{
		{TransactionID: near.ID, Distance: 0.1},
		{TransactionID: far.ID, Distance: 0.8},
	}}

	r := New(store, idx)
	item := testutil.NewInboxItem("team-1", "25.99", day)
	item.Embedding = []float64{0.5, 0.5}

	got, err := r.Retrieve(ctx, item)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, near.ID, got[0].Transaction.ID)
	require.NotNil(t, got[0].Distance)
	assert.InDelta(t, 0.1, *got[0].Distance, 1e-9)
	assert.Equal(t, 1, idx.calls)
}

func TestRetriever_IndexFailureDegrades(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	txn := testutil.NewTransaction("team-1", "25.99", day)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	r := New(store, &stubIndex{err: errors.New("index down")})
	item := testutil.NewInboxItem("team-1", "25.99", day)
	item.Embedding = []float64{0.5, 0.5}

	_, err := r.Retrieve(ctx, item)
	assert.ErrorIs(t, err, common.ErrRetrievalUnavailable)
}

func TestRetriever_EmptyWindow(t *testing.T) {
	store := testutil.SetupTestDB(t)
	r := New(store, &stubIndex{})

	item := testutil.NewInboxItem("team-1", "25.99", time.Now().UTC())
	got, err := r.Retrieve(context.Background(), item)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetriever_BoundsToTopK(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	var txns []model.Transaction
	for i := 0; i < 8; i++ {
		txns = append(txns, testutil.NewTransaction("team-1", "25.99", day.AddDate(0, 0, i)))
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	r := NewWithConfig(store, &stubIndex{}, Config{TopK: 3, Timeout: time.Second})
	item := testutil.NewInboxItem("team-1", "25.99", day)

	got, err := r.Retrieve(ctx, item)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
