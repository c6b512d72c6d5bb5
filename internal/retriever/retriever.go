// Package retriever fetches the bounded set of plausible candidate
// transactions for one inbox item.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/score"
	"github.com/ledgerline/reconcile/internal/service"
)

// Candidate pairs a candidate transaction with its embedding distance.
// Distance is nil when no semantic ranking was available for it.
type Candidate struct {
	Distance    *float64
	Transaction model.Transaction
}

// Config holds configuration options for the retriever.
type Config struct {
	// TopK bounds the candidate set handed to the scorers.
	TopK int
	// Timeout caps one retrieval pass, index query included.
	Timeout time.Duration
}

// DefaultConfig returns the default retriever configuration.
func DefaultConfig() Config {
	return Config{
		TopK:    20,
		Timeout: 10 * time.Second,
	}
}

// Date windows, sized to cover the date scorer's effective range. Invoices
// get a much wider forward window for long net terms.
const (
	lookbackDays       = 30
	expenseForwardDays = 45
	invoiceForwardDays = 130
)

// Retriever finds candidate transactions for inbox items.
type Retriever struct {
	storage service.Storage
	index   service.VectorIndex
	config  Config
}

// New creates a retriever with default configuration.
func New(storage service.Storage, index service.VectorIndex) *Retriever {
	return NewWithConfig(storage, index, DefaultConfig())
}

// NewWithConfig creates a retriever with custom configuration.
func NewWithConfig(storage service.Storage, index service.VectorIndex, config Config) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 20
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Retriever{
		storage: storage,
		index:   index,
		config:  config,
	}
}

// Retrieve returns an ordered, size-bounded candidate list for the item:
// same team, inside the kind-dependent date window, not already claimed by a
// confirmed match. When the item has an embedding the list is ordered by
// nearest-neighbor distance; otherwise by an amount+date ranking. Failures
// of storage or the index surface as ErrRetrievalUnavailable so the caller
// can degrade instead of failing the pipeline.
func (r *Retriever) Retrieve(ctx context.Context, item *model.InboxItem) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	forward := expenseForwardDays
	if item.Kind == model.KindInvoice {
		forward = invoiceForwardDays
	}

	transactions, err := r.storage.GetCandidateTransactions(ctx, service.CandidateQuery{
		TeamID: item.TeamID,
		Start:  item.Date.AddDate(0, 0, -lookbackDays),
		End:    item.Date.AddDate(0, 0, forward),
		// Over-fetch so the semantic ranking has something to reorder.
		Limit: r.config.TopK * 5,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRetrievalUnavailable, err)
	}

	if len(transactions) == 0 {
		return nil, nil
	}

	if len(item.Embedding) > 0 {
		candidates, indexErr := r.rankBySimilarity(ctx, item, transactions)
		if indexErr != nil {
			slog.Warn("Vector index unavailable",
				"inbox_item_id", item.ID,
				"error", indexErr)
			return nil, fmt.Errorf("%w: %v", common.ErrRetrievalUnavailable, indexErr)
		}
		return r.bound(candidates), nil
	}

	return r.bound(r.rankByAmountAndDate(item, transactions)), nil
}

// rankBySimilarity orders candidates by nearest-neighbor distance. Window
// candidates the index knows nothing about keep their date order at the
// tail with no distance attached.
func (r *Retriever) rankBySimilarity(ctx context.Context, item *model.InboxItem, transactions []model.Transaction) ([]Candidate, error) {
	neighbors, err := r.index.Nearest(ctx, item.TeamID, item.Embedding, r.config.TopK)
	if err != nil {
		return nil, err
	}

	distances := make(map[string]float64, len(neighbors))
	order := make(map[string]int, len(neighbors))
	for i, n := range neighbors {
		distances[n.TransactionID] = n.Distance
		order[n.TransactionID] = i
	}

	candidates := make([]Candidate, 0, len(transactions))
	for i := range transactions {
		c := Candidate{Transaction: transactions[i]}
		if d, ok := distances[transactions[i].ID]; ok {
			dist := d
			c.Distance = &dist
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		oi, iOK := order[candidates[i].Transaction.ID]
		oj, jOK := order[candidates[j].Transaction.ID]
		switch {
		case iOK && jOK:
			return oi < oj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return false
		}
	})

	return candidates, nil
}

// rankByAmountAndDate orders candidates without semantic information, using
// only the deterministic signals.
func (r *Retriever) rankByAmountAndDate(item *model.InboxItem, transactions []model.Transaction) []Candidate {
	itemSignal := score.AmountSignal{
		Amount:       item.Amount,
		Currency:     item.Currency,
		BaseAmount:   item.BaseAmount,
		BaseCurrency: item.BaseCurrency,
	}

	type rankedCandidate struct {
		candidate Candidate
		rank      float64
	}

	ranked := make([]rankedCandidate, 0, len(transactions))
	for i := range transactions {
		txn := &transactions[i]
		txnSignal := score.AmountSignal{
			Amount:       &txn.Amount,
			Currency:     txn.Currency,
			BaseAmount:   txn.BaseAmount,
			BaseCurrency: txn.BaseCurrency,
		}
		rank := (score.AmountScore(itemSignal, txnSignal) + score.DateScore(item.Date, txn.Date, item.Kind)) / 2
		ranked = append(ranked, rankedCandidate{
			candidate: Candidate{Transaction: *txn},
			rank:      rank,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].rank > ranked[j].rank
	})

	candidates := make([]Candidate, len(ranked))
	for i := range ranked {
		candidates[i] = ranked[i].candidate
	}
	return candidates
}

func (r *Retriever) bound(candidates []Candidate) []Candidate {
	if len(candidates) > r.config.TopK {
		return candidates[:r.config.TopK]
	}
	return candidates
}
