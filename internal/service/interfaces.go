// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/reconcile/internal/model"
)

// ErrRateUnavailable indicates no conversion rate exists for the requested
// currency and date. Scorers treat this as a missing signal, never a failure.
var ErrRateUnavailable = errors.New("conversion rate unavailable")

// CandidateQuery bounds a candidate transaction lookup.
type CandidateQuery struct {
	Start  time.Time
	End    time.Time
	TeamID string
	Limit  int
}

// MatchClaim describes an attempt to atomically link an inbox item to a
// transaction. AllowedFrom guards the item-side transition; the transaction
// side is guarded by the one-active-match-per-transaction constraint.
type MatchClaim struct {
	InboxItemID   string
	TransactionID string
	Op            string
	ConfirmedBy   model.MatchSource
	AllowedFrom   []model.InboxStatus
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Inbox item operations
	SaveInboxItem(ctx context.Context, item *model.InboxItem) error
	GetInboxItem(ctx context.Context, id string) (*model.InboxItem, error)
	ListInboxItemsByStatus(ctx context.Context, teamID string, statuses []model.InboxStatus, limit, offset int) ([]model.InboxItem, error)
	TransitionInboxItem(ctx context.Context, id string, from []model.InboxStatus, to model.InboxStatus, op string) (*model.InboxItem, error)
	UpdateInboxItemEmbedding(ctx context.Context, id string, embedding []float64) error

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetCandidateTransactions(ctx context.Context, query CandidateQuery) ([]model.Transaction, error)
	GetTransactionsWithEmbeddings(ctx context.Context, teamID string) ([]model.Transaction, error)

	// Suggestion operations
	ReplaceSuggestions(ctx context.Context, inboxItemID string, suggestions []model.MatchSuggestion) error
	GetSuggestionsForItem(ctx context.Context, inboxItemID string) (model.MatchSuggestions, error)
	DeleteSuggestion(ctx context.Context, inboxItemID, suggestionID string) (int, error)

	// Confirmed match operations
	ClaimMatch(ctx context.Context, claim MatchClaim) (*model.InboxItem, error)
	ReleaseMatch(ctx context.Context, inboxItemID string) (*model.InboxItem, error)
	GetMatchForTransaction(ctx context.Context, transactionID string) (*model.ConfirmedMatch, error)
	GetMatchHistory(ctx context.Context, transactionID string) ([]model.MatchEvent, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Neighbor is one nearest-neighbor result from a vector index.
type Neighbor struct {
	TransactionID string
	Distance      float64
}

// VectorIndex finds the transactions semantically closest to an embedding.
// Implementations may be an external ANN service or a local scan.
type VectorIndex interface {
	Nearest(ctx context.Context, teamID string, embedding []float64, k int) ([]Neighbor, error)
}

// EmbeddingProvider produces embedding vectors for document text.
// The engine never computes embeddings itself.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CurrencyConverter resolves an amount into a team's base currency as of a
// given date. Returns ErrRateUnavailable when no rate exists.
type CurrencyConverter interface {
	ToBaseCurrency(ctx context.Context, amount decimal.Decimal, currency string, asOf time.Time) (decimal.Decimal, string, error)
}

// JobScheduler enqueues matching work.
type JobScheduler interface {
	// ScheduleItem enqueues a scoring pass for one inbox item.
	ScheduleItem(ctx context.Context, inboxItemID string) error
	// ScheduleTeam re-checks a team's unresolved items against newly
	// arrived transactions.
	ScheduleTeam(ctx context.Context, teamID string) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
