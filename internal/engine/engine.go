// Package engine implements the match state machine and the scoring
// pipeline that drives it. It is the only layer that mutates inbox item
// state, and the only layer that decides whether an error terminates a
// transition attempt or degrades to a safe terminal status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/policy"
	"github.com/ledgerline/reconcile/internal/retriever"
	"github.com/ledgerline/reconcile/internal/score"
	"github.com/ledgerline/reconcile/internal/service"
)

// Config holds configuration options for the match engine.
type Config struct {
	Weights    score.Weights
	Thresholds policy.Thresholds
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Weights:    score.DefaultWeights(),
		Thresholds: policy.DefaultThresholds(),
	}
}

// Validate ensures the configuration is usable. Violations are fatal at
// startup, never per-request.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return c.Thresholds.Validate()
}

// MatchEngine orchestrates retrieval, scoring, and the guarded lifecycle of
// inbox items.
type MatchEngine struct {
	storage   service.Storage
	retriever CandidateRetriever
	scheduler service.JobScheduler
	embedder  service.EmbeddingProvider
	converter service.CurrencyConverter
	config    Config
}

// New creates a match engine with the default configuration.
func New(storage service.Storage, candidates CandidateRetriever) *MatchEngine {
	engine, err := NewWithConfig(storage, candidates, DefaultConfig())
	if err != nil {
		// Defaults always validate.
		panic(err)
	}
	return engine
}

// NewWithConfig creates a match engine with custom configuration.
func NewWithConfig(storage service.Storage, candidates CandidateRetriever, config Config) (*MatchEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &MatchEngine{
		storage:   storage,
		retriever: candidates,
		config:    config,
	}, nil
}

// SetScheduler wires a job scheduler for asynchronous ingestion. Without
// one, Ingest runs the scoring pass inline.
func (e *MatchEngine) SetScheduler(scheduler service.JobScheduler) {
	e.scheduler = scheduler
}

// SetEmbeddingProvider wires an embedding provider. Items without an
// embedding are embedded before scoring; without a provider they score with
// a neutral similarity signal.
func (e *MatchEngine) SetEmbeddingProvider(embedder service.EmbeddingProvider) {
	e.embedder = embedder
}

// SetCurrencyConverter wires a currency converter used to derive base
// amounts for cross-currency comparison. Optional; without one the amount
// scorer falls back to its cross-currency penalty.
func (e *MatchEngine) SetCurrencyConverter(converter service.CurrencyConverter) {
	e.converter = converter
}

// Ingest persists a new inbox item and queues it for scoring. The item ID
// must be fresh: re-ingesting an existing ID would reset its lifecycle.
func (e *MatchEngine) Ingest(ctx context.Context, item *model.InboxItem) (*model.InboxItem, error) {
	if _, err := e.storage.GetInboxItem(ctx, item.ID); err == nil {
		return nil, fmt.Errorf("inbox item %s: %w", item.ID, common.ErrDuplicateEntry)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	item.Status = model.StatusNew
	item.MatchedTransactionID = nil

	if e.converter != nil && item.Amount != nil && item.BaseAmount == nil {
		base, baseCurrency, err := e.converter.ToBaseCurrency(ctx, *item.Amount, item.Currency, item.Date)
		switch {
		case errors.Is(err, service.ErrRateUnavailable):
			// Missing rate is a missing signal, not a failure.
			slog.Debug("No conversion rate for item",
				"inbox_item_id", item.ID,
				"currency", item.Currency)
		case err != nil:
			return nil, fmt.Errorf("failed to convert amount: %w", err)
		default:
			item.BaseAmount = &base
			item.BaseCurrency = baseCurrency
		}
	}

	if err := e.storage.SaveInboxItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save inbox item: %w", err)
	}

	if e.scheduler != nil {
		if err := e.scheduler.ScheduleItem(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("failed to schedule matching: %w", err)
		}
		return item, nil
	}

	return e.ProcessItem(ctx, item.ID)
}

// ProcessItem runs one scoring pass for a newly ingested item: it moves the
// item to analyzing, retrieves and scores candidates, and applies the
// decision. The item always leaves analyzing before ProcessItem returns.
func (e *MatchEngine) ProcessItem(ctx context.Context, itemID string) (*model.InboxItem, error) {
	item, err := e.storage.TransitionInboxItem(ctx, itemID, ingestFrom, model.StatusAnalyzing, "ingest")
	if err != nil {
		return nil, err
	}
	return e.runPipeline(ctx, item)
}

// RetryMatching re-enters the pipeline for an item that previously found no
// acceptable candidate, typically after more transactions have synced.
func (e *MatchEngine) RetryMatching(ctx context.Context, itemID string) (*model.InboxItem, error) {
	item, err := e.storage.TransitionInboxItem(ctx, itemID, retryFrom, model.StatusAnalyzing, "retry matching")
	if err != nil {
		return nil, err
	}
	return e.runPipeline(ctx, item)
}

// runPipeline takes an item already in analyzing through retrieval,
// scoring, decision, and the resulting transition.
func (e *MatchEngine) runPipeline(ctx context.Context, item *model.InboxItem) (*model.InboxItem, error) {
	e.ensureEmbedding(ctx, item)

	candidates, err := e.retriever.Retrieve(ctx, item)
	if err != nil {
		// Retrieval problems are never terminal: the item lands in
		// pending where the discrepancy queue and retries can reach it.
		slog.Warn("Candidate retrieval degraded",
			"inbox_item_id", item.ID,
			"error", err)
		return e.storage.TransitionInboxItem(ctx, item.ID, decideFrom, model.StatusPending, "degrade")
	}

	scored := e.scoreCandidates(item, candidates)
	return e.applyDecision(ctx, item, scored)
}

// ensureEmbedding backfills the item embedding when a provider is wired,
// so items ingested before the provider was configured still get semantic
// ranking on retry. Provider failure degrades to amount+date scoring.
func (e *MatchEngine) ensureEmbedding(ctx context.Context, item *model.InboxItem) {
	if e.embedder == nil || len(item.Embedding) > 0 || item.DisplayName == "" {
		return
	}

	embedding, err := e.embedder.Embed(ctx, item.DisplayName)
	if err != nil {
		slog.Warn("Embedding provider failed, scoring without similarity",
			"inbox_item_id", item.ID,
			"error", err)
		return
	}

	if err := e.storage.UpdateInboxItemEmbedding(ctx, item.ID, embedding); err != nil {
		slog.Warn("Failed to persist item embedding",
			"inbox_item_id", item.ID,
			"error", err)
		return
	}
	item.Embedding = embedding
}

// scoreCandidates folds the candidate list into scored candidates. Pure:
// the outcome does not depend on scoring order or shared state.
func (e *MatchEngine) scoreCandidates(item *model.InboxItem, candidates []retriever.Candidate) []policy.ScoredCandidate {
	itemSignal := score.AmountSignal{
		Amount:       item.Amount,
		Currency:     item.Currency,
		BaseAmount:   item.BaseAmount,
		BaseCurrency: item.BaseCurrency,
	}

	scored := make([]policy.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		txn := c.Transaction
		txnSignal := score.AmountSignal{
			Amount:       &txn.Amount,
			Currency:     txn.Currency,
			BaseAmount:   txn.BaseAmount,
			BaseCurrency: txn.BaseCurrency,
		}

		// A candidate without a ranked distance has no semantic signal;
		// like a missing amount, that is neutral rather than
		// disqualifying.
		similarity := 0.5
		if c.Distance != nil {
			similarity = score.SimilarityScore(*c.Distance)
		}

		scored = append(scored, policy.ScoredCandidate{
			Transaction: txn,
			Scores: score.Combine(e.config.Weights,
				similarity,
				score.AmountScore(itemSignal, txnSignal),
				score.DateScore(item.Date, txn.Date, item.Kind),
			),
		})
	}
	return scored
}

// applyDecision maps the policy outcome onto guarded transitions. On an
// auto-match conflict the losing item re-decides against the remaining
// candidate pool instead of failing terminally.
func (e *MatchEngine) applyDecision(ctx context.Context, item *model.InboxItem, scored []policy.ScoredCandidate) (*model.InboxItem, error) {
	for {
		decision := policy.Decide(e.config.Thresholds, scored)

		switch decision.Outcome {
		case policy.OutcomeNoMatch:
			return e.storage.TransitionInboxItem(ctx, item.ID, decideFrom, model.StatusNoMatch, "no match")

		case policy.OutcomeSuggest:
			if err := e.storage.ReplaceSuggestions(ctx, item.ID, toSuggestions(item.ID, decision.Suggestions)); err != nil {
				return e.degrade(ctx, item, fmt.Errorf("failed to persist suggestions: %w", err))
			}
			return e.storage.TransitionInboxItem(ctx, item.ID, decideFrom, model.StatusSuggestedMatch, "suggest")

		case policy.OutcomeAutoMatch:
			best := decision.Best()
			updated, err := e.storage.ClaimMatch(ctx, service.MatchClaim{
				InboxItemID:   item.ID,
				TransactionID: best.Transaction.ID,
				ConfirmedBy:   model.MatchBySystem,
				Op:            "auto match",
				AllowedFrom:   decideFrom,
			})
			if errors.Is(err, common.ErrMatchConflict) {
				slog.Info("Lost auto-match race, re-scoring remaining candidates",
					"inbox_item_id", item.ID,
					"transaction_id", best.Transaction.ID)
				scored = withoutTransaction(scored, best.Transaction.ID)
				continue
			}
			if err != nil {
				return e.degrade(ctx, item, err)
			}
			slog.Info("Auto-matched inbox item",
				"inbox_item_id", item.ID,
				"transaction_id", best.Transaction.ID,
				"confidence", best.Scores.Confidence)
			return updated, nil

		default:
			return nil, fmt.Errorf("unknown decision outcome: %q", decision.Outcome)
		}
	}
}

// degrade routes an item out of analyzing when its decision cannot be
// persisted. The item lands in pending, the same place degraded retrieval
// puts it, so the discrepancy queue and retry sweeps can reach it; the
// original failure still propagates to the caller.
func (e *MatchEngine) degrade(ctx context.Context, item *model.InboxItem, cause error) (*model.InboxItem, error) {
	if _, err := e.storage.TransitionInboxItem(ctx, item.ID, decideFrom, model.StatusPending, "degrade"); err != nil {
		slog.Error("Failed to degrade inbox item to pending",
			"inbox_item_id", item.ID,
			"error", err)
	}
	return nil, cause
}

// Confirm links an item to a transaction on a human's say-so. The item may
// be awaiting a suggestion decision or have had no match at all; the target
// transaction may be any transaction the team owns.
func (e *MatchEngine) Confirm(ctx context.Context, itemID, transactionID string, confirmedBy model.MatchSource) (*model.InboxItem, error) {
	if _, err := e.storage.GetTransactionByID(ctx, transactionID); err != nil {
		return nil, err
	}

	return e.storage.ClaimMatch(ctx, service.MatchClaim{
		InboxItemID:   itemID,
		TransactionID: transactionID,
		ConfirmedBy:   confirmedBy,
		Op:            "confirm",
		AllowedFrom:   confirmFrom,
	})
}

// Decline removes one suggestion. Declining the last suggestion moves the
// item to no_match; otherwise it stays in suggested_match.
func (e *MatchEngine) Decline(ctx context.Context, itemID, suggestionID string) (*model.InboxItem, error) {
	item, err := e.storage.GetInboxItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !allowedFrom([]model.InboxStatus{model.StatusSuggestedMatch}, item.Status) {
		return nil, common.NewTransitionError("decline", item.Status)
	}

	remaining, err := e.storage.DeleteSuggestion(ctx, itemID, suggestionID)
	if err != nil {
		return nil, err
	}

	if remaining == 0 {
		return e.storage.TransitionInboxItem(ctx, itemID,
			[]model.InboxStatus{model.StatusSuggestedMatch}, model.StatusNoMatch, "decline")
	}
	return e.storage.GetInboxItem(ctx, itemID)
}

// Unmatch removes an item's confirmed match and returns it to pending.
// Idempotent: unmatching an already-pending item is a no-op.
func (e *MatchEngine) Unmatch(ctx context.Context, itemID string) (*model.InboxItem, error) {
	return e.storage.ReleaseMatch(ctx, itemID)
}

// Archive parks an item administratively.
func (e *MatchEngine) Archive(ctx context.Context, itemID string) (*model.InboxItem, error) {
	return e.storage.TransitionInboxItem(ctx, itemID, archiveFrom, model.StatusArchived, "archive")
}

// Delete soft-deletes an item. Deleted items never move again.
func (e *MatchEngine) Delete(ctx context.Context, itemID string) (*model.InboxItem, error) {
	return e.storage.TransitionInboxItem(ctx, itemID, deleteFrom, model.StatusDeleted, "delete")
}

// Item returns one inbox item.
func (e *MatchEngine) Item(ctx context.Context, itemID string) (*model.InboxItem, error) {
	return e.storage.GetInboxItem(ctx, itemID)
}

// Suggestions returns the current suggestions for one item, best first.
func (e *MatchEngine) Suggestions(ctx context.Context, itemID string) (model.MatchSuggestions, error) {
	return e.storage.GetSuggestionsForItem(ctx, itemID)
}

// MatchHistory returns a transaction's full match audit trail.
func (e *MatchEngine) MatchHistory(ctx context.Context, transactionID string) ([]model.MatchEvent, error) {
	return e.storage.GetMatchHistory(ctx, transactionID)
}

func toSuggestions(itemID string, candidates []policy.ScoredCandidate) []model.MatchSuggestion {
	suggestions := make([]model.MatchSuggestion, len(candidates))
	for i, c := range candidates {
		suggestions[i] = model.MatchSuggestion{
			InboxItemID:     itemID,
			TransactionID:   c.Transaction.ID,
			TransactionDate: c.Transaction.Date,
			Confidence:      c.Scores.Confidence,
			AmountScore:     c.Scores.Amount,
			DateScore:       c.Scores.Date,
			SimilarityScore: c.Scores.Similarity,
		}
	}
	return suggestions
}

func withoutTransaction(scored []policy.ScoredCandidate, transactionID string) []policy.ScoredCandidate {
	filtered := make([]policy.ScoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.Transaction.ID != transactionID {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
