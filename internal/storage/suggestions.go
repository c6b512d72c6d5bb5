package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
)

// ReplaceSuggestions swaps an inbox item's suggestion set wholesale.
// Suggestions are disposable and re-computable, so no coordination with
// concurrent readers is needed.
func (s *SQLiteStorage) ReplaceSuggestions(ctx context.Context, inboxItemID string, suggestions []model.MatchSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(inboxItemID, "inboxItemID"); err != nil {
		return err
	}
	if err := validateSuggestions(suggestions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM match_suggestions WHERE inbox_item_id = ?`, inboxItemID); err != nil {
		return fmt.Errorf("failed to clear previous suggestions: %w", err)
	}

	for i := range suggestions {
		sg := &suggestions[i]
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		if sg.ScoredAt.IsZero() {
			sg.ScoredAt = time.Now().UTC()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_suggestions (
				id, inbox_item_id, transaction_id, confidence,
				amount_score, date_score, similarity_score, scored_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sg.ID, sg.InboxItemID, sg.TransactionID, sg.Confidence,
			sg.AmountScore, sg.DateScore, sg.SimilarityScore, sg.ScoredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save suggestion: %w", err)
		}
	}

	return tx.Commit()
}

// GetSuggestionsForItem returns the current suggestions for one inbox item,
// best first.
func (s *SQLiteStorage) GetSuggestionsForItem(ctx context.Context, inboxItemID string) (model.MatchSuggestions, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(inboxItemID, "inboxItemID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ms.id, ms.inbox_item_id, ms.transaction_id, ms.confidence,
			ms.amount_score, ms.date_score, ms.similarity_score, ms.scored_at,
			t.date
		FROM match_suggestions ms
		JOIN transactions t ON t.id = ms.transaction_id
		WHERE ms.inbox_item_id = ?
		ORDER BY ms.confidence DESC, t.date DESC
	`, inboxItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions model.MatchSuggestions
	for rows.Next() {
		var sg model.MatchSuggestion
		err = rows.Scan(
			&sg.ID, &sg.InboxItemID, &sg.TransactionID, &sg.Confidence,
			&sg.AmountScore, &sg.DateScore, &sg.SimilarityScore, &sg.ScoredAt,
			&sg.TransactionDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

// DeleteSuggestion removes one declined suggestion, records the decline in
// the audit trail, and returns how many suggestions remain for the item.
func (s *SQLiteStorage) DeleteSuggestion(ctx context.Context, inboxItemID, suggestionID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(inboxItemID, "inboxItemID"); err != nil {
		return 0, err
	}
	if err := validateString(suggestionID, "suggestionID"); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var transactionID string
	err = tx.QueryRowContext(ctx, `
		SELECT transaction_id FROM match_suggestions WHERE id = ? AND inbox_item_id = ?
	`, suggestionID, inboxItemID).Scan(&transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("suggestion %s: %w", suggestionID, common.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up suggestion: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM match_suggestions WHERE id = ?`, suggestionID); err != nil {
		return 0, fmt.Errorf("failed to delete suggestion: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_events (inbox_item_id, transaction_id, event_type, actor)
		VALUES (?, ?, ?, ?)
	`, inboxItemID, transactionID, string(model.EventDeclined), string(model.MatchByUser))
	if err != nil {
		return 0, fmt.Errorf("failed to record decline event: %w", err)
	}

	var remaining int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM match_suggestions WHERE inbox_item_id = ?
	`, inboxItemID).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("failed to count remaining suggestions: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}
