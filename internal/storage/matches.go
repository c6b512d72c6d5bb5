package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/service"
)

// ClaimMatch atomically links an inbox item to a transaction: it guards the
// item-side transition, inserts the confirmed match, stamps the item's
// back-reference, and records the audit event, all in one database
// transaction. The UNIQUE constraint on confirmed_matches(transaction_id) is
// the claim: of two racing callers, exactly one insert succeeds and the
// loser gets ErrMatchConflict.
func (s *SQLiteStorage) ClaimMatch(ctx context.Context, claim service.MatchClaim) (*model.InboxItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(claim.InboxItemID, "inboxItemID"); err != nil {
		return nil, err
	}
	if err := validateString(claim.TransactionID, "transactionID"); err != nil {
		return nil, err
	}
	if claim.ConfirmedBy != model.MatchBySystem && claim.ConfirmedBy != model.MatchByUser {
		return nil, fmt.Errorf("invalid match source: %q", claim.ConfirmedBy)
	}
	if len(claim.AllowedFrom) == 0 {
		return nil, fmt.Errorf("%w: allowed statuses", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Guard the item-side transition first so a bad source status surfaces
	// as InvalidTransition rather than a spurious conflict.
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM inbox_items WHERE id = ?`, claim.InboxItemID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inbox item %s: %w", claim.InboxItemID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox item status: %w", err)
	}

	allowed := false
	for _, st := range claim.AllowedFrom {
		if model.InboxStatus(status) == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, common.NewTransitionError(claim.Op, model.InboxStatus(status))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO confirmed_matches (inbox_item_id, transaction_id, confirmed_by)
		VALUES (?, ?, ?)
	`, claim.InboxItemID, claim.TransactionID, string(claim.ConfirmedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transaction %s: %w", claim.TransactionID, common.ErrMatchConflict)
		}
		return nil, fmt.Errorf("failed to create confirmed match: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inbox_items
		SET status = ?, matched_transaction_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(model.StatusDone), claim.TransactionID, claim.InboxItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to update inbox item: %w", err)
	}

	// The match supersedes whatever suggestions the scoring pass left.
	if _, err = tx.ExecContext(ctx, `DELETE FROM match_suggestions WHERE inbox_item_id = ?`, claim.InboxItemID); err != nil {
		return nil, fmt.Errorf("failed to clear suggestions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_events (inbox_item_id, transaction_id, event_type, actor)
		VALUES (?, ?, ?, ?)
	`, claim.InboxItemID, claim.TransactionID, string(model.EventConfirmed), string(claim.ConfirmedBy))
	if err != nil {
		return nil, fmt.Errorf("failed to record confirm event: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, team_id, display_name, amount, currency,
			base_amount, base_currency, date, kind, status,
			matched_transaction_id, embedding, created_at, updated_at
		FROM inbox_items
		WHERE id = ?
	`, claim.InboxItemID)
	item, err := scanInboxItem(row)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return item, nil
}

// ReleaseMatch removes an item's confirmed match and back-reference and
// returns it to pending. Releasing an already-pending item is a no-op.
func (s *SQLiteStorage) ReleaseMatch(ctx context.Context, inboxItemID string) (*model.InboxItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(inboxItemID, "inboxItemID"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, team_id, display_name, amount, currency,
			base_amount, base_currency, date, kind, status,
			matched_transaction_id, embedding, created_at, updated_at
		FROM inbox_items
		WHERE id = ?
	`, inboxItemID)
	item, err := scanInboxItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inbox item %s: %w", inboxItemID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	switch item.Status {
	case model.StatusDone:
		// Fall through to the actual release below.
	case model.StatusPending:
		// Already unmatched.
		return item, nil
	default:
		return nil, common.NewTransitionError("unmatch", item.Status)
	}

	var transactionID string
	err = tx.QueryRowContext(ctx, `
		SELECT transaction_id FROM confirmed_matches WHERE inbox_item_id = ?
	`, inboxItemID).Scan(&transactionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up confirmed match: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM confirmed_matches WHERE inbox_item_id = ?`, inboxItemID); err != nil {
		return nil, fmt.Errorf("failed to delete confirmed match: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inbox_items
		SET status = ?, matched_transaction_id = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(model.StatusPending), inboxItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to update inbox item: %w", err)
	}

	if transactionID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_events (inbox_item_id, transaction_id, event_type, actor)
			VALUES (?, ?, ?, ?)
		`, inboxItemID, transactionID, string(model.EventUnmatched), string(model.MatchByUser))
		if err != nil {
			return nil, fmt.Errorf("failed to record unmatch event: %w", err)
		}
	}

	item.Status = model.StatusPending
	item.MatchedTransactionID = nil

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}
	return item, nil
}

// GetMatchForTransaction returns the active confirmed match for a
// transaction, or ErrNotFound when it is unclaimed.
func (s *SQLiteStorage) GetMatchForTransaction(ctx context.Context, transactionID string) (*model.ConfirmedMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	var (
		match       model.ConfirmedMatch
		confirmedBy string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, inbox_item_id, transaction_id, confirmed_by, confirmed_at
		FROM confirmed_matches
		WHERE transaction_id = ?
	`, transactionID).Scan(&match.ID, &match.InboxItemID, &match.TransactionID, &confirmedBy, &match.ConfirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match for transaction %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed match: %w", err)
	}

	match.ConfirmedBy = model.MatchSource(confirmedBy)
	return &match, nil
}

// GetMatchHistory returns a transaction's full match audit trail, oldest
// first.
func (s *SQLiteStorage) GetMatchHistory(ctx context.Context, transactionID string) ([]model.MatchEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inbox_item_id, transaction_id, event_type, actor, created_at
		FROM match_events
		WHERE transaction_id = ?
		ORDER BY created_at, id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.MatchEvent
	for rows.Next() {
		var (
			event     model.MatchEvent
			eventType string
			actor     string
		)
		err = rows.Scan(&event.ID, &event.InboxItemID, &event.TransactionID, &eventType, &actor, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match event: %w", err)
		}
		event.Type = model.MatchEventType(eventType)
		event.Actor = model.MatchSource(actor)
		events = append(events, event)
	}
	return events, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
