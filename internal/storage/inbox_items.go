package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
)

// SaveInboxItem inserts or updates an inbox item.
func (s *SQLiteStorage) SaveInboxItem(ctx context.Context, item *model.InboxItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInboxItem(item); err != nil {
		return err
	}

	embedding, err := encodeEmbedding(item.Embedding)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inbox_items (
			id, team_id, display_name, amount, currency,
			base_amount, base_currency, date, kind, status,
			matched_transaction_id, embedding, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			amount = excluded.amount,
			currency = excluded.currency,
			base_amount = excluded.base_amount,
			base_currency = excluded.base_currency,
			date = excluded.date,
			kind = excluded.kind,
			status = excluded.status,
			matched_transaction_id = excluded.matched_transaction_id,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`,
		item.ID,
		item.TeamID,
		item.DisplayName,
		encodeDecimal(item.Amount),
		item.Currency,
		encodeDecimal(item.BaseAmount),
		item.BaseCurrency,
		item.Date,
		string(item.Kind),
		string(item.Status),
		item.MatchedTransactionID,
		embedding,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save inbox item: %w", err)
	}
	return nil
}

// GetInboxItem fetches one inbox item by id.
func (s *SQLiteStorage) GetInboxItem(ctx context.Context, id string) (*model.InboxItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, display_name, amount, currency,
			base_amount, base_currency, date, kind, status,
			matched_transaction_id, embedding, created_at, updated_at
		FROM inbox_items
		WHERE id = ?
	`, id)

	item, err := scanInboxItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inbox item %s: %w", id, common.ErrNotFound)
	}
	return item, err
}

// ListInboxItemsByStatus lists a team's inbox items in any of the given
// statuses, newest first.
func (s *SQLiteStorage) ListInboxItemsByStatus(ctx context.Context, teamID string, statuses []model.InboxStatus, limit, offset int) ([]model.InboxItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: statuses", ErrEmptySlice)
	}
	if limit <= 0 {
		limit = 50
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+3)
	args = append(args, teamID)
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, team_id, display_name, amount, currency,
			base_amount, base_currency, date, kind, status,
			matched_transaction_id, embedding, created_at, updated_at
		FROM inbox_items
		WHERE team_id = ? AND status IN (%s)
		ORDER BY date DESC, id
		LIMIT ? OFFSET ?
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.InboxItem
	for rows.Next() {
		item, scanErr := scanInboxItem(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// TransitionInboxItem atomically moves an item from one of the allowed
// statuses to the target status. The conditional update is the concurrency
// guard: two racing transitions cannot both see an allowed source status.
func (s *SQLiteStorage) TransitionInboxItem(ctx context.Context, id string, from []model.InboxStatus, to model.InboxStatus, op string) (*model.InboxItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: from statuses", ErrEmptySlice)
	}
	if !model.ValidStatus(to) {
		return nil, fmt.Errorf("invalid target status: %q", to)
	}

	placeholders := make([]string, len(from))
	args := make([]any, 0, len(from)+2)
	args = append(args, string(to), id)
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	query := fmt.Sprintf(`
		UPDATE inbox_items
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to transition inbox item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		item, getErr := s.GetInboxItem(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, common.NewTransitionError(op, item.Status)
	}

	return s.GetInboxItem(ctx, id)
}

// UpdateInboxItemEmbedding stores a freshly computed embedding vector.
func (s *SQLiteStorage) UpdateInboxItemEmbedding(ctx context.Context, id string, embedding []float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE inbox_items SET embedding = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, encoded, id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("inbox item %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInboxItem(row rowScanner) (*model.InboxItem, error) {
	var (
		item         model.InboxItem
		displayName  sql.NullString
		amount       sql.NullString
		currency     sql.NullString
		baseAmount   sql.NullString
		baseCurrency sql.NullString
		matchedID    sql.NullString
		embedding    sql.NullString
		kind, status string
	)

	err := row.Scan(
		&item.ID, &item.TeamID, &displayName, &amount, &currency,
		&baseAmount, &baseCurrency, &item.Date, &kind, &status,
		&matchedID, &embedding, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan inbox item: %w", err)
	}

	item.DisplayName = displayName.String
	item.Currency = currency.String
	item.BaseCurrency = baseCurrency.String
	item.Kind = model.DocumentKind(kind)
	item.Status = model.InboxStatus(status)

	if item.Amount, err = decodeDecimal(amount); err != nil {
		return nil, err
	}
	if item.BaseAmount, err = decodeDecimal(baseAmount); err != nil {
		return nil, err
	}
	if item.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}
	if matchedID.Valid {
		item.MatchedTransactionID = &matchedID.String
	}

	return &item, nil
}
