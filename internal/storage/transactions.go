package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/service"
)

// SaveTransactions persists ledger transactions, skipping duplicates by hash.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, team_id, hash, date, name, account_id,
			amount, currency, base_amount, base_currency, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		embedding, encErr := encodeEmbedding(txn.Embedding)
		if encErr != nil {
			return encErr
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID, txn.TeamID, txn.Hash, txn.Date, txn.Name, txn.AccountID,
			txn.Amount.String(), txn.Currency,
			encodeDecimal(txn.BaseAmount), txn.BaseCurrency, embedding,
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionByID fetches one transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, hash, date, name, account_id,
			amount, currency, base_amount, base_currency, embedding
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return txn, err
}

// GetCandidateTransactions returns a team's transactions inside the date
// window that are not already the subject of a confirmed match.
func (s *SQLiteStorage) GetCandidateTransactions(ctx context.Context, query service.CandidateQuery) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(query.TeamID, "teamID"); err != nil {
		return nil, err
	}
	if query.Limit <= 0 {
		query.Limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, hash, date, name, account_id,
			amount, currency, base_amount, base_currency, embedding
		FROM transactions
		WHERE team_id = ?
			AND date >= ? AND date <= ?
			AND id NOT IN (SELECT transaction_id FROM confirmed_matches)
		ORDER BY date DESC, id
		LIMIT ?
	`, query.TeamID, query.Start, query.End, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

// GetTransactionsWithEmbeddings returns a team's transactions that carry an
// embedding vector, for local nearest-neighbor scans.
func (s *SQLiteStorage) GetTransactionsWithEmbeddings(ctx context.Context, teamID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(teamID, "teamID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, hash, date, name, account_id,
			amount, currency, base_amount, base_currency, embedding
		FROM transactions
		WHERE team_id = ? AND embedding IS NOT NULL
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions with embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn          model.Transaction
		accountID    sql.NullString
		amount       string
		baseAmount   sql.NullString
		baseCurrency sql.NullString
		embedding    sql.NullString
	)

	err := row.Scan(
		&txn.ID, &txn.TeamID, &txn.Hash, &txn.Date, &txn.Name, &accountID,
		&amount, &txn.Currency, &baseAmount, &baseCurrency, &embedding,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.AccountID = accountID.String
	txn.BaseCurrency = baseCurrency.String

	amt, err := decodeDecimal(sql.NullString{String: amount, Valid: true})
	if err != nil {
		return nil, err
	}
	txn.Amount = *amt

	if txn.BaseAmount, err = decodeDecimal(baseAmount); err != nil {
		return nil, err
	}
	if txn.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}

	return &txn, nil
}
