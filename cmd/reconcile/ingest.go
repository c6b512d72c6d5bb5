package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerline/reconcile/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add a document to the inbox and match it",
		Long: `Register an incoming document (receipt or invoice) and run one
matching pass against the team's ledger transactions.`,
		RunE: runIngest,
	}

	cmd.Flags().String("team", "", "team that owns the document (required)")
	cmd.Flags().String("name", "", "document display name (required)")
	cmd.Flags().String("amount", "", "document amount, e.g. 25.99")
	cmd.Flags().String("currency", "USD", "document currency code")
	cmd.Flags().String("date", "", "document date (YYYY-MM-DD, default today)")
	cmd.Flags().String("kind", string(model.KindExpense), "document kind (expense, invoice)")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	teamID, _ := cmd.Flags().GetString("team")
	name, _ := cmd.Flags().GetString("name")
	amountStr, _ := cmd.Flags().GetString("amount")
	currency, _ := cmd.Flags().GetString("currency")
	dateStr, _ := cmd.Flags().GetString("date")
	kindStr, _ := cmd.Flags().GetString("kind")

	kind := model.DocumentKind(kindStr)
	if kind != model.KindExpense && kind != model.KindInvoice {
		return fmt.Errorf("invalid document kind: %q", kindStr)
	}

	date := time.Now().UTC()
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", dateStr, err)
		}
		date = parsed
	}

	item := &model.InboxItem{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		DisplayName: name,
		Currency:    currency,
		Date:        date,
		Kind:        kind,
		Status:      model.StatusNew,
	}

	if amountStr != "" {
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		item.Amount = &amount
	}

	if err := item.Validate(); err != nil {
		return err
	}

	eng, store, _, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	updated, err := eng.Ingest(ctx, item)
	if err != nil {
		return err
	}

	slog.Info("Document ingested",
		"inbox_item_id", updated.ID,
		"status", updated.Status)

	if updated.Status == model.StatusSuggestedMatch {
		return printItemDetail(ctx, eng, updated.ID)
	}
	return nil
}
