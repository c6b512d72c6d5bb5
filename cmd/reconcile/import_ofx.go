package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/engine"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/ofx"
	"github.com/ledgerline/reconcile/internal/service"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import ledger transactions from OFX or QFX (Quicken) files exported
from your bank. Duplicates are detected by content hash and skipped.
After a successful import, unresolved inbox items for the team are
re-scored against the enlarged transaction pool.

Examples:
  reconcile import --team acme ~/Downloads/chase_jan_2024.qfx
  reconcile import --team acme ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("team", "", "team that owns the transactions (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "preview import without saving")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	teamID, _ := cmd.Flags().GetString("team")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing OFX files...",
		"file_count", len(allFiles),
		"team_id", teamID,
		"dry_run", dryRun)

	var allTransactions []model.Transaction
	seen := make(map[string]bool)

	parser := ofx.NewParser()

	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			continue
		}

		transactions, err := parser.ParseFile(ctx, f, teamID)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", filePath, "error", err)
			continue
		}

		added := 0
		for _, tx := range transactions {
			if !seen[tx.Hash] {
				seen[tx.Hash] = true
				allTransactions = append(allTransactions, tx)
				added++
			}
		}
		slog.Info("Processed file",
			"file", filepath.Base(filePath),
			"transactions", added)
	}

	if len(allTransactions) == 0 {
		return fmt.Errorf("no transactions found in %d file(s)", len(allFiles))
	}

	if dryRun {
		slog.Info("Dry run complete, nothing saved",
			"transactions", len(allTransactions))
		return nil
	}

	eng, store, matching, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Imports race with matching workers for the write lock; transient
	// contention is worth a few retries.
	err = common.WithRetry(ctx, func() error {
		return store.SaveTransactions(ctx, allTransactions)
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	slog.Info("Imported transactions", "count", len(allTransactions))

	// New transactions may resolve items that previously had no match.
	sched := engine.NewScheduler(eng, matching.Workers, matching.QueueDepth)
	sched.Start(ctx)
	if err := sched.ScheduleTeam(ctx, teamID); err != nil {
		sched.Stop()
		return err
	}
	sched.Stop()

	slog.Info("Re-scored unresolved items", "team_id", teamID)
	return nil
}
