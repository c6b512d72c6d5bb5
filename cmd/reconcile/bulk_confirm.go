package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func bulkConfirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk-confirm",
		Short: "Confirm every suggestion above the auto-match threshold",
		Long: `Sweep the team's review queue and confirm every suggested match whose
best suggestion clears the auto-match confidence threshold. Items below
the threshold are left for manual review; individual failures never
abort the sweep.`,
		RunE: runBulkConfirm,
	}

	cmd.Flags().String("team", "", "team to sweep (required)")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func runBulkConfirm(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	teamID, _ := cmd.Flags().GetString("team")

	eng, store, _, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan][bold]Confirming eligible matches...[reset]"),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	result, err := eng.BulkConfirmAutoEligible(ctx, teamID)
	close(done)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return err
	}

	slog.Info("Bulk confirmation complete",
		"team_id", teamID,
		"confirmed", result.Confirmed,
		"failed", len(result.Failed))

	for _, failure := range result.Failed {
		fmt.Printf("  %s: %s\n", failure.ID, failure.Reason)
	}
	return nil
}
