package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgerline/reconcile/internal/engine"
	"github.com/ledgerline/reconcile/internal/model"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run matching for unprocessed inbox items",
		Long: `Score every new inbox item in the team against its candidate
transactions. With --retry, items that previously found no match are
re-scored as well. Items run on a worker pool; the command returns once
the queue drains.`,
		RunE: runMatch,
	}

	cmd.Flags().String("team", "", "team to process (required)")
	cmd.Flags().Bool("retry", false, "also re-score no_match and pending items")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func runMatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	teamID, _ := cmd.Flags().GetString("team")
	retry, _ := cmd.Flags().GetBool("retry")

	eng, store, matching, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Snapshot the new items before the workers start moving them out of
	// new, which would shift the pagination offsets.
	const pageSize = 100
	var pending []model.InboxItem
	for offset := 0; ; offset += pageSize {
		items, err := store.ListInboxItemsByStatus(ctx, teamID,
			[]model.InboxStatus{model.StatusNew}, pageSize, offset)
		if err != nil {
			return err
		}
		pending = append(pending, items...)
		if len(items) < pageSize {
			break
		}
	}

	sched := engine.NewScheduler(eng, matching.Workers, matching.QueueDepth)
	sched.Start(ctx)
	defer sched.Stop()

	for i := range pending {
		if err := sched.ScheduleItem(ctx, pending[i].ID); err != nil {
			return err
		}
	}

	if retry {
		if err := sched.ScheduleTeam(ctx, teamID); err != nil {
			return err
		}
	}

	// Stop drains the queue; the deferred call handles the error paths.
	sched.Stop()

	slog.Info("Matching pass complete",
		"team_id", teamID,
		"items_scheduled", len(pending),
		"retry_sweep", retry)
	return nil
}
