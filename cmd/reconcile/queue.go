package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the discrepancy review queue",
		Long: `List the items that found no acceptable match and await manual review.
Resolve an item with "inbox confirm" or exclude it with "inbox archive".`,
		RunE: runQueue,
	}

	cmd.Flags().String("team", "", "team to list (required)")
	cmd.Flags().Int("limit", 50, "maximum items to list")
	cmd.Flags().Int("offset", 0, "items to skip")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func runQueue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	teamID, _ := cmd.Flags().GetString("team")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	eng, store, _, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	items, err := eng.DiscrepancyQueue(ctx, teamID, limit, offset)
	if err != nil {
		return err
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).
		Render(fmt.Sprintf("Discrepancy queue for %s (%d items)", teamID, len(items)))
	fmt.Println(title)
	fmt.Println()

	printItemTable(items)
	return nil
}
