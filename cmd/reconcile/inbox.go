package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/engine"
	"github.com/ledgerline/reconcile/internal/model"
)

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Inspect and act on inbox items",
	}

	cmd.AddCommand(inboxListCmd())
	cmd.AddCommand(inboxShowCmd())
	cmd.AddCommand(inboxConfirmCmd())
	cmd.AddCommand(inboxDeclineCmd())
	cmd.AddCommand(inboxUnmatchCmd())
	cmd.AddCommand(inboxRetryCmd())
	cmd.AddCommand(inboxArchiveCmd())
	cmd.AddCommand(inboxDeleteCmd())

	return cmd
}

func inboxListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inbox items by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			teamID, _ := cmd.Flags().GetString("team")
			statusList, _ := cmd.Flags().GetStringSlice("status")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			statuses := make([]model.InboxStatus, 0, len(statusList))
			for _, s := range statusList {
				status := model.InboxStatus(s)
				if !model.ValidStatus(status) {
					return fmt.Errorf("invalid status: %q", s)
				}
				statuses = append(statuses, status)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := store.ListInboxItemsByStatus(ctx, teamID, statuses, limit, offset)
			if err != nil {
				return err
			}

			printItemTable(items)
			return nil
		},
	}

	cmd.Flags().String("team", "", "team to list items for (required)")
	cmd.Flags().StringSlice("status", []string{
		string(model.StatusSuggestedMatch), string(model.StatusNoMatch), string(model.StatusPending),
	}, "statuses to include")
	cmd.Flags().Int("limit", 50, "maximum items to list")
	cmd.Flags().Int("offset", 0, "items to skip")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func inboxShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one inbox item with its suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, _, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return printItemDetail(ctx, eng, args[0])
		},
	}
}

// itemAction builds a command that runs one state-machine operation and
// prints the resulting status.
func itemAction(use, short string, nargs int, run func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, _, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			item, err := run(ctx, eng, args)
			if err != nil {
				switch {
				case errors.Is(err, common.ErrMatchConflict):
					return common.NewUserError("transaction is already matched to another item", err)
				case errors.Is(err, common.ErrInvalidTransition):
					return common.NewUserError("the item's current status does not allow this action", err)
				case errors.Is(err, common.ErrNotFound):
					return common.NewUserError("no such item, transaction, or suggestion", err)
				}
				return err
			}

			fmt.Printf("%s is now %s\n", item.ID, renderStatus(item.Status))
			return nil
		},
	}
}

func inboxConfirmCmd() *cobra.Command {
	return itemAction("confirm <item-id> <transaction-id>", "Confirm a match", 2,
		func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error) {
			return eng.Confirm(ctx, args[0], args[1], model.MatchByUser)
		})
}

func inboxDeclineCmd() *cobra.Command {
	return itemAction("decline <item-id> <suggestion-id>", "Decline one suggestion", 2,
		func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error) {
			return eng.Decline(ctx, args[0], args[1])
		})
}

func inboxUnmatchCmd() *cobra.Command {
	return itemAction("unmatch <item-id>", "Remove a confirmed match", 1,
		func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error) {
			return eng.Unmatch(ctx, args[0])
		})
}

func inboxRetryCmd() *cobra.Command {
	return itemAction("retry <item-id>", "Re-run matching for an unresolved item", 1,
		func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error) {
			return eng.RetryMatching(ctx, args[0])
		})
}

func inboxArchiveCmd() *cobra.Command {
	return itemAction("archive <item-id>", "Archive an item", 1,
		func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error) {
			return eng.Archive(ctx, args[0])
		})
}

func inboxDeleteCmd() *cobra.Command {
	return itemAction("delete <item-id>", "Soft-delete an item", 1,
		func(ctx context.Context, eng *engine.MatchEngine, args []string) (*model.InboxItem, error) {
			return eng.Delete(ctx, args[0])
		})
}

func printItemTable(items []model.InboxItem) {
	if len(items) == 0 {
		fmt.Println("No items found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Status"),
		headerStyle.Render("Name"),
		headerStyle.Render("Amount"),
		headerStyle.Render("Date"))

	for i := range items {
		item := &items[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			renderStatus(item.Status),
			item.DisplayName,
			formatAmount(item),
			item.Date.Format("2006-01-02"))
	}
}

func printItemDetail(ctx context.Context, eng *engine.MatchEngine, itemID string) error {
	item, err := eng.Item(ctx, itemID)
	if err != nil {
		return err
	}

	fmt.Printf("Item:     %s\n", item.ID)
	fmt.Printf("Name:     %s\n", item.DisplayName)
	fmt.Printf("Kind:     %s\n", item.Kind)
	fmt.Printf("Amount:   %s\n", formatAmount(item))
	fmt.Printf("Date:     %s\n", item.Date.Format("2006-01-02"))
	fmt.Printf("Status:   %s\n", renderStatus(item.Status))
	if item.MatchedTransactionID != nil {
		fmt.Printf("Matched:  %s\n", *item.MatchedTransactionID)
	}

	suggestions, err := eng.Suggestions(ctx, itemID)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("Suggestion"),
		headerStyle.Render("Transaction"),
		headerStyle.Render("Confidence"),
		headerStyle.Render("Amount"),
		headerStyle.Render("Date"),
		headerStyle.Render("Similarity"))

	for _, s := range suggestions {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f\t%.2f\t%.2f\n",
			s.ID, s.TransactionID, s.Confidence, s.AmountScore, s.DateScore, s.SimilarityScore)
	}

	return nil
}

func renderStatus(status model.InboxStatus) string {
	var color string
	switch status {
	case model.StatusDone:
		color = "42"
	case model.StatusSuggestedMatch:
		color = "86"
	case model.StatusNoMatch:
		color = "203"
	case model.StatusPending:
		color = "214"
	case model.StatusArchived, model.StatusDeleted:
		color = "241"
	default:
		color = "252"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(strings.ToUpper(string(status)))
}
