package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <transaction-id>",
		Short: "Show the match audit trail for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, _, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := eng.MatchHistory(ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No match history.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("When"),
				headerStyle.Render("Event"),
				headerStyle.Render("Item"),
				headerStyle.Render("Actor"))

			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.Type, e.InboxItemID, e.Actor)
			}
			return nil
		},
	}
}
