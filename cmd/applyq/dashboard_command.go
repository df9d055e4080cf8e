package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"applyq/internal/dashboard"
)

func newDashboardCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "dashboard [VIEW]",
		Short:     "Show the apply queue dashboard",
		Long:      "dashboard renders the queue grouped into views: " + strings.Join(viewNameStrings(), ", ") + ". Pass a view name to show only that view.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: viewNameStrings(),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if len(args) == 1 {
				var view dashboard.View
				if err := client.get("/api/dashboard/"+args[0], &view); err != nil {
					return err
				}
				printView(out, view, colorize)
				return nil
			}

			var snapshot dashboard.Snapshot
			if err := client.get("/api/dashboard", &snapshot); err != nil {
				return err
			}
			if snapshot.Total == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			for i, view := range snapshot.Views {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printView(out, view, colorize)
			}
			return nil
		},
	}
	return cmd
}

func viewNameStrings() []string {
	names := dashboard.ViewNames()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = string(name)
	}
	return out
}

func printView(out io.Writer, view dashboard.View, colorize bool) {
	title := strings.ToUpper(string(view.Name))
	if colorize {
		title = ansiBold + title + ansiReset
	}
	fmt.Fprintf(out, "%s (%d)\n", title, len(view.Cards))
	if len(view.Cards) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return
	}

	rows := make([][]string, 0, len(view.Cards))
	for _, card := range view.Cards {
		cardTitle := truncateCell(card.Title, 40)
		if card.IsNew {
			cardTitle += " *"
			if colorize {
				cardTitle = ansiGreen + cardTitle + ansiReset
			}
		}
		detail := card.SkipReason
		if detail == "" {
			detail = card.Error
		}
		if detail == "" && card.OutputFolder != "" {
			detail = card.OutputFolder
		}
		rows = append(rows, []string{
			card.JobID,
			cardTitle,
			truncateCell(card.Company, 24),
			formatScore(card.FitScore),
			string(card.Tier),
			string(card.Status),
			truncateCell(detail, 36),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Title", "Company", "Score", "Tier", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}
