package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var datePosted string
	var numPages int
	var minScore int
	var sortBy string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Start a background job search run",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			payload := map[string]any{}
			if datePosted != "" {
				payload["date_posted"] = datePosted
			}
			if numPages > 0 {
				payload["num_pages"] = numPages
			}
			if minScore > 0 {
				payload["min_score"] = minScore
			}
			if sortBy != "" {
				payload["sort_by"] = sortBy
			}

			var resp struct {
				RunID string `json:"run_id"`
			}
			if err := client.post("/api/search", payload, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Search started (run %s)\n", resp.RunID)
			return nil
		},
	}

	cmd.Flags().StringVar(&datePosted, "date-posted", "", "Posting age filter (e.g. week, month)")
	cmd.Flags().IntVar(&numPages, "pages", 0, "Number of result pages to fetch")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum fit score to request")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Result ordering requested from the search service")
	return cmd
}
