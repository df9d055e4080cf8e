package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"applyq/internal/manager"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream progress events from the daemon",
		Long:  "watch long-polls the daemon and prints search and generation progress events until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			for {
				if err := cmd.Context().Err(); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}

				var resp struct {
					Events []manager.Event `json:"events"`
				}
				if err := client.get("/api/progress?timeout=25s", &resp); err != nil {
					return err
				}
				for _, event := range resp.Events {
					fmt.Fprintf(out, "%s  %s", event.Timestamp.Format("15:04:05"), event.Type)
					if event.JobID != "" {
						fmt.Fprintf(out, "  %s", event.JobID)
					} else if event.RunID != "" {
						fmt.Fprintf(out, "  %s", event.RunID)
					}
					if event.Message != "" {
						fmt.Fprintf(out, "  %s", event.Message)
					}
					fmt.Fprintln(out)
				}
			}
		},
	}
}
