package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"applyq/internal/daemon"
	"applyq/internal/dashboard"
	"applyq/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var status daemon.Status
			if err := client.get("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running: %t\n", status.Running)
			if status.ActiveTask != "" {
				fmt.Fprintf(out, "Active task: %s\n", status.ActiveTask)
			}
			fmt.Fprintf(out, "Queue file: %s\n", status.QueuePath)
			if status.APIAddress != "" {
				fmt.Fprintf(out, "API address: %s\n", status.APIAddress)
			}

			var snapshot dashboard.Snapshot
			if err := client.get("/api/dashboard", &snapshot); err != nil {
				return err
			}
			if snapshot.Total == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}

			rows := buildStatusRows(snapshot.Counts)
			rows = append(rows, []string{"total", fmt.Sprintf("%d", snapshot.Total)})
			fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

			if run := snapshot.LatestRun; run != nil {
				fmt.Fprintf(out, "Latest run: %s (%s, %s)", run.RunID, run.Type, run.Status)
				if run.Status == queue.RunCompleted {
					fmt.Fprintf(out, " - %d found, %d new", run.JobsFound, run.JobsNew)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// buildStatusRows lists only statuses with at least one job, in a stable order.
func buildStatusRows(counts map[queue.Status]int) [][]string {
	statuses := make([]queue.Status, 0, len(counts))
	for status, count := range counts {
		if count > 0 {
			statuses = append(statuses, status)
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{string(status), fmt.Sprintf("%d", counts[status])})
	}
	return rows
}
