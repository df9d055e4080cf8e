package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"applyq/internal/queue"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and act on a single job",
	}

	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobGenerateCommand(ctx))
	jobCmd.AddCommand(newJobSkipCommand(ctx))
	jobCmd.AddCommand(newJobActionCommand(ctx, "retry", "Send a failed job back for another attempt", "Job %s queued for retry\n"))
	jobCmd.AddCommand(newJobActionCommand(ctx, "cancel", "Pull a queued job back to discovered", "Job %s cancelled\n"))
	jobCmd.AddCommand(newJobActionCommand(ctx, "applied", "Mark a ready job as applied", "Job %s marked applied\n"))
	jobCmd.AddCommand(newJobArtifactCommand(ctx, "cover-letter", "Generate a cover letter for a finished job"))
	jobCmd.AddCommand(newJobArtifactCommand(ctx, "outreach", "Generate a LinkedIn outreach message for a finished job"))

	return jobCmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show full details for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var job queue.JobRecord
			if err := client.get("/api/jobs/"+args[0], &job); err != nil {
				return err
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

func printJob(out io.Writer, job queue.JobRecord) {
	fmt.Fprintf(out, "Job:      %s\n", job.JobID)
	fmt.Fprintf(out, "Title:    %s\n", job.Title)
	fmt.Fprintf(out, "Company:  %s\n", job.Company)
	if job.Location != "" {
		fmt.Fprintf(out, "Location: %s\n", job.Location)
	}
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Score:    %s", formatScore(job.FitScore))
	if job.Tier != "" {
		fmt.Fprintf(out, " (%s tier)", job.Tier)
	}
	fmt.Fprintln(out)
	if job.Recommendation != "" {
		fmt.Fprintf(out, "Verdict:  %s\n", job.Recommendation)
	}
	if job.JobURL != "" {
		fmt.Fprintf(out, "URL:      %s\n", job.JobURL)
	}
	if job.RunID != "" {
		fmt.Fprintf(out, "Run:      %s\n", job.RunID)
	}
	if job.SkipReason != "" {
		fmt.Fprintf(out, "Skipped:  %s\n", job.SkipReason)
	}
	if job.OutputFolder != "" {
		fmt.Fprintf(out, "Output:   %s\n", job.OutputFolder)
	}
	if job.ResumeScore > 0 {
		fmt.Fprintf(out, "Resume:   %.0f", job.ResumeScore)
		var extras []string
		if job.HasCoverLetter {
			extras = append(extras, "cover letter")
		}
		if job.HasLinkedInMessage {
			extras = append(extras, "outreach message")
		}
		for i, extra := range extras {
			if i == 0 {
				fmt.Fprint(out, " + ")
			} else {
				fmt.Fprint(out, ", ")
			}
			fmt.Fprint(out, extra)
		}
		fmt.Fprintln(out)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.Error)
	}
	fmt.Fprintf(out, "Updated:  %s\n", job.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func newJobGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate JOB_ID",
		Short: "Generate a resume for one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.post("/api/jobs/"+args[0]+"/generate", nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generation started for job %s\n", args[0])
			return nil
		},
	}
}

func newJobSkipCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "skip JOB_ID",
		Short: "Skip a job so it never resurfaces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			payload := map[string]string{}
			if reason != "" {
				payload["reason"] = reason
			}
			if err := client.post("/api/jobs/"+args[0]+"/skip", payload, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s skipped\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason recorded on the job")
	return cmd
}

func newJobActionCommand(ctx *commandContext, action, short, confirmation string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " JOB_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.post("/api/jobs/"+args[0]+"/"+action, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), confirmation, args[0])
			return nil
		},
	}
}

func newJobArtifactCommand(ctx *commandContext, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " JOB_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			var resp struct {
				Path string `json:"path"`
			}
			if err := client.post("/api/jobs/"+args[0]+"/"+action, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", resp.Path)
			return nil
		},
	}
}
