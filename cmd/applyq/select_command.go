package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select JOB_ID [JOB_ID...]",
		Short: "Select discovered jobs for generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			for _, id := range args {
				if id == "" {
					return errors.New("job id must not be empty")
				}
			}

			var resp struct {
				Selected int `json:"selected"`
			}
			if err := client.post("/api/jobs/select", map[string]any{"job_ids": args}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %d job(s)\n", resp.Selected)
			return nil
		},
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate resumes for all selected jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var resp struct {
				BatchSize int `json:"batch_size"`
			}
			if err := client.post("/api/generate", nil, &resp); err != nil {
				return err
			}
			if resp.BatchSize == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs selected; nothing to generate")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generation started for %d job(s)\n", resp.BatchSize)
			return nil
		},
	}
}
