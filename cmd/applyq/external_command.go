package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newExternalCommand(ctx *commandContext) *cobra.Command {
	var (
		title        string
		company      string
		jobURL       string
		outputFolder string
		resumeScore  float64
		source       string
	)

	cmd := &cobra.Command{
		Use:   "external",
		Short: "Register a resume package generated outside the engine",
		Long:  "external records a job whose application artifacts were produced by another tool, entering it directly in the ready state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" || company == "" {
				return errors.New("--title and --company are required")
			}
			if outputFolder == "" {
				return errors.New("--output is required")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}

			var resp struct {
				JobID string `json:"job_id"`
			}
			payload := map[string]any{
				"title":         title,
				"company":       company,
				"job_url":       jobURL,
				"output_folder": outputFolder,
				"resume_score":  resumeScore,
				"source":        source,
			}
			if err := client.post("/api/jobs/external", payload, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered external job %s\n", resp.JobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Job title")
	cmd.Flags().StringVar(&company, "company", "", "Company name")
	cmd.Flags().StringVar(&jobURL, "url", "", "Posting URL")
	cmd.Flags().StringVar(&outputFolder, "output", "", "Folder containing the generated artifacts")
	cmd.Flags().Float64Var(&resumeScore, "score", 0, "Resume score reported by the external tool")
	cmd.Flags().StringVar(&source, "source", "", "Name of the tool that produced the artifacts")
	return cmd
}
