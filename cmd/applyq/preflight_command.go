package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"applyq/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, disk space, and service connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			failed := 0
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				mark := "ok"
				if !result.Passed {
					mark = "FAIL"
					failed++
				}
				if colorize {
					if result.Passed {
						mark = ansiGreen + mark + ansiReset
					} else {
						mark = ansiRed + mark + ansiReset
					}
				}
				fmt.Fprintf(out, "[%s] %s", mark, result.Name)
				if result.Detail != "" {
					fmt.Fprintf(out, ": %s", result.Detail)
				}
				fmt.Fprintln(out)
			}
			if failed > 0 {
				return fmt.Errorf("%d preflight check(s) failed", failed)
			}
			return nil
		},
	}
}
