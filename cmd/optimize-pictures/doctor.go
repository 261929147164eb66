package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lilnasy/astro-optimize-pictures/internal/preflight"
)

const statusLabelWidth = 24

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg, its encoders, and the project are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := ctx.workDir()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}

			out := cmd.OutOrStdout()
			st := newStyler(out)
			results := preflight.RunAll(cmd.Context(), cfg, dir)
			failed := 0
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r, st))
				if !r.Passed {
					failed++
				}
			}
			if failed > 0 {
				return &reportedError{err: fmt.Errorf("%d of %d checks failed", failed, len(results))}
			}
			fmt.Fprintln(out, st.green("All checks passed."))
			return nil
		},
	}
}

func renderStatusLine(r preflight.Result, st styler) string {
	status := st.green("[OK]")
	if !r.Passed {
		status = st.red("[ERROR]")
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, r.Name+":", status)
	if r.Detail != "" {
		line += " " + r.Detail
	}
	return line
}
