package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lilnasy/astro-optimize-pictures/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent optimization runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return errors.New("run history is disabled (set ledger.enabled = true)")
			}
			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}

			switch strings.ToLower(strings.TrimSpace(output)) {
			case "json":
				return writeJSON(cmd, runs)
			case "yaml":
				return writeYAML(cmd, runs)
			case "", "table":
				renderHistory(cmd, runs)
				return nil
			default:
				return fmt.Errorf("unknown output %q (want table, json, or yaml)", output)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, or yaml")
	return cmd
}

func renderHistory(cmd *cobra.Command, runs []ledger.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		mode := "run"
		if run.DryRun {
			mode = "dry run"
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			mode,
			run.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(run.Images),
			strconv.Itoa(run.Transcoded),
			strconv.Itoa(run.Cached),
			strconv.Itoa(run.FailedImages),
			run.ProjectRoot,
		})
	}
	fmt.Fprintln(out, renderTable("",
		[]string{"Started", "Mode", "Duration", "Images", "New", "Cached", "Failed", "Project"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))

	for _, run := range runs {
		for _, f := range run.Failures {
			fmt.Fprintf(out, "%s  %s [%s] %s\n", run.ID[:min(8, len(run.ID))], f.Image, f.Kind, f.Message)
			if f.LogPath != "" {
				fmt.Fprintf(out, "          log: %s\n", f.LogPath)
			}
		}
	}
}
