// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
)

// statsParams holds the parameters for the run stats command.
type statsParams struct {
	cli.JSONOutput
	StoreParams
}

// statsCommand returns the "stats" subcommand for per-job duration
// aggregates.
func statsCommand() *cli.Command {
	var params statsParams

	return &cli.Command{
		Name:    "stats",
		Summary: "Per-job duration and failure aggregates",
		Description: `Aggregate the configured store per workflow/job key: how many runs,
how many failures, and the minimum, mean, and maximum duration.

Keys are the workflow name for whole-run records and "workflow/job"
for job records.`,
		Usage: "forgeplan run stats [flags]",
		Examples: []cli.Example{
			{
				Description: "Aggregates for every recorded key",
				Command:     "forgeplan run stats",
			},
			{
				Description: "Feed the aggregates into a dashboard",
				Command:     "forgeplan run stats --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stats", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.JobStats(ctx)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(stats); done {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(os.Stderr, "no records in the store")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "KEY\tCOUNT\tFAILURES\tMIN\tMEAN\tMAX\n")
			for _, stat := range stats {
				fmt.Fprintf(writer, "%s\t%d\t%d\t%.1fs\t%.1fs\t%.1fs\n",
					stat.Key, stat.Count, stat.Failures,
					stat.MinSeconds, stat.MeanSeconds, stat.MaxSeconds)
			}
			return writer.Flush()
		},
	}
}
