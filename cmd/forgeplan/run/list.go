// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/runlog"
)

// listParams holds the parameters for the run list command.
type listParams struct {
	cli.JSONOutput
	StoreParams
	Workflow   string        `flag:"workflow"   desc:"filter by workflow name"`
	Job        string        `flag:"job"        desc:"filter by job name"`
	Conclusion string        `flag:"conclusion" desc:"filter by conclusion (success, failure, ...)"`
	Since      time.Duration `flag:"since"      desc:"only records completed within this window (e.g. 72h)"`
	Limit      int           `flag:"limit"      desc:"maximum records to return" default:"50"`
}

// listCommand returns the "list" subcommand for querying run records.
func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List recorded runs, newest first",
		Description: `List run records from the configured store, newest first. Whole-run
records have an empty job column; job records name the job.

Filters combine: --workflow, --job, and --conclusion match exactly,
--since bounds the completion time, --limit caps the output.`,
		Usage: "forgeplan run list [flags]",
		Examples: []cli.Example{
			{
				Description: "The most recent records",
				Command:     "forgeplan run list",
			},
			{
				Description: "Failures of the build job in the last week",
				Command:     "forgeplan run list --job build --conclusion failure --since 168h",
			},
			{
				Description: "Machine-readable records",
				Command:     "forgeplan run list --json --limit 500",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
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

			filter := runlog.Filter{
				Workflow:   params.Workflow,
				Job:        params.Job,
				Conclusion: params.Conclusion,
				Limit:      params.Limit,
			}
			if params.Since > 0 {
				filter.Since = time.Now().Add(-params.Since)
			}

			records, err := store.List(ctx, filter)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(records); done {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(os.Stderr, "no matching records")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "COMPLETED\tWORKFLOW\tJOB\tCONCLUSION\tSECONDS\tBRANCH\n")
			for _, record := range records {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%.1f\t%s\n",
					record.CompletedAt.UTC().Format("2006-01-02 15:04"),
					record.Workflow,
					record.Job,
					record.Conclusion,
					record.Seconds,
					record.HeadBranch)
			}
			return writer.Flush()
		},
	}
}
