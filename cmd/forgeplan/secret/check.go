// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/plan"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// checkParams holds the parameters for the secret check command.
type checkParams struct {
	cli.JSONOutput
	Dir      string `flag:"dir"      desc:"also resolve against a directory of secret files"`
	Bundle   string `flag:"bundle"   desc:"also resolve against a sealed bundle"`
	Identity string `flag:"identity" desc:"age identity file for --bundle ('-' reads stdin)"`
}

// fileReport is one workflow file's secret resolution, the JSON shape
// of the check output.
type fileReport struct {
	Path string      `json:"path"`
	Jobs []jobReport `json:"jobs"`
}

type jobReport struct {
	ID        string                `json:"id"`
	Inherited bool                  `json:"inherited,omitempty"`
	Secrets   []plan.ResolvedSecret `json:"secrets"`
}

// checkCommand returns the "check" subcommand for resolving a
// workflow's secret mappings.
func checkCommand() *cli.Command {
	var params checkParams

	return &cli.Command{
		Name:    "check",
		Summary: "Resolve workflow secret mappings against local stores",
		Description: `Resolve every secret a workflow's jobs map against the configured
stores and report which names exist. The resolution logic is the
planner's own, so a name this command reports as present is exactly
the name a plan would fingerprint.

The FORGEPLAN_SECRET_* environment variables are always consulted;
--dir adds a directory of secret files and --bundle adds a sealed
bundle (decrypted with --identity). Values are never printed — a
resolved name shows the fingerprint of its value, nothing more.

Exits 1 when any mapped name is missing from every store.`,
		Usage: "forgeplan secret check [flags] <file...>",
		Examples: []cli.Example{
			{
				Description: "Check against environment variables only",
				Command:     "forgeplan secret check ci.yml",
			},
			{
				Description: "Check against a secrets directory",
				Command:     "forgeplan secret check ci.yml --dir /etc/forgeplan/secrets",
			},
			{
				Description: "Check against a sealed bundle",
				Command:     "forgeplan secret check ci.yml --bundle ci-secrets.bundle --identity ~/.config/forgeplan/identity",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("check", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: forgeplan secret check [flags] <file...>")
			}

			store, closeStore, err := buildStore(params.Dir, params.Bundle, params.Identity)
			if err != nil {
				return err
			}
			defer closeStore()

			var reports []fileReport
			missing := 0
			for _, path := range args {
				def, err := workflowdef.ReadFile(path)
				if err != nil {
					return err
				}

				report := fileReport{Path: path}
				for _, id := range def.Jobs.Order() {
					job := def.Jobs.Get(id)
					if job.Secrets.IsZero() {
						continue
					}
					inherited, resolved := plan.ResolveJobSecrets(job, store)
					for _, secret := range resolved {
						if !secret.Resolved {
							missing++
						}
					}
					report.Jobs = append(report.Jobs, jobReport{
						ID:        id,
						Inherited: inherited,
						Secrets:   resolved,
					})
				}
				reports = append(reports, report)
			}

			if done, err := params.EmitJSON(reports); done {
				if err != nil {
					return err
				}
				if missing > 0 {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}

			for _, report := range reports {
				printReport(report)
			}
			if missing > 0 {
				fmt.Fprintf(os.Stderr, "%d secret(s) missing\n", missing)
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// printReport renders one file's resolution table.
func printReport(report fileReport) {
	if len(report.Jobs) == 0 {
		fmt.Fprintf(os.Stdout, "%s: no secret mappings\n", report.Path)
		return
	}

	fmt.Fprintf(os.Stdout, "%s:\n", report.Path)
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "  JOB\tSECRET\tSOURCE\tSTATUS\n")
	for _, job := range report.Jobs {
		if job.Inherited && len(job.Secrets) == 0 {
			fmt.Fprintf(writer, "  %s\t(inherit)\t\tstore is empty\n", job.ID)
			continue
		}
		for _, secret := range job.Secrets {
			status := "MISSING"
			if secret.Resolved {
				status = "ok " + secret.Fingerprint
			}
			fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n", job.ID, secret.Name, secret.Source, status)
		}
	}
	writer.Flush()
}
