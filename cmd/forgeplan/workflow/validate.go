// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// validateCommand returns the "validate" subcommand for linting
// workflow files.
func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "Validate workflow definition files",
		Description: `Validate one or more workflow definition files. Checks that the YAML
is well-formed and the structure holds together: at least one trigger,
at least one job, needs edges point at jobs that exist, the needs
graph is acyclic, every job has exactly one of "uses" or "steps",
secret mappings have the ${{ secrets.NAME }} form, cron lines parse,
and gate expressions compile.

Purely local; nothing is fetched. Use "lint-remote" to validate the
workflows a repository actually has on the forge.

Exits 1 when any file has issues, after listing all of them.`,
		Usage: "forgeplan workflow validate <file...>",
		Examples: []cli.Example{
			{
				Description: "Validate a single workflow",
				Command:     "forgeplan workflow validate .github/workflows/ci.yml",
			},
			{
				Description: "Validate every workflow in a checkout",
				Command:     "forgeplan workflow validate .github/workflows/*.yml",
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: forgeplan workflow validate <file...>")
			}

			failed := 0
			for _, path := range args {
				def, err := workflowdef.ReadFile(path)
				if err != nil {
					return err
				}
				issues := workflowdef.Validate(def)
				if len(issues) == 0 {
					fmt.Fprintf(os.Stdout, "%s: valid\n", path)
					continue
				}
				failed++
				printIssues(path, issues)
			}

			if failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
