// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete Forgeplan CLI command tree.
// The forgeplan binary is the only consumer; the tree lives in its
// own package so command_test can walk it without importing main.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	runcmd "github.com/forgeplan/forgeplan/cmd/forgeplan/run"
	secretcmd "github.com/forgeplan/forgeplan/cmd/forgeplan/secret"
	workflowcmd "github.com/forgeplan/forgeplan/cmd/forgeplan/workflow"
	"github.com/forgeplan/forgeplan/lib/version"
)

// Root builds and returns the complete Forgeplan CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "forgeplan",
		Description: `Forgeplan: workflow analysis for forge-hosted repositories.

Lint workflow definitions, predict what a forge event would run, check
secret wiring, and watch run health. Forgeplan never executes jobs;
every answer comes from the definition files and the run records the
forge reports.`,
		Subcommands: []*cli.Command{
			workflowcmd.Command(),
			secretcmd.Command(),
			runcmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("forgeplan %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Lint a workflow file",
				Command:     "forgeplan workflow validate .github/workflows/ci.yml",
			},
			{
				Description: "What would a push to master run?",
				Command:     "forgeplan workflow plan ci.yml --event push --ref refs/heads/master",
			},
			{
				Description: "Check that every secret a workflow maps actually exists",
				Command:     "forgeplan secret check ci.yml --dir /etc/forgeplan/secrets",
			},
			{
				Description: "Recent run records from the configured store",
				Command:     "forgeplan run list --limit 20",
			},
		},
	}
}
