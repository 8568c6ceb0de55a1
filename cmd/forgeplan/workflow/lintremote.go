// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/forgehub"
	"github.com/forgeplan/forgeplan/lib/schema/forge"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// lintRemoteParams holds the parameters for the workflow lint-remote
// command.
type lintRemoteParams struct {
	Ref     string `flag:"ref"      desc:"git ref to fetch workflows from (default: the default branch)"`
	BaseURL string `flag:"base-url" desc:"GitHub Enterprise base URL (default: github.com)"`
}

// lintRemoteCommand returns the "lint-remote" subcommand for
// validating a repository's workflows through the forge API.
func lintRemoteCommand() *cli.Command {
	var params lintRemoteParams

	return &cli.Command{
		Name:    "lint-remote",
		Summary: "Fetch and validate a repository's workflows",
		Description: `Fetch every workflow file under .github/workflows/ of a repository
through the forge API and validate each one, exactly as "validate"
does for local files.

Authentication comes from the FORGEPLAN_GITHUB_TOKEN environment
variable. Anonymous access works for public repositories, with the
forge's much lower unauthenticated rate limit.

Exits 1 when any workflow has issues, after listing all of them.`,
		Usage: "forgeplan workflow lint-remote [flags] <owner/repo>",
		Examples: []cli.Example{
			{
				Description: "Lint the workflows of a public repository",
				Command:     "forgeplan workflow lint-remote nicolargo/glances",
			},
			{
				Description: "Lint a release branch on an enterprise instance",
				Command:     "forgeplan workflow lint-remote acme/api --ref release/2026.3 --base-url https://github.acme.example",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("lint-remote", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: forgeplan workflow lint-remote [flags] <owner/repo>")
			}
			owner, repo, err := forge.SplitRepo(args[0])
			if err != nil {
				return err
			}

			credentials, err := forgehub.CredentialsFromEnv()
			if err != nil {
				return err
			}
			client, err := forgehub.NewClient(forgehub.ClientConfig{
				Token:   credentials.Token,
				BaseURL: params.BaseURL,
			})
			if err != nil {
				return err
			}

			files, err := client.ListWorkflowFiles(ctx, owner, repo, params.Ref)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(os.Stderr, "%s/%s has no workflow files under %s\n",
					owner, repo, forgehub.WorkflowDir)
				return nil
			}
			logger.Debug("fetched workflows", "repo", args[0], "count", len(files))

			failed := 0
			for _, file := range files {
				def, err := workflowdef.Parse([]byte(file.Content))
				if err != nil {
					failed++
					printIssues(file.Path, []string{err.Error()})
					continue
				}
				issues := workflowdef.Validate(def)
				if len(issues) == 0 {
					fmt.Fprintf(os.Stdout, "%s: valid\n", file.Path)
					continue
				}
				failed++
				printIssues(file.Path, issues)
			}

			if failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
