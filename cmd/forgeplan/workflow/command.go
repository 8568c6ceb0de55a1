// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	libworkflow "github.com/forgeplan/forgeplan/lib/schema/workflow"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// Command returns the "workflow" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "workflow",
		Summary: "Inspect and validate workflow definitions",
		Description: `Work with workflow definition files: the YAML documents under
.github/workflows/ that declare triggers and a job graph.

Everything here is static analysis. "validate" lints a file, "show"
summarizes it, "plan" predicts what a given forge event would run,
"graph" renders the job graph, and "lint-remote" fetches and lints
every workflow of a repository through the forge API.

Workflow files are YAML; .json and .jsonc files are accepted too and
parsed as JSONC (JSON plus comments and trailing commas).`,
		Subcommands: []*cli.Command{
			validateCommand(),
			showCommand(),
			planCommand(),
			graphCommand(),
			lintRemoteCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Lint a workflow file",
				Command:     "forgeplan workflow validate .github/workflows/ci.yml",
			},
			{
				Description: "Summarize triggers and jobs",
				Command:     "forgeplan workflow show ci.yml",
			},
			{
				Description: "Plan a tag push",
				Command:     "forgeplan workflow plan ci.yml --event push --ref refs/tags/v4.3.3",
			},
			{
				Description: "Render the job graph for Graphviz",
				Command:     "forgeplan workflow graph ci.yml | dot -Tsvg > ci.svg",
			},
			{
				Description: "Lint every workflow of a repository",
				Command:     "forgeplan workflow lint-remote nicolargo/glances",
			},
		},
	}
}

// readWorkflow loads a definition together with its raw bytes. The
// bytes feed the fingerprint, which covers the file exactly as
// authored, so the read happens once here instead of through
// workflowdef.ReadFile.
func readWorkflow(path string) (*libworkflow.Workflow, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var def *libworkflow.Workflow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		def, err = workflowdef.ParseJSONC(data)
	default:
		def, err = workflowdef.Parse(data)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, data, nil
}

// printIssues writes one file's lint findings to stderr in the shared
// "  - issue" form used by validate and lint-remote.
func printIssues(path string, issues []string) {
	fmt.Fprintf(os.Stderr, "%s: %d issue(s)\n", path, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "  - %s\n", issue)
	}
}
