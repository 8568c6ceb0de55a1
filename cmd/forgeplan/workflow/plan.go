// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/plan"
	"github.com/forgeplan/forgeplan/lib/secretstore"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// planParams holds the parameters for the workflow plan command.
type planParams struct {
	cli.JSONOutput
	EventParams
	SecretsDir string `flag:"secrets-dir" desc:"resolve secret names against a directory of secret files"`
	SecretsEnv bool   `flag:"secrets-env" desc:"resolve secret names against FORGEPLAN_SECRET_* environment variables"`
}

// planCommand returns the "plan" subcommand for predicting what an
// event would run.
func planCommand() *cli.Command {
	var params planParams

	return &cli.Command{
		Name:    "plan",
		Summary: "Predict what a forge event would run",
		Description: `Evaluate a workflow against a hypothetical forge event and print the
execution plan: whether the event selects the workflow at all, the
jobs grouped into dependency stages, and for each job whether it
would run or be skipped, with the reason.

The plan is a static prediction. Gates are evaluated assuming every
needed job succeeds — the only assumption available before anything
runs. A job that fails at runtime can still skip its dependents in
ways no plan can foresee.

Secret mappings are listed per job. With --secrets-dir or
--secrets-env the names are resolved against a local store and the
plan shows a value fingerprint for each one; values themselves never
appear anywhere.`,
		Usage: "forgeplan workflow plan [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Plan a push to master",
				Command:     "forgeplan workflow plan ci.yml --event push --ref refs/heads/master",
			},
			{
				Description: "Plan a pull request against develop",
				Command:     "forgeplan workflow plan ci.yml --event pull_request --ref develop",
			},
			{
				Description: "Plan a tag push with secrets resolved from the environment",
				Command:     "forgeplan workflow plan ci.yml --ref refs/tags/v4.3.3 --secrets-env",
			},
			{
				Description: "Machine-readable plan",
				Command:     "forgeplan workflow plan ci.yml --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("plan", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: forgeplan workflow plan [flags] <file>")
			}
			path := args[0]

			def, data, err := readWorkflow(path)
			if err != nil {
				return err
			}
			event, err := params.build()
			if err != nil {
				return err
			}
			resolver, err := buildResolver(params.SecretsDir, params.SecretsEnv)
			if err != nil {
				return err
			}

			p, err := plan.Build(def, event, plan.Options{
				Name:        workflowdef.EffectiveName(def, path),
				Fingerprint: workflowdef.ComputeFingerprint(data).String(),
				Secrets:     resolver,
			})
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(p); done {
				return err
			}
			renderPlan(os.Stdout, p, resolver != nil)
			return nil
		},
	}
}

// buildResolver assembles the secret resolver the flags ask for.
// Returns nil when neither source is requested, which leaves plan
// mappings enumerated but unresolved.
func buildResolver(dir string, env bool) (plan.SecretResolver, error) {
	var stores []secretstore.Store
	if env {
		stores = append(stores, secretstore.FromEnvironment())
	}
	if dir != "" {
		store, err := secretstore.NewDirStore(dir)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	switch len(stores) {
	case 0:
		return nil, nil
	case 1:
		return stores[0], nil
	default:
		return secretstore.Merge(stores...), nil
	}
}

// renderPlan prints the human-readable plan. resolved says whether a
// secret store was consulted; without one the secret lines list names
// only instead of claiming everything is missing.
func renderPlan(out io.Writer, p *plan.Plan, resolved bool) {
	fmt.Fprintf(out, "workflow: %s", p.Workflow)
	if p.Fingerprint != "" {
		fmt.Fprintf(out, "  (fingerprint %s)", shortFingerprint(p.Fingerprint))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "event: %s", p.EventKind)
	if p.Ref != "" {
		fmt.Fprintf(out, " %s", p.Ref)
	}
	if p.Repo != "" {
		fmt.Fprintf(out, " (%s)", p.Repo)
	}
	fmt.Fprintln(out)

	if !p.Selected {
		fmt.Fprintf(out, "not selected: %s\n", p.Reason)
		return
	}
	fmt.Fprintf(out, "selected: %s\n\n", p.Reason)

	writer := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "STAGE\tJOB\tDISPOSITION\tREASON\n")
	for _, job := range p.Jobs {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", job.Stage, job.ID, job.Disposition, job.Reason)
	}
	writer.Flush()

	var lines []string
	for _, job := range p.Jobs {
		if !job.SecretsInherited && len(job.Secrets) == 0 {
			continue
		}
		lines = append(lines, secretLine(job, resolved))
	}
	if len(lines) > 0 {
		fmt.Fprintf(out, "\nsecrets:\n")
		for _, line := range lines {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

// secretLine formats one job's secret mappings. Values never appear;
// resolved entries show the value fingerprint, missing ones say so.
func secretLine(job *plan.PlannedJob, resolved bool) string {
	var entries []string
	for _, secret := range job.Secrets {
		name := secret.Name
		if secret.Source != "" && secret.Source != secret.Name {
			name = fmt.Sprintf("%s from %s", secret.Name, secret.Source)
		}
		switch {
		case secret.Resolved:
			entries = append(entries, fmt.Sprintf("%s (%s)", name, secret.Fingerprint))
		case resolved:
			entries = append(entries, fmt.Sprintf("%s (missing)", name))
		default:
			entries = append(entries, name)
		}
	}
	if job.SecretsInherited {
		label := fmt.Sprintf("%s: inherits the caller's secrets", job.ID)
		if len(entries) > 0 {
			label += ": " + strings.Join(entries, ", ")
		}
		return label
	}
	return fmt.Sprintf("%s: %s", job.ID, strings.Join(entries, ", "))
}

// shortFingerprint trims a full hex fingerprint for display.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
