// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/cronspec"
	libworkflow "github.com/forgeplan/forgeplan/lib/schema/workflow"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// showParams holds the parameters for the workflow show command.
type showParams struct {
	cli.JSONOutput
	Job    string `flag:"job"    desc:"show one job in detail"`
	Source bool   `flag:"source" desc:"print the source with syntax highlighting"`
}

// workflowSummary is the JSON shape of the show output.
type workflowSummary struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	Fingerprint string       `json:"fingerprint"`
	Triggers    []string     `json:"triggers"`
	Jobs        []jobSummary `json:"jobs"`
	Issues      []string     `json:"issues,omitempty"`
}

type jobSummary struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Needs            []string `json:"needs,omitempty"`
	If               string   `json:"if,omitempty"`
	Uses             string   `json:"uses,omitempty"`
	Steps            int      `json:"steps,omitempty"`
	Secrets          []string `json:"secrets,omitempty"`
	SecretsInherited bool     `json:"secrets_inherited,omitempty"`
}

// showCommand returns the "show" subcommand for summarizing a
// workflow file.
func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Summarize a workflow definition",
		Description: `Summarize a workflow file: its triggers (with the next fire times of
any cron schedules), its jobs with their needs edges and gates, and
the secret names each job maps. Validation issues, if any, are listed
at the end — show never refuses a broken file, it describes it.

--job focuses on a single job and adds its steps, inputs, and runner
selection. --source prints the raw file instead, syntax-highlighted
when stdout is a terminal.`,
		Usage: "forgeplan workflow show [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Summarize a workflow",
				Command:     "forgeplan workflow show ci.yml",
			},
			{
				Description: "Inspect the build job",
				Command:     "forgeplan workflow show ci.yml --job build",
			},
			{
				Description: "Dump the highlighted source",
				Command:     "forgeplan workflow show ci.yml --source",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: forgeplan workflow show [flags] <file>")
			}
			path := args[0]

			def, data, err := readWorkflow(path)
			if err != nil {
				return err
			}

			if params.Source {
				return printSource(path, data)
			}

			if params.Job != "" {
				job := def.Job(params.Job)
				if job == nil {
					return fmt.Errorf("no job %q in %s (jobs: %s)",
						params.Job, path, strings.Join(def.Jobs.Order(), ", "))
				}
				if done, err := params.EmitJSON(summarizeJob(job)); done {
					return err
				}
				printJobDetail(job)
				return nil
			}

			summary := summarize(def, path, data)
			if done, err := params.EmitJSON(summary); done {
				return err
			}
			printSummary(def, summary)
			return nil
		},
	}
}

// printSource dumps the raw file, through chroma when stdout is a
// terminal. Highlighting goes to a buffer first so a lexer failure
// falls back to the plain bytes instead of emitting a partial dump.
func printSource(path string, data []byte) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		_, err := os.Stdout.Write(data)
		return err
	}
	language := "yaml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		language = "json"
	}
	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, string(data), language, "terminal256", "monokai"); err != nil {
		_, err := os.Stdout.Write(data)
		return err
	}
	_, err := os.Stdout.WriteString(highlighted.String())
	return err
}

// summarize builds the JSON-shaped summary that both output modes
// render from.
func summarize(def *libworkflow.Workflow, path string, data []byte) *workflowSummary {
	summary := &workflowSummary{
		Name:        workflowdef.EffectiveName(def, path),
		Path:        path,
		Fingerprint: workflowdef.ComputeFingerprint(data).String(),
		Triggers:    triggerLines(&def.On),
		Issues:      workflowdef.Validate(def),
	}
	for _, id := range def.Jobs.Order() {
		summary.Jobs = append(summary.Jobs, summarizeJob(def.Jobs.Get(id)))
	}
	return summary
}

func summarizeJob(job *libworkflow.Job) jobSummary {
	summary := jobSummary{
		ID:               job.ID,
		Name:             job.Name,
		Needs:            []string(job.Needs),
		If:               job.If,
		Uses:             job.Uses,
		Steps:            len(job.Steps),
		SecretsInherited: job.Secrets.Inherit,
	}
	for _, name := range slices.Sorted(maps.Keys(job.Secrets.Values)) {
		summary.Secrets = append(summary.Secrets, name)
	}
	return summary
}

// triggerLines renders one line per declared trigger kind.
func triggerLines(triggers *libworkflow.Triggers) []string {
	var lines []string

	if f := triggers.Push; f != nil {
		lines = append(lines, "push"+filterSuffix([]filterPart{
			{"branches", f.Branches},
			{"branches-ignore", f.BranchesIgnore},
			{"tags", f.Tags},
			{"tags-ignore", f.TagsIgnore},
		}, "all pushes"))
	}
	if f := triggers.PullRequest; f != nil {
		lines = append(lines, "pull_request"+filterSuffix([]filterPart{
			{"branches", f.Branches},
			{"branches-ignore", f.BranchesIgnore},
			{"types", f.EffectiveTypes()},
		}, "all pull requests"))
	}
	for _, entry := range triggers.Schedule {
		lines = append(lines, "schedule: "+scheduleLine(entry.Cron))
	}
	if d := triggers.WorkflowDispatch; d != nil {
		line := "workflow_dispatch"
		if len(d.Inputs) > 0 {
			var inputs []string
			for _, name := range slices.Sorted(maps.Keys(d.Inputs)) {
				input := d.Inputs[name]
				kind := input.Type
				if kind == "" {
					kind = libworkflow.InputTypeString
				}
				if input.Required {
					kind += ", required"
				}
				inputs = append(inputs, fmt.Sprintf("%s (%s)", name, kind))
			}
			line += ": inputs " + strings.Join(inputs, ", ")
		}
		lines = append(lines, line)
	}
	for _, kind := range triggers.Other {
		lines = append(lines, kind+" (declared, not evaluated)")
	}
	return lines
}

type filterPart struct {
	label  string
	values []string
}

// filterSuffix renders the non-empty filter parts, or the fallback
// when no filter narrows the trigger.
func filterSuffix(parts []filterPart, fallback string) string {
	var rendered []string
	for _, part := range parts {
		if len(part.values) > 0 {
			rendered = append(rendered, fmt.Sprintf("%s: %s", part.label, strings.Join(part.values, ", ")))
		}
	}
	if len(rendered) == 0 {
		return ": " + fallback
	}
	return ": " + strings.Join(rendered, "; ")
}

// scheduleLine renders a cron expression with its next fire time.
func scheduleLine(cron string) string {
	schedule, err := cronspec.Parse(cron)
	if err != nil {
		return fmt.Sprintf("%s (invalid: %v)", cron, err)
	}
	next, err := schedule.Next(time.Now().UTC())
	if err != nil {
		return fmt.Sprintf("%s (never fires: %v)", cron, err)
	}
	return fmt.Sprintf("%s (next %s)", cron, next.Format("2006-01-02 15:04 UTC"))
}

// printSummary renders the whole-workflow view.
func printSummary(def *libworkflow.Workflow, summary *workflowSummary) {
	fmt.Fprintf(os.Stdout, "%s  %s\n", summary.Name, summary.Path)
	fmt.Fprintf(os.Stdout, "fingerprint: %s\n\n", shortFingerprint(summary.Fingerprint))

	fmt.Fprintln(os.Stdout, "triggers:")
	if len(summary.Triggers) == 0 {
		fmt.Fprintln(os.Stdout, "  (none declared)")
	}
	for _, line := range summary.Triggers {
		fmt.Fprintf(os.Stdout, "  %s\n", line)
	}

	fmt.Fprintln(os.Stdout, "\njobs:")
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "  JOB\tNAME\tNEEDS\tKIND\tGATE\n")
	for _, job := range summary.Jobs {
		kind := fmt.Sprintf("%d steps", job.Steps)
		if job.Uses != "" {
			kind = "reusable"
		}
		fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\t%s\n",
			job.ID, dash(job.Name), dash(strings.Join(job.Needs, ", ")), kind, dash(job.If))
	}
	writer.Flush()

	var withSecrets []string
	for _, job := range summary.Jobs {
		switch {
		case job.SecretsInherited:
			withSecrets = append(withSecrets, fmt.Sprintf("  %s: inherit", job.ID))
		case len(job.Secrets) > 0:
			withSecrets = append(withSecrets, fmt.Sprintf("  %s: %s", job.ID, strings.Join(job.Secrets, ", ")))
		}
	}
	if len(withSecrets) > 0 {
		fmt.Fprintln(os.Stdout, "\nsecrets:")
		for _, line := range withSecrets {
			fmt.Fprintln(os.Stdout, line)
		}
	}

	if len(summary.Issues) > 0 {
		fmt.Fprintln(os.Stdout)
		printIssues(summary.Path, summary.Issues)
	}
}

// printJobDetail renders the single-job view.
func printJobDetail(job *libworkflow.Job) {
	fmt.Fprintf(os.Stdout, "job: %s", job.ID)
	if job.Name != "" {
		fmt.Fprintf(os.Stdout, "  (%s)", job.Name)
	}
	fmt.Fprintln(os.Stdout)

	if len(job.Needs) > 0 {
		fmt.Fprintf(os.Stdout, "needs: %s\n", strings.Join(job.Needs, ", "))
	}
	if job.If != "" {
		fmt.Fprintf(os.Stdout, "if: %s\n", job.If)
	}
	if len(job.RunsOn) > 0 {
		fmt.Fprintf(os.Stdout, "runs-on: %s\n", strings.Join(job.RunsOn, ", "))
	}
	if job.TimeoutMinutes > 0 {
		fmt.Fprintf(os.Stdout, "timeout: %dm\n", job.TimeoutMinutes)
	}

	if job.IsReusable() {
		fmt.Fprintf(os.Stdout, "uses: %s\n", job.Uses)
		for _, name := range slices.Sorted(maps.Keys(job.With)) {
			fmt.Fprintf(os.Stdout, "  with %s: %s\n", name, job.With[name])
		}
	} else {
		fmt.Fprintln(os.Stdout, "steps:")
		for i, step := range job.Steps {
			fmt.Fprintf(os.Stdout, "  %2d. %s\n", i+1, step.DisplayName())
		}
	}

	switch {
	case job.Secrets.Inherit:
		fmt.Fprintln(os.Stdout, "secrets: inherit")
	case len(job.Secrets.Values) > 0:
		fmt.Fprintln(os.Stdout, "secrets:")
		for _, name := range slices.Sorted(maps.Keys(job.Secrets.Values)) {
			fmt.Fprintf(os.Stdout, "  %s: %s\n", name, job.Secrets.Values[name])
		}
	}
}

// dash substitutes "-" for empty table cells.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
