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
	"github.com/forgeplan/forgeplan/lib/plan"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// graphParams holds the parameters for the workflow graph command.
type graphParams struct {
	EventParams
}

// graphCommand returns the "graph" subcommand for rendering the job
// graph as Graphviz dot.
func graphCommand() *cli.Command {
	var params graphParams

	return &cli.Command{
		Name:    "graph",
		Summary: "Render the job graph as Graphviz dot",
		Description: `Render a workflow's job graph in Graphviz dot syntax: one node per
job, one edge per needs dependency, left to right in execution order.

The graph is drawn for a concrete event (the same --event/--ref flags
as "plan"), so jobs the event would skip render dashed and gray. An
event that does not select the workflow at all is an error — there is
no plan to draw.`,
		Usage: "forgeplan workflow graph [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Render and rasterize the graph",
				Command:     "forgeplan workflow graph ci.yml | dot -Tsvg > ci.svg",
			},
			{
				Description: "See which jobs a pull request would skip",
				Command:     "forgeplan workflow graph ci.yml --event pull_request --ref develop",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("graph", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: forgeplan workflow graph [flags] <file>")
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

			p, err := plan.Build(def, event, plan.Options{
				Name:        workflowdef.EffectiveName(def, path),
				Fingerprint: workflowdef.ComputeFingerprint(data).String(),
			})
			if err != nil {
				return err
			}
			if !p.Selected {
				return fmt.Errorf("%s %s does not select %s: %s (adjust --event/--ref)",
					event.Kind, params.Ref, path, p.Reason)
			}

			fmt.Fprint(os.Stdout, p.DOT())
			return nil
		},
	}
}
