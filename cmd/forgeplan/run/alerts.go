// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/runlog"
)

// Row colors per alert state on a terminal.
var stateStyles = map[runlog.State]lipgloss.Style{
	runlog.StateWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),            // amber
	runlog.StateCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // bright red
}

// alertsParams holds the parameters for the run alerts command.
type alertsParams struct {
	cli.JSONOutput
	StoreParams
	All bool `flag:"all" desc:"include alerts that have already ended"`
}

// alertsCommand returns the "alerts" subcommand for replaying the
// store through the alert monitor.
func alertsCommand() *cli.Command {
	var params alertsParams

	return &cli.Command{
		Name:    "alerts",
		Summary: "Health alerts derived from the run history",
		Description: `Replay the configured store through the alert monitor and print the
resulting alerts: failure streaks (consecutive failures of one key)
and duration regressions (runs far above a key's rolling mean).

Thresholds come from the config file's alerts section, so this
command shows exactly the alerts the webhook service would be
holding. By default only ongoing alerts print; --all includes ones
that have ended.`,
		Usage: "forgeplan run alerts [flags]",
		Examples: []cli.Example{
			{
				Description: "Ongoing alerts",
				Command:     "forgeplan run alerts",
			},
			{
				Description: "Full alert history as JSON",
				Command:     "forgeplan run alerts --all --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("alerts", &params)
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

			log := runlog.NewLog(store, thresholds(cfg), logger)
			if err := log.Replay(ctx); err != nil {
				return err
			}

			alerts := log.Alerts()
			if !params.All {
				ongoing := alerts[:0]
				for _, alert := range alerts {
					if alert.Ongoing() {
						ongoing = append(ongoing, alert)
					}
				}
				alerts = ongoing
			}

			if done, err := params.EmitJSON(alerts); done {
				return err
			}
			if len(alerts) == 0 {
				fmt.Fprintln(os.Stdout, "no alerts")
				return nil
			}

			// Lay the table out on plain bytes, then color whole rows.
			// Styling individual cells would skew the tab stops.
			var table bytes.Buffer
			writer := tabwriter.NewWriter(&table, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "STATE\tKIND\tKEY\tSINCE\tMESSAGE\n")
			for _, alert := range alerts {
				since := alert.Begin.UTC().Format("2006-01-02 15:04")
				if !alert.Ongoing() {
					since += " (ended)"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
					alert.State, alert.Kind, alert.Key, since, alert.Message)
			}
			if err := writer.Flush(); err != nil {
				return err
			}

			colored := term.IsTerminal(int(os.Stdout.Fd()))
			lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
			for i, line := range lines {
				if colored && i > 0 && i-1 < len(alerts) {
					if style, ok := stateStyles[alerts[i-1].State]; ok {
						line = style.Render(line)
					}
				}
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}
}
