// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/config"
	"github.com/forgeplan/forgeplan/lib/runlog"
)

// Command returns the "run" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Summary: "Query recorded workflow runs",
		Description: `Query the run records the webhook service has collected: individual
completed runs and jobs, per-job duration aggregates, and the health
alerts derived from them.

All commands read the store the config file selects (file snapshot,
SQLite, or Postgres). The config comes from --config or the
FORGEPLAN_CONFIG environment variable.`,
		Subcommands: []*cli.Command{
			listCommand(),
			statsCommand(),
			alertsCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "The twenty most recent records",
				Command:     "forgeplan run list --limit 20",
			},
			{
				Description: "Recent failures of one workflow",
				Command:     "forgeplan run list --workflow CI --conclusion failure --since 168h",
			},
			{
				Description: "Duration aggregates per job",
				Command:     "forgeplan run stats",
			},
			{
				Description: "Current health alerts",
				Command:     "forgeplan run alerts",
			},
		},
	}
}

// StoreParams is the config-selection flag shared by every run
// subcommand. Exported for the same reason as workflow.EventParams:
// cli.BindFlags cannot reach through unexported embedded fields.
type StoreParams struct {
	Config string `flag:"config" desc:"config file path (default: $FORGEPLAN_CONFIG)"`
}

// load resolves the configuration the flags point at.
func (p *StoreParams) load() (*config.Config, error) {
	if p.Config != "" {
		return config.LoadFile(p.Config)
	}
	return config.Load()
}

// openStore opens the run store the config selects. The caller closes
// it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runlog.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreFile:
		if err := cfg.EnsurePaths(); err != nil {
			return nil, err
		}
		return runlog.OpenFileStore(runlog.FileStoreConfig{
			Path:        cfg.Store.Path,
			MaxRecords:  cfg.Store.MaxRecords,
			Compression: cfg.Store.Compression,
			Logger:      logger,
		})
	case config.StoreSQLite:
		if err := cfg.EnsurePaths(); err != nil {
			return nil, err
		}
		return runlog.OpenSQLiteStore(cfg.Store.Path, logger)
	case config.StorePostgres:
		return runlog.OpenPostgresStore(ctx, cfg.Store.URL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// thresholds maps the config's alert section onto the monitor's
// thresholds.
func thresholds(cfg *config.Config) runlog.Thresholds {
	return runlog.Thresholds{
		FailureWarning:  cfg.Alerts.FailureWarning,
		FailureCritical: cfg.Alerts.FailureCritical,
		DurationFactor:  cfg.Alerts.DurationFactor,
		DurationMinimum: cfg.Alerts.DurationMinimum,
	}
}
