// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgeplan/forgeplan/lib/config"
	"github.com/forgeplan/forgeplan/lib/forgehub"
	"github.com/forgeplan/forgeplan/lib/process"
	"github.com/forgeplan/forgeplan/lib/runlog"
	"github.com/forgeplan/forgeplan/lib/secret"
	"github.com/forgeplan/forgeplan/lib/secretstore"
	"github.com/forgeplan/forgeplan/lib/service"
	"github.com/forgeplan/forgeplan/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "config file path (default: $FORGEPLAN_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("forgeplan-webhook %s\n", version.Info())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	// The HMAC secret and forge token live in the environment only;
	// the config file never holds credentials.
	credentials, err := forgehub.CredentialsFromEnv()
	if err != nil {
		return err
	}
	if credentials.WebhookSecret == "" {
		return fmt.Errorf("FORGEPLAN_WEBHOOK_SECRET is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := openRunStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	log := runlog.NewLog(store, alertThresholds(cfg), logger)
	if err := log.Replay(ctx); err != nil {
		return err
	}

	workflows, err := loadWorkflowDir(cfg.Workflows.Dir, logger)
	if err != nil {
		return err
	}
	if cfg.Workflows.Repo != "" {
		workflows = append(workflows, fetchWorkflowRepo(ctx, cfg, credentials.Token, logger)...)
	}
	if len(workflows) == 0 {
		logger.Warn("no workflow definitions loaded; events will be recorded but not planned",
			"dir", cfg.Workflows.Dir,
		)
	}

	secrets, closeSecrets, err := buildSecretStore(cfg)
	if err != nil {
		return err
	}
	defer closeSecrets()

	observer := &Observer{
		workflows: workflows,
		secrets:   secrets,
		log:       log,
		store:     store,
		logger:    logger,
	}
	webhookHandler := NewWebhookHandler([]byte(credentials.WebhookSecret), logger, observer.handleEvent)

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Listen.Address,
		Handler:         service.LogRequests(logger, observer.routes(webhookHandler)),
		ShutdownTimeout: cfg.ShutdownGrace(),
		Logger:          logger,
	})

	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	select {
	case <-httpServer.Ready():
		logger.Info("webhook service ready",
			"address", httpServer.Addr().String(),
			"store", cfg.Store.Backend,
			"workflows", len(workflows),
		)
	case <-ctx.Done():
		return ctx.Err()
	}

	// Wait for shutdown signal, then for the server to drain.
	<-ctx.Done()
	logger.Info("shutting down")
	return <-httpDone
}

// loadConfig resolves --config, falling back to FORGEPLAN_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// openRunStore opens the run store the config selects. The caller
// closes it.
func openRunStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runlog.Store, error) {
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

// buildSecretStore assembles the resolver plans use: the
// FORGEPLAN_SECRET_* environment is always consulted, the config's
// secrets section adds a directory and a sealed bundle. The same
// stores back "forgeplan secret check", so the service's plans
// fingerprint exactly the values that command reports.
func buildSecretStore(cfg *config.Config) (secretstore.Store, func(), error) {
	stores := []secretstore.Store{secretstore.FromEnvironment()}
	closeStore := func() {}

	if cfg.Secrets.Dir != "" {
		store, err := secretstore.NewDirStore(cfg.Secrets.Dir)
		if err != nil {
			return nil, nil, err
		}
		stores = append(stores, store)
	}

	if cfg.Secrets.Bundle != "" {
		if cfg.Secrets.Identity == "" {
			return nil, nil, fmt.Errorf("secrets.bundle requires secrets.identity (the age identity file the bundle was sealed for)")
		}
		key, err := secret.ReadFromPath(cfg.Secrets.Identity)
		if err != nil {
			return nil, nil, fmt.Errorf("reading identity: %w", err)
		}
		store, err := secretstore.NewSealedStore(cfg.Secrets.Bundle, key)
		key.Close()
		if err != nil {
			return nil, nil, err
		}
		stores = append(stores, store)
		closeStore = func() { store.Close() }
	}

	if len(stores) == 1 {
		return stores[0], closeStore, nil
	}
	return secretstore.Merge(stores...), closeStore, nil
}

// alertThresholds maps the config's alert section onto the monitor's
// thresholds.
func alertThresholds(cfg *config.Config) runlog.Thresholds {
	return runlog.Thresholds{
		FailureWarning:  cfg.Alerts.FailureWarning,
		FailureCritical: cfg.Alerts.FailureCritical,
		DurationFactor:  cfg.Alerts.DurationFactor,
		DurationMinimum: cfg.Alerts.DurationMinimum,
	}
}
