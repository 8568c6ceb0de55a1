// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	libsecret "github.com/forgeplan/forgeplan/lib/secret"
	"github.com/forgeplan/forgeplan/lib/secretstore"
)

// Command returns the "secret" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "secret",
		Summary: "Check and bundle workflow secrets",
		Description: `Work with the secrets workflow jobs map across reusable-workflow
boundaries. Forgeplan never prints a secret value; every command here
deals in names and value fingerprints only.

Secrets come from three local sources: FORGEPLAN_SECRET_* environment
variables, a directory of one-secret-per-file entries, and sealed
bundles ("check --bundle") built by "seal" and encrypted to age
recipients.`,
		Subcommands: []*cli.Command{
			checkCommand(),
			sealCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Check a workflow's secret wiring against a secrets directory",
				Command:     "forgeplan secret check ci.yml --dir /etc/forgeplan/secrets",
			},
			{
				Description: "Seal a secrets directory for distribution",
				Command:     "forgeplan secret seal /etc/forgeplan/secrets --recipient age1ql3z... --output ci-secrets.bundle",
			},
		},
	}
}

// buildStore assembles the secret store the flags describe. The
// environment store is always consulted; --dir and --bundle overlay
// additional sources with first-match-wins precedence. The returned
// close function releases any decrypted bundle material.
func buildStore(dir, bundle, identity string) (secretstore.Store, func(), error) {
	stores := []secretstore.Store{secretstore.FromEnvironment()}
	closeStore := func() {}

	if dir != "" {
		store, err := secretstore.NewDirStore(dir)
		if err != nil {
			return nil, nil, err
		}
		stores = append(stores, store)
	}

	if bundle != "" {
		if identity == "" {
			return nil, nil, fmt.Errorf("--bundle requires --identity (the age identity file the bundle was sealed for)")
		}
		key, err := libsecret.ReadFromPath(identity)
		if err != nil {
			return nil, nil, fmt.Errorf("reading identity: %w", err)
		}
		store, err := secretstore.NewSealedStore(bundle, key)
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
