// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
	"github.com/forgeplan/forgeplan/lib/sealed"
	"github.com/forgeplan/forgeplan/lib/secretstore"
)

// sealParams holds the parameters for the secret seal command.
type sealParams struct {
	Recipients []string `flag:"recipient" desc:"age recipient public key (repeatable)"`
	Output     string   `flag:"output,o"  desc:"write the bundle here instead of stdout"`
}

// sealCommand returns the "seal" subcommand for building a sealed
// secret bundle.
func sealCommand() *cli.Command {
	var params sealParams

	return &cli.Command{
		Name:    "seal",
		Summary: "Seal a directory of secrets into an encrypted bundle",
		Description: `Collect every secret file in a directory into a single bundle and
encrypt it to one or more age recipients. The bundle is safe to
commit or distribute; only a holder of a matching age identity can
open it ("secret check --bundle" does, at resolution time).

The plaintext exists only transiently in locked memory while the
bundle is built.`,
		Usage: "forgeplan secret seal [flags] --recipient age1... <dir>",
		Examples: []cli.Example{
			{
				Description: "Seal a secrets directory to one recipient",
				Command:     "forgeplan secret seal /etc/forgeplan/secrets --recipient age1ql3z... --output ci-secrets.bundle",
			},
			{
				Description: "Seal to the whole release team",
				Command:     "forgeplan secret seal ./secrets --recipient age1ql3z... --recipient age1xmr9...",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seal", &params)
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: forgeplan secret seal [flags] --recipient age1... <dir>")
			}
			if len(params.Recipients) == 0 {
				return fmt.Errorf("at least one --recipient is required")
			}
			for _, recipient := range params.Recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return fmt.Errorf("invalid recipient %q: %w", recipient, err)
				}
			}

			store, err := secretstore.NewDirStore(args[0])
			if err != nil {
				return err
			}

			ciphertext, err := secretstore.SealBundle(store, params.Recipients)
			if err != nil {
				return err
			}

			if params.Output == "" {
				fmt.Fprintln(os.Stdout, ciphertext)
			} else {
				if err := os.WriteFile(params.Output, []byte(ciphertext+"\n"), 0o600); err != nil {
					return fmt.Errorf("writing bundle: %w", err)
				}
			}

			logger.Info("sealed bundle",
				"secrets", len(store.Names()),
				"recipients", len(params.Recipients),
				"output", outputLabel(params.Output))
			return nil
		},
	}
}

func outputLabel(output string) string {
	if output == "" {
		return "stdout"
	}
	return output
}
