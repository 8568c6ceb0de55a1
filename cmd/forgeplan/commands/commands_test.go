// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/forgeplan/forgeplan/cmd/forgeplan/cli"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// walkCommands visits every command in the tree with its full path.
func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := make([]string, len(path)+1)
	copy(current, path)
	current[len(path)] = command.Name
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}

func TestCommandTree(t *testing.T) {
	t.Parallel()

	walkCommands(Root(), nil, func(command *cli.Command, path []string) {
		name := strings.Join(path, " ")

		if command.Name == "" {
			t.Errorf("%s: empty command name", name)
		}
		if command.Run == nil && len(command.Subcommands) == 0 {
			t.Errorf("%s: has neither Run nor subcommands", name)
		}
		if len(path) > 1 && command.Summary == "" {
			t.Errorf("%s: missing summary", name)
		}

		seen := make(map[string]bool, len(command.Subcommands))
		for _, sub := range command.Subcommands {
			if seen[sub.Name] {
				t.Errorf("%s: duplicate subcommand %q", name, sub.Name)
			}
			seen[sub.Name] = true
		}

		for _, example := range command.Examples {
			if example.Description == "" {
				t.Errorf("%s: example without description", name)
			}
			if !strings.HasPrefix(example.Command, "forgeplan") {
				t.Errorf("%s: example %q does not start with the binary name", name, example.Command)
			}
		}
	})
}

func TestUnknownCommandSuggestion(t *testing.T) {
	t.Parallel()

	err := Root().Execute(context.Background(), []string{"workflw"}, testLogger())
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command", err)
	}
	if !strings.Contains(err.Error(), `"workflow"`) {
		t.Errorf("err = %v, want a workflow suggestion", err)
	}
}

func TestRootWithoutArgs(t *testing.T) {
	t.Parallel()

	err := Root().Execute(context.Background(), nil, testLogger())
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("err = %v, want subcommand required", err)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	if err := Root().Execute(context.Background(), []string{"version"}, testLogger()); err != nil {
		t.Fatalf("version: %v", err)
	}
}
