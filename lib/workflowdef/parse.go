// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflowdef provides parsing, validation, and fingerprinting
// for workflow definitions. Workflows are trigger declarations plus a
// directed graph of jobs (reusable workflow calls or inline step
// sequences) that a forge runs in response to repository events.
//
// Workflow definitions are authored on disk as YAML under
// .github/workflows/, and occasionally mirrored as JSONC (JSON
// extended with comments and trailing commas) in configuration
// bundles. This package handles both formats.
//
// The typical flow:
//
//  1. ReadFile or Parse: bytes → workflow.Workflow
//  2. Validate: structural checks (uses XOR steps, needs edges, etc.)
//  3. lib/trigger: decide whether a forge event selects the workflow
//  4. lib/plan: order the selected jobs into an execution plan
package workflowdef

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/forgeplan/forgeplan/lib/schema/workflow"
)

// Parse unmarshals a YAML workflow document. Unknown keys are
// preserved or ignored per the lenient rules in
// [workflow.Workflow]; structural problems beyond YAML syntax are
// reported by [Validate], not here.
func Parse(data []byte) (*workflow.Workflow, error) {
	var def workflow.Workflow
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	return &def, nil
}

// ParseJSONC strips JSONC comments and trailing commas from data,
// then parses the result. JSON is a YAML subset, so the stripped
// bytes go through the same unmarshalling path as YAML documents and
// hit the same custom decoding hooks.
func ParseJSONC(data []byte) (*workflow.Workflow, error) {
	return Parse(jsonc.ToJSON(data))
}

// ReadFile reads a workflow file from disk and parses it. The format
// is chosen by extension: .json and .jsonc go through the JSONC
// path, everything else is treated as YAML.
func ReadFile(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var def *workflow.Workflow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		def, err = ParseJSONC(data)
	default:
		def, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return def, nil
}

// NameFromPath extracts a workflow name from a file path by stripping
// the directory prefix and the file extension. For example,
// ".github/workflows/ci.yml" returns "ci".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	extension := filepath.Ext(base)
	return strings.TrimSuffix(base, extension)
}

// EffectiveName returns the workflow's declared name, falling back to
// the file name when the definition has no "name" key. This mirrors
// how forges label workflow runs.
func EffectiveName(def *workflow.Workflow, path string) string {
	if def.Name != "" {
		return def.Name
	}
	return NameFromPath(path)
}
