// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"maps"
	"slices"
	"strings"

	"github.com/forgeplan/forgeplan/lib/expr"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
)

// SecretResolver answers whether a named secret exists, without ever
// handing the planner its value. Plans carry fingerprints so two plans
// can be compared for secret drift; the material itself stays in the
// store.
type SecretResolver interface {
	// Resolve reports whether the named secret exists and returns a
	// short non-reversible fingerprint of its value.
	Resolve(name string) (fingerprint string, ok bool)

	// Names lists every available secret name. Used to expand
	// "secrets: inherit".
	Names() []string
}

// ResolvedSecret is one entry of a job's secret mapping after
// resolution.
type ResolvedSecret struct {
	// Name is the secret's name inside the called workflow.
	Name string `json:"name"`

	// Source is the secrets-context key the value comes from. Equal to
	// Name for inherited secrets.
	Source string `json:"source"`

	// Resolved reports whether the store held the source secret.
	Resolved bool `json:"resolved"`

	// Fingerprint identifies the value when resolved.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ResolveJobSecrets expands a job's secret declaration against the
// store. "inherit" forwards every store secret under its own name.
// Explicit mappings resolve each "${{ secrets.X }}" reference;
// validation has already guaranteed that form, so an unparseable value
// simply stays unresolved. A nil resolver leaves entries unresolved
// but still enumerates the explicit mapping, which is what plan
// rendering shows.
//
// Build calls this for every job it plans to run; the secret check
// command calls it directly so that checking and planning can never
// disagree about what a mapping resolves to.
func ResolveJobSecrets(job *workflow.Job, resolver SecretResolver) (inherited bool, resolved []ResolvedSecret) {
	if job.Secrets.Inherit {
		if resolver == nil {
			return true, nil
		}
		names := resolver.Names()
		slices.Sort(names)
		for _, name := range names {
			fingerprint, ok := resolver.Resolve(name)
			resolved = append(resolved, ResolvedSecret{
				Name:        name,
				Source:      name,
				Resolved:    ok,
				Fingerprint: fingerprint,
			})
		}
		return true, resolved
	}

	for _, name := range slices.Sorted(maps.Keys(job.Secrets.Values)) {
		entry := ResolvedSecret{Name: name, Source: sourceName(job.Secrets.Values[name])}
		if resolver != nil && entry.Source != "" {
			entry.Fingerprint, entry.Resolved = resolver.Resolve(entry.Source)
		}
		resolved = append(resolved, entry)
	}
	return false, resolved
}

// sourceName extracts NAME from a "${{ secrets.NAME }}" value, or ""
// when the value has any other shape.
func sourceName(value string) string {
	template, err := expr.ParseTemplate(value)
	if err != nil {
		return ""
	}
	single, ok := template.Single()
	if !ok {
		return ""
	}
	path, ok := single.PropertyPath()
	if !ok || len(path) != 2 || !strings.EqualFold(path[0], "secrets") {
		return ""
	}
	return path[1]
}
