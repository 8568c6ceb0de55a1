// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"strings"
	"testing"

	"github.com/forgeplan/forgeplan/lib/schema/forge"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// ciDocument is a release pipeline in the shape this package exists
// for: quality gates everything, test gates build, and build only runs
// outside pull requests, with publishing credentials passed through.
const ciDocument = `
name: CI
on:
  pull_request:
    branches: [develop]
  push:
    branches: [master, develop]
    tags:
      - v*
jobs:
  quality:
    uses: ./.github/workflows/quality.yml
  test:
    uses: ./.github/workflows/test.yml
    needs: [quality]
  build:
    if: github.event_name != 'pull_request'
    uses: ./.github/workflows/build.yml
    needs: [quality, test]
    secrets:
      TWINE_USERNAME: ${{ secrets.TWINE_USERNAME }}
      TWINE_PASSWORD: ${{ secrets.TWINE_PASSWORD }}
      DOCKER_USERNAME: ${{ secrets.DOCKER_USERNAME }}
      DOCKER_TOKEN: ${{ secrets.DOCKER_TOKEN }}
`

type fakeResolver struct {
	names []string
}

func (f *fakeResolver) Resolve(name string) (string, bool) {
	for _, known := range f.names {
		if known == name {
			return "fp-" + strings.ToLower(name), true
		}
	}
	return "", false
}

func (f *fakeResolver) Names() []string {
	return append([]string(nil), f.names...)
}

func parseWorkflow(t *testing.T, document string) *workflow.Workflow {
	t.Helper()
	def, err := workflowdef.Parse([]byte(document))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return def
}

func pushEvent(ref string) *forge.Event {
	return &forge.Event{
		Kind: forge.EventKindPush,
		Push: &forge.PushEvent{
			Repo:  "nicolargo/glances",
			Ref:   ref,
			After: "9be5c2a407e605eae0a278eb39b2564e1a6e51e1",
		},
	}
}

func pullRequestEvent(baseRef string) *forge.Event {
	return &forge.Event{
		Kind: forge.EventKindPullRequest,
		PullRequest: &forge.PullRequestEvent{
			Repo:    "nicolargo/glances",
			Number:  2931,
			Action:  "opened",
			BaseRef: baseRef,
			HeadRef: "fix/sensor-refresh",
		},
	}
}

func TestBuildPushToMaster(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	resolver := &fakeResolver{names: []string{
		"TWINE_USERNAME", "TWINE_PASSWORD", "DOCKER_USERNAME", "DOCKER_TOKEN",
	}}

	p, err := Build(def, pushEvent("refs/heads/master"), Options{Secrets: resolver})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !p.Selected {
		t.Fatalf("Selected = false: %s", p.Reason)
	}
	if p.Workflow != "CI" || p.EventKind != "push" {
		t.Errorf("Workflow/EventKind = %q/%q, want CI/push", p.Workflow, p.EventKind)
	}
	if p.Repo != "nicolargo/glances" || p.Ref != "refs/heads/master" {
		t.Errorf("Repo/Ref = %q/%q, want nicolargo/glances / refs/heads/master", p.Repo, p.Ref)
	}

	if len(p.Stages) != 3 {
		t.Fatalf("got %d stages, want 3", len(p.Stages))
	}
	wantStages := [][]string{{"quality"}, {"test"}, {"build"}}
	for i, want := range wantStages {
		got := p.Stages[i].JobIDs
		if len(got) != len(want) || got[0] != want[0] {
			t.Errorf("stage %d = %v, want %v", i, got, want)
		}
	}

	for _, id := range []string{"quality", "test", "build"} {
		job := p.Job(id)
		if job == nil || job.Disposition != DispositionRun {
			t.Errorf("Job(%q) = %+v, want run", id, job)
		}
	}

	build := p.Job("build")
	if !strings.Contains(build.Reason, "evaluated to true") {
		t.Errorf("build Reason = %q, want gated-run explanation", build.Reason)
	}
	if len(build.Secrets) != 4 {
		t.Fatalf("build Secrets = %+v, want 4 entries", build.Secrets)
	}
	wantNames := []string{"DOCKER_TOKEN", "DOCKER_USERNAME", "TWINE_PASSWORD", "TWINE_USERNAME"}
	for i, secret := range build.Secrets {
		if secret.Name != wantNames[i] {
			t.Errorf("Secrets[%d].Name = %q, want %q (sorted)", i, secret.Name, wantNames[i])
		}
		if secret.Source != secret.Name {
			t.Errorf("Secrets[%d].Source = %q, want %q", i, secret.Source, secret.Name)
		}
		if !secret.Resolved || secret.Fingerprint == "" {
			t.Errorf("Secrets[%d] = %+v, want resolved with fingerprint", i, secret)
		}
	}
}

func TestBuildPullRequestSkipsBuild(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	resolver := &fakeResolver{names: []string{"TWINE_USERNAME"}}

	p, err := Build(def, pullRequestEvent("develop"), Options{Secrets: resolver})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !p.Selected {
		t.Fatalf("Selected = false: %s", p.Reason)
	}

	if job := p.Job("quality"); job.Disposition != DispositionRun {
		t.Errorf("quality = %s, want run", job.Disposition)
	}
	if job := p.Job("test"); job.Disposition != DispositionRun {
		t.Errorf("test = %s, want run", job.Disposition)
	}

	build := p.Job("build")
	if build.Disposition != DispositionSkip {
		t.Fatalf("build = %s, want skip", build.Disposition)
	}
	if !strings.Contains(build.Reason, "evaluated to false") {
		t.Errorf("build Reason = %q, want condition explanation", build.Reason)
	}
	if len(build.Secrets) != 0 {
		t.Errorf("build Secrets = %+v, want none for a skipped job", build.Secrets)
	}
}

func TestBuildTagPush(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	p, err := Build(def, pushEvent("refs/tags/v4.3.3"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !p.Selected {
		t.Fatalf("Selected = false: %s", p.Reason)
	}
	build := p.Job("build")
	if build.Disposition != DispositionRun {
		t.Errorf("build = %s, want run for a tag push", build.Disposition)
	}
	// No resolver: the mapping is enumerated but nothing resolves.
	if len(build.Secrets) != 4 {
		t.Fatalf("build Secrets = %+v, want 4 unresolved entries", build.Secrets)
	}
	for _, secret := range build.Secrets {
		if secret.Resolved || secret.Fingerprint != "" {
			t.Errorf("secret %+v resolved without a resolver", secret)
		}
	}
}

func TestBuildUnselectedEvent(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	p, err := Build(def, pushEvent("refs/heads/feature/sensors"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Selected {
		t.Fatal("Selected = true for a filtered-out branch")
	}
	if len(p.Stages) != 0 || len(p.Jobs) != 0 {
		t.Errorf("unselected plan has stages/jobs: %+v", p)
	}
	if !strings.Contains(p.Reason, "matches no branches pattern") {
		t.Errorf("Reason = %q, want filter explanation", p.Reason)
	}
}

func TestBuildRecordsFingerprint(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	digest := workflowdef.ComputeFingerprint([]byte(ciDocument)).String()

	p, err := Build(def, pushEvent("refs/heads/develop"), Options{Fingerprint: digest})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Fingerprint != digest {
		t.Errorf("Fingerprint = %q, want %q", p.Fingerprint, digest)
	}
}

func TestBuildRejectsInvalidWorkflow(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, "on: push\njobs:\n  build:\n    needs: [missing]\n    steps:\n      - run: make\n")
	_, err := Build(def, pushEvent("refs/heads/master"), Options{})
	if err == nil || !strings.Contains(err.Error(), "validation issue") {
		t.Fatalf("Build error = %v, want validation failure", err)
	}
}

func TestSkipPropagation(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, `
on: push
jobs:
  gatekeeper:
    if: github.ref_type == 'tag'
    steps:
      - run: make check
  package:
    needs: gatekeeper
    steps:
      - run: make package
  announce:
    needs: package
    steps:
      - run: make announce
`)

	p, err := Build(def, pushEvent("refs/heads/master"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if job := p.Job("gatekeeper"); job.Disposition != DispositionSkip ||
		!strings.Contains(job.Reason, "evaluated to false") {
		t.Errorf("gatekeeper = %+v, want condition skip", job)
	}
	if job := p.Job("package"); job.Disposition != DispositionSkip ||
		!strings.Contains(job.Reason, `needed job "gatekeeper" was skipped`) {
		t.Errorf("package = %+v, want propagated skip", job)
	}
	if job := p.Job("announce"); job.Disposition != DispositionSkip ||
		!strings.Contains(job.Reason, `needed job "package" was skipped`) {
		t.Errorf("announce = %+v, want propagated skip", job)
	}
}

func TestAlwaysGateOverridesSkipPropagation(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, `
on: push
jobs:
  gatekeeper:
    if: github.ref_type == 'tag'
    steps:
      - run: make check
  report:
    needs: gatekeeper
    if: always()
    steps:
      - run: make report
`)

	p, err := Build(def, pushEvent("refs/heads/master"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if job := p.Job("report"); job.Disposition != DispositionRun {
		t.Errorf("report = %+v, want run despite skipped need", job)
	}
}

func TestNeedsResultsVisibleToGates(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, `
on: push
jobs:
  quality:
    steps:
      - run: make lint
  publish:
    needs: quality
    if: needs.quality.result == 'success'
    steps:
      - run: make publish
`)

	p, err := Build(def, pushEvent("refs/heads/master"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if job := p.Job("publish"); job.Disposition != DispositionRun {
		t.Errorf("publish = %+v, want run from needs result", job)
	}
}

func TestDiamondStaging(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, `
on: push
jobs:
  fetch:
    steps:
      - run: make fetch
  linux:
    needs: fetch
    steps:
      - run: make linux
  windows:
    needs: fetch
    steps:
      - run: make windows
  bundle:
    needs: [linux, windows]
    steps:
      - run: make bundle
`)

	p, err := Build(def, pushEvent("refs/heads/master"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(p.Stages) != 3 {
		t.Fatalf("got %d stages, want 3", len(p.Stages))
	}
	middle := p.Stages[1].JobIDs
	if len(middle) != 2 || middle[0] != "linux" || middle[1] != "windows" {
		t.Errorf("stage 1 = %v, want [linux windows] in declaration order", middle)
	}
	if p.Job("bundle").Stage != 2 {
		t.Errorf("bundle Stage = %d, want 2", p.Job("bundle").Stage)
	}
}

func TestSecretsInherit(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, `
on: push
jobs:
  deploy:
    uses: ./.github/workflows/deploy.yml
    secrets: inherit
`)

	resolver := &fakeResolver{names: []string{"DOCKER_TOKEN", "AWS_KEY"}}
	p, err := Build(def, pushEvent("refs/heads/master"), Options{Secrets: resolver})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	deploy := p.Job("deploy")
	if !deploy.SecretsInherited {
		t.Error("SecretsInherited = false, want true")
	}
	if len(deploy.Secrets) != 2 {
		t.Fatalf("Secrets = %+v, want both store secrets", deploy.Secrets)
	}
	if deploy.Secrets[0].Name != "AWS_KEY" || deploy.Secrets[1].Name != "DOCKER_TOKEN" {
		t.Errorf("Secrets = %+v, want sorted store names", deploy.Secrets)
	}
}

func TestUnresolvedSecretIsReported(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	resolver := &fakeResolver{names: []string{
		"TWINE_USERNAME", "DOCKER_USERNAME", "DOCKER_TOKEN",
	}}

	p, err := Build(def, pushEvent("refs/heads/master"), Options{Secrets: resolver})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, secret := range p.Job("build").Secrets {
		want := secret.Name != "TWINE_PASSWORD"
		if secret.Resolved != want {
			t.Errorf("secret %s Resolved = %v, want %v", secret.Name, secret.Resolved, want)
		}
	}
}

func TestDOT(t *testing.T) {
	t.Parallel()

	def := parseWorkflow(t, ciDocument)
	p, err := Build(def, pullRequestEvent("develop"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dot := p.DOT()
	for _, want := range []string{
		"digraph workflow {",
		"rankdir=LR",
		`"quality" -> "test";`,
		`"quality" -> "build";`,
		`"test" -> "build";`,
		`label="build\n(skipped)", style=dashed`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}
