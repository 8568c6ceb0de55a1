// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

// ciDocument is the classic release pipeline shape: PR validation
// against one branch, push builds on two branches plus release tags,
// three jobs chained by needs, and a publish job that is gated off
// for pull requests and fed deploy credentials.
const ciDocument = `
name: CI

on:
  pull_request:
    branches: [ develop ]
  push:
    branches: [ master, develop ]
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
    secrets:
      TWINE_USERNAME: ${{ secrets.TWINE_USERNAME }}
      TWINE_PASSWORD: ${{ secrets.TWINE_PASSWORD }}
      DOCKER_USERNAME: ${{ secrets.DOCKER_USERNAME }}
      DOCKER_TOKEN: ${{ secrets.DOCKER_TOKEN }}
    needs: [quality, test]
`

func TestUnmarshalFullDocument(t *testing.T) {
	t.Parallel()

	var wf Workflow
	if err := yaml.Unmarshal([]byte(ciDocument), &wf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if wf.Name != "CI" {
		t.Errorf("Name = %q, want %q", wf.Name, "CI")
	}

	if wf.On.PullRequest == nil {
		t.Fatal("pull_request trigger not declared")
	}
	if got := []string(wf.On.PullRequest.Branches); !slices.Equal(got, []string{"develop"}) {
		t.Errorf("pull_request branches = %v, want [develop]", got)
	}
	if got := wf.On.PullRequest.EffectiveTypes(); !slices.Equal(got, DefaultPullRequestTypes) {
		t.Errorf("effective types = %v, want defaults %v", got, DefaultPullRequestTypes)
	}

	if wf.On.Push == nil {
		t.Fatal("push trigger not declared")
	}
	if got := []string(wf.On.Push.Branches); !slices.Equal(got, []string{"master", "develop"}) {
		t.Errorf("push branches = %v, want [master develop]", got)
	}
	if got := []string(wf.On.Push.Tags); !slices.Equal(got, []string{"v*"}) {
		t.Errorf("push tags = %v, want [v*]", got)
	}

	if got := wf.Jobs.Order(); !slices.Equal(got, []string{"quality", "test", "build"}) {
		t.Fatalf("job order = %v, want [quality test build]", got)
	}

	test := wf.Job("test")
	if got := []string(test.Needs); !slices.Equal(got, []string{"quality"}) {
		t.Errorf("test needs = %v, want [quality]", got)
	}

	build := wf.Job("build")
	if build.If != "github.event_name != 'pull_request'" {
		t.Errorf("build if = %q", build.If)
	}
	if got := []string(build.Needs); !slices.Equal(got, []string{"quality", "test"}) {
		t.Errorf("build needs = %v, want [quality test]", got)
	}
	if !build.IsReusable() {
		t.Error("build should be a reusable-workflow job")
	}
	if build.Secrets.Inherit {
		t.Error("build secrets should be an explicit map, not inherit")
	}
	if len(build.Secrets.Values) != 4 {
		t.Fatalf("build secrets count = %d, want 4", len(build.Secrets.Values))
	}
	if got := build.Secrets.Values["DOCKER_TOKEN"]; got != "${{ secrets.DOCKER_TOKEN }}" {
		t.Errorf("DOCKER_TOKEN mapping = %q", got)
	}
}

func TestUnmarshalScalarOn(t *testing.T) {
	t.Parallel()

	var wf Workflow
	err := yaml.Unmarshal([]byte("on: push\njobs:\n  lint:\n    steps:\n      - run: make lint\n"), &wf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if wf.On.Push == nil {
		t.Fatal("push trigger not declared")
	}
	if len(wf.On.Push.Branches) != 0 {
		t.Errorf("scalar form should have no branch filters, got %v", wf.On.Push.Branches)
	}
	if wf.On.PullRequest != nil {
		t.Error("pull_request should not be declared")
	}
}

func TestUnmarshalListOn(t *testing.T) {
	t.Parallel()

	var wf Workflow
	err := yaml.Unmarshal([]byte("on: [push, pull_request, release]\njobs: {}\n"), &wf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if wf.On.Push == nil || wf.On.PullRequest == nil {
		t.Fatal("push and pull_request should both be declared")
	}
	if !slices.Equal(wf.On.Other, []string{"release"}) {
		t.Errorf("Other = %v, want [release]", wf.On.Other)
	}
	if got := wf.On.Declared(); !slices.Equal(got, []string{"push", "pull_request", "release"}) {
		t.Errorf("Declared = %v", got)
	}
}

func TestUnmarshalNullTriggerBlock(t *testing.T) {
	t.Parallel()

	var wf Workflow
	err := yaml.Unmarshal([]byte("on:\n  push:\n  workflow_dispatch:\njobs: {}\n"), &wf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if wf.On.Push == nil {
		t.Error("null push block should still declare the trigger")
	}
	if wf.On.WorkflowDispatch == nil {
		t.Error("null workflow_dispatch block should still declare the trigger")
	}
}

func TestUnmarshalScheduleAndDispatch(t *testing.T) {
	t.Parallel()

	const document = `
on:
  schedule:
    - cron: "30 4 * * 1-5"
  workflow_dispatch:
    inputs:
      environment:
        description: target environment
        required: true
        type: choice
        options: [staging, production]
      dry-run:
        type: boolean
        default: true
jobs: {}
`
	var wf Workflow
	if err := yaml.Unmarshal([]byte(document), &wf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(wf.On.Schedule) != 1 || wf.On.Schedule[0].Cron != "30 4 * * 1-5" {
		t.Fatalf("schedule = %+v", wf.On.Schedule)
	}
	inputs := wf.On.WorkflowDispatch.Inputs
	if len(inputs) != 2 {
		t.Fatalf("input count = %d, want 2", len(inputs))
	}
	environment := inputs["environment"]
	if environment.Type != InputTypeChoice || !environment.Required {
		t.Errorf("environment input = %+v", environment)
	}
	if got := []string(environment.Options); !slices.Equal(got, []string{"staging", "production"}) {
		t.Errorf("options = %v", got)
	}
	if inputs["dry-run"].Default != "true" {
		t.Errorf("boolean default = %q, want \"true\"", inputs["dry-run"].Default)
	}
}

func TestUnmarshalNeedsScalar(t *testing.T) {
	t.Parallel()

	const document = `
jobs:
  lint:
    steps:
      - run: make lint
  test:
    needs: lint
    steps:
      - run: make test
`
	var wf Workflow
	if err := yaml.Unmarshal([]byte(document), &wf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := []string(wf.Job("test").Needs); !slices.Equal(got, []string{"lint"}) {
		t.Errorf("needs = %v, want [lint]", got)
	}
}

func TestUnmarshalSecretsInherit(t *testing.T) {
	t.Parallel()

	const document = `
jobs:
  deploy:
    uses: ./.github/workflows/deploy.yml
    secrets: inherit
`
	var wf Workflow
	if err := yaml.Unmarshal([]byte(document), &wf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	deploy := wf.Job("deploy")
	if !deploy.Secrets.Inherit {
		t.Error("secrets should be inherit")
	}
	if deploy.Secrets.IsZero() {
		t.Error("inherit secrets should not be zero")
	}
}

func TestUnmarshalSecretsBadScalar(t *testing.T) {
	t.Parallel()

	var wf Workflow
	err := yaml.Unmarshal([]byte("jobs:\n  x:\n    secrets: everything\n"), &wf)
	if err == nil {
		t.Fatal("expected error for secrets scalar other than inherit")
	}
}

func TestUnmarshalDuplicateJobID(t *testing.T) {
	t.Parallel()

	const document = `
jobs:
  test:
    steps:
      - run: make test
  test:
    steps:
      - run: make test
`
	var wf Workflow
	if err := yaml.Unmarshal([]byte(document), &wf); err == nil {
		t.Fatal("expected error for duplicate job ID")
	}
}

func TestStringMapNumericScalars(t *testing.T) {
	t.Parallel()

	const document = `
jobs:
  test:
    steps:
      - uses: actions/setup-python@v5
        with:
          python-version: 3.9
          cache: true
`
	var wf Workflow
	if err := yaml.Unmarshal([]byte(document), &wf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	with := wf.Job("test").Steps[0].With
	if with["python-version"] != "3.9" {
		t.Errorf("python-version = %q, want \"3.9\"", with["python-version"])
	}
	if with["cache"] != "true" {
		t.Errorf("cache = %q, want \"true\"", with["cache"])
	}
}

func TestJobLineNumbers(t *testing.T) {
	t.Parallel()

	var wf Workflow
	if err := yaml.Unmarshal([]byte(ciDocument), &wf); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	quality := wf.Job("quality")
	build := wf.Job("build")
	if quality.Line == 0 || build.Line == 0 {
		t.Fatal("job source lines should be recorded")
	}
	if quality.Line >= build.Line {
		t.Errorf("quality line %d should precede build line %d", quality.Line, build.Line)
	}
}

func TestStepDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step Step
		want string
	}{
		{"explicit name", Step{Name: "Run tests", Run: "make test"}, "Run tests"},
		{"action reference", Step{Uses: "actions/checkout@v4"}, "actions/checkout@v4"},
		{"first run line", Step{Run: "make lint\nmake test"}, "make lint"},
	}
	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if got := testCase.step.DisplayName(); got != testCase.want {
				t.Errorf("DisplayName = %q, want %q", got, testCase.want)
			}
		})
	}
}
