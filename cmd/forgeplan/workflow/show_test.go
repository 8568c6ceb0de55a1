// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	libworkflow "github.com/forgeplan/forgeplan/lib/schema/workflow"
)

func TestShowSummary(t *testing.T) {
	path := writeFixture(t, "ci.yml", ciDocument)
	cmd := showCommand()

	var err error
	output := captureStdout(t, func() {
		err = cmd.Execute(context.Background(), []string{path}, testLogger())
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}

	for _, want := range []string{
		"CI  " + path,
		"fingerprint: ",
		"triggers:",
		"push: branches: master, develop; tags: v*",
		"pull_request: branches: develop; types: opened, synchronize, reopened",
		"jobs:",
		"reusable",
		"quality, test",
		"github.event_name != 'pull_request'",
		"secrets:",
		"build: DOCKER_TOKEN, DOCKER_USERNAME, TWINE_PASSWORD, TWINE_USERNAME",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestShowJSON(t *testing.T) {
	path := writeFixture(t, "ci.yml", ciDocument)
	cmd := showCommand()

	var err error
	output := captureStdout(t, func() {
		err = cmd.Execute(context.Background(), []string{path, "--json"}, testLogger())
	})
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}

	var summary workflowSummary
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		t.Fatalf("unmarshaling summary: %v", err)
	}
	if summary.Name != "CI" {
		t.Errorf("Name = %q, want CI", summary.Name)
	}
	if summary.Path != path {
		t.Errorf("Path = %q, want %q", summary.Path, path)
	}
	if len(summary.Fingerprint) != 64 {
		t.Errorf("Fingerprint = %q, want 64 hex characters", summary.Fingerprint)
	}
	if len(summary.Triggers) != 2 {
		t.Errorf("got %d triggers, want 2: %v", len(summary.Triggers), summary.Triggers)
	}
	if len(summary.Issues) != 0 {
		t.Errorf("unexpected issues: %v", summary.Issues)
	}
	if len(summary.Jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(summary.Jobs))
	}
	if summary.Jobs[0].ID != "quality" {
		t.Errorf("Jobs[0].ID = %q, want quality (declaration order)", summary.Jobs[0].ID)
	}
	build := summary.Jobs[2]
	if got, want := strings.Join(build.Needs, ","), "quality,test"; got != want {
		t.Errorf("build needs = %q, want %q", got, want)
	}
	if got, want := strings.Join(build.Secrets, ","), "DOCKER_TOKEN,DOCKER_USERNAME,TWINE_PASSWORD,TWINE_USERNAME"; got != want {
		t.Errorf("build secrets = %q, want %q (sorted)", got, want)
	}
	if build.Uses == "" {
		t.Error("build.Uses is empty")
	}
}

func TestShowJobDetail(t *testing.T) {
	path := writeFixture(t, "ci.yml", ciDocument)
	cmd := showCommand()

	var err error
	output := captureStdout(t, func() {
		err = cmd.Execute(context.Background(), []string{path, "--job", "build"}, testLogger())
	})
	if err != nil {
		t.Fatalf("show --job: %v", err)
	}

	for _, want := range []string{
		"job: build",
		"needs: quality, test",
		"if: github.event_name != 'pull_request'",
		"uses: ./.github/workflows/build.yml",
		"secrets:",
		"TWINE_PASSWORD: ${{ secrets.TWINE_PASSWORD }}",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "steps:") {
		t.Errorf("a reusable job has no steps:\n%s", output)
	}
}

func TestShowMissingJob(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "ci.yml", ciDocument)
	cmd := showCommand()
	err := cmd.Execute(context.Background(), []string{path, "--job", "deploy"}, testLogger())
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	if !strings.Contains(err.Error(), `no job "deploy"`) {
		t.Errorf("err = %v, want unknown-job message", err)
	}
	// The error lists what does exist.
	if !strings.Contains(err.Error(), "quality") {
		t.Errorf("err = %v, should list the declared jobs", err)
	}
}

func TestShowSourcePassthrough(t *testing.T) {
	path := writeFixture(t, "ci.yml", ciDocument)
	cmd := showCommand()

	var err error
	output := captureStdout(t, func() {
		err = cmd.Execute(context.Background(), []string{path, "--source"}, testLogger())
	})
	if err != nil {
		t.Fatalf("show --source: %v", err)
	}

	// Stdout is a pipe, not a terminal, so the bytes pass through
	// without highlighting.
	if output != ciDocument {
		t.Errorf("source output differs from the file:\n%s", output)
	}
}

func TestShowJSONReportsIssues(t *testing.T) {
	path := writeFixture(t, "broken.yml", brokenDocument)
	cmd := showCommand()

	var err error
	output := captureStdout(t, func() {
		err = cmd.Execute(context.Background(), []string{path, "--json"}, testLogger())
	})
	if err != nil {
		t.Fatalf("show describes broken files instead of refusing: %v", err)
	}

	var summary workflowSummary
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		t.Fatalf("unmarshaling summary: %v", err)
	}
	if len(summary.Issues) == 0 {
		t.Fatal("expected validation issues")
	}
	if !strings.Contains(summary.Issues[0], "needs undeclared") {
		t.Errorf("Issues[0] = %q, want the undeclared-needs finding", summary.Issues[0])
	}
}

func TestTriggerLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		triggers libworkflow.Triggers
		want     string
	}{
		{
			name:     "unfiltered push",
			triggers: libworkflow.Triggers{Push: &libworkflow.PushFilter{}},
			want:     "push: all pushes",
		},
		{
			name: "push with branch and tag filters",
			triggers: libworkflow.Triggers{Push: &libworkflow.PushFilter{
				Branches: libworkflow.StringList{"master", "develop"},
				Tags:     libworkflow.StringList{"v*"},
			}},
			want: "push: branches: master, develop; tags: v*",
		},
		{
			name: "pull request defaults its types",
			triggers: libworkflow.Triggers{PullRequest: &libworkflow.PullRequestFilter{
				Branches: libworkflow.StringList{"develop"},
			}},
			want: "pull_request: branches: develop; types: opened, synchronize, reopened",
		},
		{
			name: "schedule shows the next fire time",
			triggers: libworkflow.Triggers{Schedule: []libworkflow.ScheduleEntry{
				{Cron: "30 4 * * *"},
			}},
			want: "schedule: 30 4 * * * (next ",
		},
		{
			name: "invalid cron",
			triggers: libworkflow.Triggers{Schedule: []libworkflow.ScheduleEntry{
				{Cron: "not cron"},
			}},
			want: "(invalid:",
		},
		{
			name: "cron that never fires",
			triggers: libworkflow.Triggers{Schedule: []libworkflow.ScheduleEntry{
				{Cron: "0 0 31 2 *"},
			}},
			want: "(never fires:",
		},
		{
			name: "dispatch with a required input",
			triggers: libworkflow.Triggers{WorkflowDispatch: &libworkflow.Dispatch{
				Inputs: map[string]*libworkflow.DispatchInput{
					"version": {Required: true},
				},
			}},
			want: "workflow_dispatch: inputs version (string, required)",
		},
		{
			name:     "unevaluated trigger kinds",
			triggers: libworkflow.Triggers{Other: []string{"release"}},
			want:     "release (declared, not evaluated)",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			lines := triggerLines(&testCase.triggers)
			if len(lines) != 1 {
				t.Fatalf("got %d lines, want 1: %v", len(lines), lines)
			}
			if !strings.Contains(lines[0], testCase.want) {
				t.Errorf("line = %q, want substring %q", lines[0], testCase.want)
			}
		})
	}
}
