// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"strings"
	"testing"
	"time"

	"github.com/forgeplan/forgeplan/lib/schema/forge"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
)

// releaseTriggers mirrors a typical release pipeline: pull requests
// into develop, pushes to the two long-lived branches, and version
// tags.
func releaseTriggers() *workflow.Triggers {
	return &workflow.Triggers{
		Push: &workflow.PushFilter{
			Branches: workflow.StringList{"master", "develop"},
			Tags:     workflow.StringList{"v*"},
		},
		PullRequest: &workflow.PullRequestFilter{
			Branches: workflow.StringList{"develop"},
		},
	}
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

func pullRequestEvent(action, baseRef string) *forge.Event {
	return &forge.Event{
		Kind: forge.EventKindPullRequest,
		PullRequest: &forge.PullRequestEvent{
			Repo:    "nicolargo/glances",
			Number:  2931,
			Action:  action,
			BaseRef: baseRef,
			HeadRef: "fix/sensor-refresh",
		},
	}
}

func TestEvaluatePush(t *testing.T) {
	t.Parallel()

	for _, testCase := range []struct {
		name         string
		triggers     *workflow.Triggers
		event        *forge.Event
		wantSelected bool
		wantReason   string
	}{
		{
			name:         "branch in filter",
			triggers:     releaseTriggers(),
			event:        pushEvent("refs/heads/master"),
			wantSelected: true,
			wantReason:   "matches the branches filter",
		},
		{
			name:         "branch outside filter",
			triggers:     releaseTriggers(),
			event:        pushEvent("refs/heads/feature/sensors"),
			wantSelected: false,
			wantReason:   "matches no branches pattern",
		},
		{
			name:         "version tag",
			triggers:     releaseTriggers(),
			event:        pushEvent("refs/tags/v4.3.3"),
			wantSelected: true,
			wantReason:   "matches the tags filter",
		},
		{
			name:         "tag outside filter",
			triggers:     releaseTriggers(),
			event:        pushEvent("refs/tags/nightly"),
			wantSelected: false,
			wantReason:   "matches no tags pattern",
		},
		{
			name:         "no push trigger",
			triggers:     &workflow.Triggers{PullRequest: &workflow.PullRequestFilter{}},
			event:        pushEvent("refs/heads/master"),
			wantSelected: false,
			wantReason:   "does not declare a push trigger",
		},
		{
			name:         "unfiltered push trigger",
			triggers:     &workflow.Triggers{Push: &workflow.PushFilter{}},
			event:        pushEvent("refs/heads/anything"),
			wantSelected: true,
			wantReason:   "declares no branches filter",
		},
		{
			name: "tags-only filter excludes branch pushes",
			triggers: &workflow.Triggers{Push: &workflow.PushFilter{
				Tags: workflow.StringList{"v*"},
			}},
			event:        pushEvent("refs/heads/master"),
			wantSelected: false,
			wantReason:   "filters tags only",
		},
		{
			name: "branches-only filter excludes tag pushes",
			triggers: &workflow.Triggers{Push: &workflow.PushFilter{
				Branches: workflow.StringList{"master"},
			}},
			event:        pushEvent("refs/tags/v4.3.3"),
			wantSelected: false,
			wantReason:   "filters branches only",
		},
		{
			name: "branches-ignore excludes",
			triggers: &workflow.Triggers{Push: &workflow.PushFilter{
				BranchesIgnore: workflow.StringList{"wip/**"},
			}},
			event:        pushEvent("refs/heads/wip/scratch/idea"),
			wantSelected: false,
			wantReason:   "excluded by branches-ignore",
		},
		{
			name: "branches-ignore passes others",
			triggers: &workflow.Triggers{Push: &workflow.PushFilter{
				BranchesIgnore: workflow.StringList{"wip/**"},
			}},
			event:        pushEvent("refs/heads/master"),
			wantSelected: true,
			wantReason:   "passes the branches-ignore filter",
		},
		{
			name:         "ref outside branches and tags",
			triggers:     releaseTriggers(),
			event:        pushEvent("refs/notes/commits"),
			wantSelected: false,
			wantReason:   "neither a branch nor a tag",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			decision := Evaluate(testCase.triggers, testCase.event)
			if decision.Selected != testCase.wantSelected {
				t.Errorf("Selected = %v, want %v (reason: %s)",
					decision.Selected, testCase.wantSelected, decision.Reason)
			}
			if !strings.Contains(decision.Reason, testCase.wantReason) {
				t.Errorf("Reason = %q, want containing %q", decision.Reason, testCase.wantReason)
			}
		})
	}
}

func TestEvaluatePushDeletion(t *testing.T) {
	t.Parallel()

	event := pushEvent("refs/heads/master")
	event.Push.Deleted = true
	decision := Evaluate(releaseTriggers(), event)
	if decision.Selected {
		t.Errorf("deletion push selected the workflow: %s", decision.Reason)
	}
	if !strings.Contains(decision.Reason, "deletion") {
		t.Errorf("Reason = %q, want deletion explanation", decision.Reason)
	}
}

func TestEvaluatePullRequest(t *testing.T) {
	t.Parallel()

	for _, testCase := range []struct {
		name         string
		triggers     *workflow.Triggers
		event        *forge.Event
		wantSelected bool
		wantReason   string
	}{
		{
			name:         "opened into develop",
			triggers:     releaseTriggers(),
			event:        pullRequestEvent("opened", "develop"),
			wantSelected: true,
			wantReason:   "matches the pull_request trigger",
		},
		{
			name:         "synchronize is a default type",
			triggers:     releaseTriggers(),
			event:        pullRequestEvent("synchronize", "develop"),
			wantSelected: true,
			wantReason:   "matches the pull_request trigger",
		},
		{
			name:         "closed is not a default type",
			triggers:     releaseTriggers(),
			event:        pullRequestEvent("closed", "develop"),
			wantSelected: false,
			wantReason:   "not among the trigger's types",
		},
		{
			name: "declared types replace the default set",
			triggers: &workflow.Triggers{PullRequest: &workflow.PullRequestFilter{
				Types: workflow.StringList{"closed"},
			}},
			event:        pullRequestEvent("closed", "develop"),
			wantSelected: true,
			wantReason:   "matches the pull_request trigger",
		},
		{
			name:         "base branch outside filter",
			triggers:     releaseTriggers(),
			event:        pullRequestEvent("opened", "master"),
			wantSelected: false,
			wantReason:   "matches no branches pattern",
		},
		{
			name: "base branch in ignore list",
			triggers: &workflow.Triggers{PullRequest: &workflow.PullRequestFilter{
				BranchesIgnore: workflow.StringList{"release/**"},
			}},
			event:        pullRequestEvent("opened", "release/4.3"),
			wantSelected: false,
			wantReason:   "excluded by branches-ignore",
		},
		{
			name:         "no pull_request trigger",
			triggers:     &workflow.Triggers{Push: &workflow.PushFilter{}},
			event:        pullRequestEvent("opened", "develop"),
			wantSelected: false,
			wantReason:   "does not declare a pull_request trigger",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			decision := Evaluate(testCase.triggers, testCase.event)
			if decision.Selected != testCase.wantSelected {
				t.Errorf("Selected = %v, want %v (reason: %s)",
					decision.Selected, testCase.wantSelected, decision.Reason)
			}
			if !strings.Contains(decision.Reason, testCase.wantReason) {
				t.Errorf("Reason = %q, want containing %q", decision.Reason, testCase.wantReason)
			}
		})
	}
}

func TestEvaluateSchedule(t *testing.T) {
	t.Parallel()

	tick := func(hour, minute int) *forge.Event {
		return &forge.Event{
			Kind: forge.EventKindSchedule,
			Schedule: &forge.ScheduleEvent{
				Repo: "nicolargo/glances",
				Time: time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC),
			},
		}
	}

	nightly := &workflow.Triggers{Schedule: []workflow.ScheduleEntry{{Cron: "0 4 * * *"}}}

	if decision := Evaluate(nightly, tick(4, 0)); !decision.Selected {
		t.Errorf("04:00 tick not selected: %s", decision.Reason)
	}
	if decision := Evaluate(nightly, tick(5, 0)); decision.Selected {
		t.Errorf("05:00 tick selected: %s", decision.Reason)
	}

	// A broken entry is skipped; later entries still match.
	mixed := &workflow.Triggers{Schedule: []workflow.ScheduleEntry{
		{Cron: "not a cron line"},
		{Cron: "30 4 * * *"},
	}}
	decision := Evaluate(mixed, tick(4, 30))
	if !decision.Selected {
		t.Errorf("tick matching the second entry not selected: %s", decision.Reason)
	}
	if !strings.Contains(decision.Reason, "30 4 * * *") {
		t.Errorf("Reason = %q, want the matching cron line", decision.Reason)
	}

	none := &workflow.Triggers{Push: &workflow.PushFilter{}}
	if decision := Evaluate(none, tick(4, 0)); decision.Selected ||
		!strings.Contains(decision.Reason, "does not declare a schedule trigger") {
		t.Errorf("undeclared schedule: %+v", decision)
	}

	empty := &workflow.Triggers{Schedule: []workflow.ScheduleEntry{}}
	if decision := Evaluate(empty, tick(4, 0)); decision.Selected ||
		!strings.Contains(decision.Reason, "declares no cron entries") {
		t.Errorf("empty schedule: %+v", decision)
	}
}

func TestEvaluateDispatch(t *testing.T) {
	t.Parallel()

	dispatchEvent := func(actor string, inputs map[string]string) *forge.Event {
		return &forge.Event{
			Kind: forge.EventKindWorkflowDispatch,
			Dispatch: &forge.DispatchEvent{
				Repo:         "nicolargo/glances",
				WorkflowPath: ".github/workflows/ci.yml",
				Ref:          "refs/heads/develop",
				Actor:        actor,
				Inputs:       inputs,
			},
		}
	}

	declared := &workflow.Triggers{WorkflowDispatch: &workflow.Dispatch{
		Inputs: map[string]*workflow.DispatchInput{
			"reason":  {Type: workflow.InputTypeString, Required: true},
			"channel": {Type: workflow.InputTypeChoice, Options: workflow.StringList{"stable", "beta"}, Default: "stable"},
			"dry-run": {Type: workflow.InputTypeBoolean},
		},
	}}

	for _, testCase := range []struct {
		name         string
		triggers     *workflow.Triggers
		event        *forge.Event
		wantSelected bool
		wantReason   string
	}{
		{
			name:         "valid dispatch",
			triggers:     declared,
			event:        dispatchEvent("nicolargo", map[string]string{"reason": "hotfix", "channel": "beta", "dry-run": "false"}),
			wantSelected: true,
			wantReason:   "\"nicolargo\"",
		},
		{
			name:         "required input missing",
			triggers:     declared,
			event:        dispatchEvent("nicolargo", nil),
			wantSelected: false,
			wantReason:   "required input \"reason\" was not provided",
		},
		{
			name:         "undeclared input",
			triggers:     declared,
			event:        dispatchEvent("nicolargo", map[string]string{"reason": "x", "verbose": "yes"}),
			wantSelected: false,
			wantReason:   "input \"verbose\" is not declared",
		},
		{
			name:         "choice outside options",
			triggers:     declared,
			event:        dispatchEvent("nicolargo", map[string]string{"reason": "x", "channel": "nightly"}),
			wantSelected: false,
			wantReason:   "not one of the declared options",
		},
		{
			name:         "malformed boolean",
			triggers:     declared,
			event:        dispatchEvent("nicolargo", map[string]string{"reason": "x", "dry-run": "maybe"}),
			wantSelected: false,
			wantReason:   "must be \"true\" or \"false\"",
		},
		{
			name: "required input satisfied by default",
			triggers: &workflow.Triggers{WorkflowDispatch: &workflow.Dispatch{
				Inputs: map[string]*workflow.DispatchInput{
					"channel": {Required: true, Default: "stable"},
				},
			}},
			event:        dispatchEvent("", nil),
			wantSelected: true,
			wantReason:   "manual dispatch matches",
		},
		{
			name:         "no workflow_dispatch trigger",
			triggers:     &workflow.Triggers{Push: &workflow.PushFilter{}},
			event:        dispatchEvent("nicolargo", nil),
			wantSelected: false,
			wantReason:   "does not declare a workflow_dispatch trigger",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			decision := Evaluate(testCase.triggers, testCase.event)
			if decision.Selected != testCase.wantSelected {
				t.Errorf("Selected = %v, want %v (reason: %s)",
					decision.Selected, testCase.wantSelected, decision.Reason)
			}
			if !strings.Contains(decision.Reason, testCase.wantReason) {
				t.Errorf("Reason = %q, want containing %q", decision.Reason, testCase.wantReason)
			}
		})
	}
}

func TestEvaluateObservationEvents(t *testing.T) {
	t.Parallel()

	run := &forge.Event{
		Kind: forge.EventKindWorkflowRun,
		Run: &forge.RunEvent{
			Repo:   "nicolargo/glances",
			RunID:  63361,
			Status: string(forge.RunStatusCompleted),
		},
	}
	decision := Evaluate(releaseTriggers(), run)
	if decision.Selected || !strings.Contains(decision.Reason, "do not select workflows") {
		t.Errorf("workflow_run evaluation = %+v, want rejection", decision)
	}

	invalid := &forge.Event{Kind: forge.EventKindPush}
	decision = Evaluate(releaseTriggers(), invalid)
	if decision.Selected || !strings.Contains(decision.Reason, "invalid event") {
		t.Errorf("invalid event evaluation = %+v, want rejection", decision)
	}
}
