// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/forgeplan/forgeplan/lib/schema/forge"
)

// EventParams are the flags plan and graph share to describe the
// hypothetical forge event a workflow is evaluated against. One --ref
// flag covers every kind: the pushed ref for push and dispatch
// events, the base branch for pull requests, and the default branch
// for schedule ticks. Exported so that embedding param structs can
// bind it through cli.BindFlags, which cannot reach through
// unexported embedded fields.
type EventParams struct {
	Event  string   `flag:"event"  desc:"event kind: push, pull_request, schedule, workflow_dispatch" default:"push"`
	Ref    string   `flag:"ref"    desc:"target git ref; bare names mean refs/heads/<name>"           default:"refs/heads/master"`
	Repo   string   `flag:"repo"   desc:"repository as owner/repo"`
	Action string   `flag:"action" desc:"pull request action"                                         default:"opened"`
	Inputs []string `flag:"input"  desc:"workflow_dispatch input as name=value (repeatable)"`
}

// fullRef expands a bare branch name to its refs/heads/ form. Refs
// already carrying a refs/ prefix pass through, so tags stay tags.
func fullRef(ref string) string {
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/heads/" + ref
}

// build constructs the forge event the flags describe.
func (p *EventParams) build() (*forge.Event, error) {
	switch p.Event {
	case forge.EventKindPush:
		return &forge.Event{
			Kind: forge.EventKindPush,
			Push: &forge.PushEvent{
				Repo: p.Repo,
				Ref:  fullRef(p.Ref),
			},
		}, nil

	case forge.EventKindPullRequest:
		name, kind := forge.SplitRef(fullRef(p.Ref))
		if kind == forge.RefTypeTag {
			return nil, fmt.Errorf("pull request events target branches, not tags: %s", p.Ref)
		}
		return &forge.Event{
			Kind: forge.EventKindPullRequest,
			PullRequest: &forge.PullRequestEvent{
				Repo:    p.Repo,
				Number:  1,
				Action:  p.Action,
				BaseRef: name,
			},
		}, nil

	case forge.EventKindSchedule:
		name, _ := forge.SplitRef(fullRef(p.Ref))
		return &forge.Event{
			Kind: forge.EventKindSchedule,
			Schedule: &forge.ScheduleEvent{
				Repo:          p.Repo,
				Time:          time.Now().UTC().Truncate(time.Minute),
				DefaultBranch: name,
			},
		}, nil

	case forge.EventKindWorkflowDispatch:
		inputs, err := parseInputs(p.Inputs)
		if err != nil {
			return nil, err
		}
		return &forge.Event{
			Kind: forge.EventKindWorkflowDispatch,
			Dispatch: &forge.DispatchEvent{
				Repo:   p.Repo,
				Ref:    fullRef(p.Ref),
				Inputs: inputs,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown event kind %q (want push, pull_request, schedule, or workflow_dispatch)", p.Event)
	}
}

// parseInputs turns repeated --input name=value flags into the
// dispatch input map.
func parseInputs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --input %q: want name=value", pair)
		}
		inputs[name] = value
	}
	return inputs, nil
}
