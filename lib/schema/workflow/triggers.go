// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Trigger kind names as they appear under "on". These are the kinds
// Forgeplan evaluates; other declared kinds are preserved verbatim in
// Triggers.Other.
const (
	TriggerPush             = "push"
	TriggerPullRequest      = "pull_request"
	TriggerSchedule         = "schedule"
	TriggerWorkflowDispatch = "workflow_dispatch"
)

// Triggers is the workflow's "on" block. A nil filter pointer means
// the trigger kind is not declared; a non-nil pointer to a zero filter
// means it is declared with no constraints.
type Triggers struct {
	Push             *PushFilter
	PullRequest      *PullRequestFilter
	Schedule         []ScheduleEntry
	WorkflowDispatch *Dispatch

	// Other holds declared trigger kinds outside the evaluated set,
	// in declaration order. They parse cleanly but never match an
	// event during evaluation.
	Other []string
}

// Empty reports whether no trigger of any kind is declared.
func (t *Triggers) Empty() bool {
	return t.Push == nil && t.PullRequest == nil && t.Schedule == nil &&
		t.WorkflowDispatch == nil && len(t.Other) == 0
}

// Declared returns the declared trigger kind names in declaration
// order for map form, or normalized order for scalar/list form.
func (t *Triggers) Declared() []string {
	var kinds []string
	if t.Push != nil {
		kinds = append(kinds, TriggerPush)
	}
	if t.PullRequest != nil {
		kinds = append(kinds, TriggerPullRequest)
	}
	if t.Schedule != nil {
		kinds = append(kinds, TriggerSchedule)
	}
	if t.WorkflowDispatch != nil {
		kinds = append(kinds, TriggerWorkflowDispatch)
	}
	kinds = append(kinds, t.Other...)
	return kinds
}

// UnmarshalYAML implements yaml.Unmarshaler. Accepts the three "on"
// forms: a bare scalar ("on: push"), a list ("on: [push, pull_request]"),
// and a mapping with per-kind filter blocks.
func (t *Triggers) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return t.enable(value.Value, nil)
	case yaml.SequenceNode:
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: trigger list entries must be scalars", item.Line)
			}
			if err := t.enable(item.Value, nil); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i]
			val := value.Content[i+1]
			if err := t.enable(key.Value, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: \"on\" must be a scalar, list, or mapping", value.Line)
	}
}

// enable declares one trigger kind. filter is the kind's value node in
// map form, or nil for scalar/list form and explicit nulls.
func (t *Triggers) enable(kind string, filter *yaml.Node) error {
	if filter != nil && filter.Kind == yaml.ScalarNode && filter.Tag == "!!null" {
		filter = nil
	}
	switch kind {
	case TriggerPush:
		t.Push = &PushFilter{}
		if filter != nil {
			if err := filter.Decode(t.Push); err != nil {
				return fmt.Errorf("push trigger: %w", err)
			}
		}
	case TriggerPullRequest:
		t.PullRequest = &PullRequestFilter{}
		if filter != nil {
			if err := filter.Decode(t.PullRequest); err != nil {
				return fmt.Errorf("pull_request trigger: %w", err)
			}
		}
	case TriggerSchedule:
		t.Schedule = []ScheduleEntry{}
		if filter != nil {
			if err := filter.Decode(&t.Schedule); err != nil {
				return fmt.Errorf("schedule trigger: %w", err)
			}
		}
	case TriggerWorkflowDispatch:
		t.WorkflowDispatch = &Dispatch{}
		if filter != nil {
			if err := filter.Decode(t.WorkflowDispatch); err != nil {
				return fmt.Errorf("workflow_dispatch trigger: %w", err)
			}
		}
	default:
		t.Other = append(t.Other, kind)
	}
	return nil
}

// PushFilter narrows which pushes select the workflow. Branch filters
// apply to branch pushes, tag filters to tag pushes. Declaring filters
// for only one ref kind excludes the other kind entirely; declaring
// none selects every push.
type PushFilter struct {
	Branches       StringList `yaml:"branches"`
	BranchesIgnore StringList `yaml:"branches-ignore"`
	Tags           StringList `yaml:"tags"`
	TagsIgnore     StringList `yaml:"tags-ignore"`
}

// PullRequestFilter narrows which pull request events select the
// workflow. Branch filters apply to the target (base) branch.
type PullRequestFilter struct {
	Branches       StringList `yaml:"branches"`
	BranchesIgnore StringList `yaml:"branches-ignore"`
	Types          StringList `yaml:"types"`
}

// DefaultPullRequestTypes are the actions a pull_request trigger
// responds to when "types" is not declared.
var DefaultPullRequestTypes = []string{"opened", "synchronize", "reopened"}

// EffectiveTypes returns the declared types, or the platform default
// set when none are declared.
func (f *PullRequestFilter) EffectiveTypes() []string {
	if len(f.Types) > 0 {
		return f.Types
	}
	return DefaultPullRequestTypes
}

// ScheduleEntry is one cron line under "schedule".
type ScheduleEntry struct {
	Cron string `yaml:"cron"`
}

// Dispatch declares the workflow_dispatch trigger and its typed inputs.
type Dispatch struct {
	Inputs map[string]*DispatchInput `yaml:"inputs"`
}

// Dispatch input types. "environment" behaves like string for
// evaluation purposes.
const (
	InputTypeString      = "string"
	InputTypeBoolean     = "boolean"
	InputTypeChoice      = "choice"
	InputTypeNumber      = "number"
	InputTypeEnvironment = "environment"
)

// DispatchInput declares one workflow_dispatch input.
type DispatchInput struct {
	Description string     `yaml:"description"`
	Required    bool       `yaml:"required"`
	Default     FlexString `yaml:"default"`
	Type        string     `yaml:"type"`
	Options     StringList `yaml:"options"`
}
