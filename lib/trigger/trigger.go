// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger decides whether a forge event selects a workflow.
//
// Selection is a pure function of the workflow's "on" block and the
// typed event: no repository state is consulted. Every outcome carries
// a reason string so tooling can explain why a workflow did or did not
// start, which is most of the value when debugging trigger filters.
package trigger

import (
	"fmt"
	"maps"
	"slices"

	"github.com/forgeplan/forgeplan/lib/cronspec"
	"github.com/forgeplan/forgeplan/lib/pattern"
	"github.com/forgeplan/forgeplan/lib/schema/forge"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
)

// Decision is the outcome of evaluating one event against one
// workflow's triggers.
type Decision struct {
	// Selected reports whether the event starts the workflow.
	Selected bool

	// Reason explains the outcome in one human-readable sentence.
	Reason string
}

func selected(format string, args ...any) Decision {
	return Decision{Selected: true, Reason: fmt.Sprintf(format, args...)}
}

func rejected(format string, args ...any) Decision {
	return Decision{Selected: false, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate decides whether the event selects a workflow with the given
// trigger declarations.
//
// workflow_run and workflow_job events never select workflows: they
// are observations of runs already in flight, consumed by run-record
// keeping, not by scheduling.
func Evaluate(triggers *workflow.Triggers, event *forge.Event) Decision {
	if err := event.Validate(); err != nil {
		return rejected("invalid event: %v", err)
	}

	switch event.Kind {
	case forge.EventKindPush:
		return evaluatePush(triggers.Push, event.Push)
	case forge.EventKindPullRequest:
		return evaluatePullRequest(triggers.PullRequest, event.PullRequest)
	case forge.EventKindSchedule:
		return evaluateSchedule(triggers.Schedule, event.Schedule)
	case forge.EventKindWorkflowDispatch:
		return evaluateDispatch(triggers.WorkflowDispatch, event.Dispatch)
	default:
		return rejected("%s events do not select workflows", event.Kind)
	}
}

// evaluatePush applies the push trigger's ref filters.
//
// Branch filters apply only to branch pushes and tag filters only to
// tag pushes. Declaring filters for one ref kind and none for the
// other excludes the other kind entirely: "tags: [v*]" alone means
// branch pushes never select the workflow. A push trigger with no
// filters selects every push.
func evaluatePush(filter *workflow.PushFilter, push *forge.PushEvent) Decision {
	if filter == nil {
		return rejected("workflow does not declare a push trigger")
	}
	if push.Deleted {
		return rejected("deletion of %q does not start push workflows", push.Ref)
	}

	name, kind := forge.SplitRef(push.Ref)
	if kind == "" {
		return rejected("pushed ref %q is neither a branch nor a tag", push.Ref)
	}

	hasBranchFilters := len(filter.Branches) > 0 || len(filter.BranchesIgnore) > 0
	hasTagFilters := len(filter.Tags) > 0 || len(filter.TagsIgnore) > 0

	if kind == forge.RefTypeBranch {
		if !hasBranchFilters && hasTagFilters {
			return rejected("push trigger filters tags only; branch push %q is excluded", name)
		}
		return matchRef(filter.Branches, filter.BranchesIgnore, "branch", "branches", name)
	}

	if !hasTagFilters && hasBranchFilters {
		return rejected("push trigger filters branches only; tag push %q is excluded", name)
	}
	return matchRef(filter.Tags, filter.TagsIgnore, "tag", "tags", name)
}

// matchRef applies an include or an ignore list (validation rejects
// declaring both) to a short ref name. kind and field name the ref and
// filter in reasons.
func matchRef(include, ignore workflow.StringList, kind, field string, name string) Decision {
	if len(include) > 0 {
		list, err := pattern.CompileList(include)
		if err != nil {
			return rejected("invalid %s filter: %v", field, err)
		}
		if !list.Match(name) {
			return rejected("%s %q matches no %s pattern", kind, name, field)
		}
		return selected("%s %q matches the %s filter", kind, name, field)
	}
	if len(ignore) > 0 {
		list, err := pattern.CompileList(ignore)
		if err != nil {
			return rejected("invalid %s-ignore filter: %v", field, err)
		}
		if list.Match(name) {
			return rejected("%s %q is excluded by %s-ignore", kind, name, field)
		}
		return selected("%s %q passes the %s-ignore filter", kind, name, field)
	}
	return selected("push trigger declares no %s filter; %s %q selects the workflow", field, kind, name)
}

// evaluatePullRequest applies the pull_request trigger's activity-type
// and base-branch filters. Branch patterns match the target (base)
// branch, not the source: a workflow filtered to "develop" runs for
// any pull request into develop regardless of where the change came
// from.
func evaluatePullRequest(filter *workflow.PullRequestFilter, pr *forge.PullRequestEvent) Decision {
	if filter == nil {
		return rejected("workflow does not declare a pull_request trigger")
	}

	types := filter.EffectiveTypes()
	if !slices.Contains(types, pr.Action) {
		return rejected("activity type %q is not among the trigger's types %v", pr.Action, types)
	}

	if len(filter.Branches) > 0 {
		list, err := pattern.CompileList(filter.Branches)
		if err != nil {
			return rejected("invalid branches filter: %v", err)
		}
		if !list.Match(pr.BaseRef) {
			return rejected("base branch %q matches no branches pattern", pr.BaseRef)
		}
	} else if len(filter.BranchesIgnore) > 0 {
		list, err := pattern.CompileList(filter.BranchesIgnore)
		if err != nil {
			return rejected("invalid branches-ignore filter: %v", err)
		}
		if list.Match(pr.BaseRef) {
			return rejected("base branch %q is excluded by branches-ignore", pr.BaseRef)
		}
	}

	return selected("pull request %s targeting %q matches the pull_request trigger", pr.Action, pr.BaseRef)
}

// evaluateSchedule matches the tick time against each declared cron
// entry in order. The tick is minute-resolution UTC; seconds are
// ignored.
func evaluateSchedule(entries []workflow.ScheduleEntry, tick *forge.ScheduleEvent) Decision {
	if entries == nil {
		return rejected("workflow does not declare a schedule trigger")
	}
	if len(entries) == 0 {
		return rejected("schedule trigger declares no cron entries")
	}

	for _, entry := range entries {
		schedule, err := cronspec.Parse(entry.Cron)
		if err != nil {
			// Validation reports the broken entry; evaluation just
			// moves on to the next one.
			continue
		}
		if schedule.Matches(tick.Time) {
			return selected("tick at %s matches cron %q",
				tick.Time.UTC().Format("2006-01-02 15:04"), entry.Cron)
		}
	}
	return rejected("tick at %s matches no cron entry",
		tick.Time.UTC().Format("2006-01-02 15:04"))
}

// evaluateDispatch checks a manual invocation against the declared
// inputs: no undeclared inputs, all required inputs present (a
// declared default satisfies a required input), and typed inputs
// well-formed. The platform rejects a bad dispatch outright rather
// than starting a run with garbage inputs, and evaluation mirrors
// that.
func evaluateDispatch(dispatch *workflow.Dispatch, event *forge.DispatchEvent) Decision {
	if dispatch == nil {
		return rejected("workflow does not declare a workflow_dispatch trigger")
	}

	provided := slices.Sorted(maps.Keys(event.Inputs))
	for _, name := range provided {
		if _, declared := dispatch.Inputs[name]; !declared {
			return rejected("input %q is not declared by the workflow_dispatch trigger", name)
		}
	}

	declared := slices.Sorted(maps.Keys(dispatch.Inputs))
	for _, name := range declared {
		input := dispatch.Inputs[name]
		if input == nil {
			continue
		}
		value, present := event.Inputs[name]
		if !present {
			if input.Required && input.Default == "" {
				return rejected("required input %q was not provided", name)
			}
			continue
		}
		switch input.Type {
		case workflow.InputTypeBoolean:
			if value != "true" && value != "false" {
				return rejected("input %q must be \"true\" or \"false\", got %q", name, value)
			}
		case workflow.InputTypeChoice:
			if !slices.Contains(input.Options, value) {
				return rejected("input %q value %q is not one of the declared options", name, value)
			}
		}
	}

	if event.Actor != "" {
		return selected("manual dispatch by %q matches the workflow_dispatch trigger", event.Actor)
	}
	return selected("manual dispatch matches the workflow_dispatch trigger")
}
