// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import "strconv"

// Context is the flattened view of an event that gate expressions and
// plan rendering evaluate against. Field names mirror the properties
// workflow authors reference: event_name, ref, base_ref, and so on.
type Context struct {
	// EventName is the triggering event kind ("push", "pull_request",
	// "schedule", "workflow_dispatch").
	EventName string `json:"event_name"`

	// Action is the event sub-action where one exists (pull request
	// "opened", "synchronize", ...). Empty for push and schedule.
	Action string `json:"action,omitempty"`

	// Ref is the full git ref the event concerns
	// ("refs/heads/master", "refs/tags/v1.2"). For pull requests this
	// is the merge ref target form "refs/pull/<n>/merge".
	Ref string `json:"ref,omitempty"`

	// RefName is the short ref name ("master", "v1.2"). For pull
	// requests it is "<n>/merge".
	RefName string `json:"ref_name,omitempty"`

	// RefType is "branch" or "tag" for push events, empty otherwise.
	RefType string `json:"ref_type,omitempty"`

	// BaseRef is the pull request target branch name. Empty for
	// non-PR events.
	BaseRef string `json:"base_ref,omitempty"`

	// HeadRef is the pull request source branch name. Empty for
	// non-PR events.
	HeadRef string `json:"head_ref,omitempty"`

	// SHA is the commit the event points at.
	SHA string `json:"sha,omitempty"`

	// Actor is the forge username that caused the event. Empty for
	// schedule ticks.
	Actor string `json:"actor,omitempty"`

	// Repository is the "owner/repo" string.
	Repository string `json:"repository,omitempty"`

	// DefaultBranch is the repository default branch name, when the
	// payload carried it.
	DefaultBranch string `json:"default_branch,omitempty"`

	// Inputs holds workflow_dispatch input values keyed by input name.
	Inputs map[string]string `json:"inputs,omitempty"`
}

// Context flattens the event into the property set gate expressions
// evaluate against. Returns the zero Context for run/job status events,
// which never trigger workflows.
func (e *Event) Context() Context {
	switch e.Kind {
	case EventKindPush:
		if e.Push == nil {
			return Context{}
		}
		refName, refType := SplitRef(e.Push.Ref)
		return Context{
			EventName:     EventKindPush,
			Ref:           e.Push.Ref,
			RefName:       refName,
			RefType:       refType,
			SHA:           e.Push.After,
			Actor:         e.Push.Sender,
			Repository:    e.Push.Repo,
			DefaultBranch: e.Push.DefaultBranch,
		}
	case EventKindPullRequest:
		if e.PullRequest == nil {
			return Context{}
		}
		pr := e.PullRequest
		mergeRefName := strconv.Itoa(pr.Number) + "/merge"
		return Context{
			EventName:     EventKindPullRequest,
			Action:        pr.Action,
			Ref:           "refs/pull/" + mergeRefName,
			RefName:       mergeRefName,
			BaseRef:       pr.BaseRef,
			HeadRef:       pr.HeadRef,
			SHA:           pr.HeadSHA,
			Actor:         pr.Author,
			Repository:    pr.Repo,
			DefaultBranch: pr.DefaultBranch,
		}
	case EventKindSchedule:
		if e.Schedule == nil {
			return Context{}
		}
		branch := e.Schedule.DefaultBranch
		ctx := Context{
			EventName:     EventKindSchedule,
			Repository:    e.Schedule.Repo,
			DefaultBranch: branch,
		}
		if branch != "" {
			ctx.Ref = "refs/heads/" + branch
			ctx.RefName = branch
			ctx.RefType = RefTypeBranch
		}
		return ctx
	case EventKindWorkflowDispatch:
		if e.Dispatch == nil {
			return Context{}
		}
		d := e.Dispatch
		refName, refType := SplitRef(d.Ref)
		return Context{
			EventName:     EventKindWorkflowDispatch,
			Ref:           d.Ref,
			RefName:       refName,
			RefType:       refType,
			Actor:         d.Actor,
			Repository:    d.Repo,
			DefaultBranch: d.DefaultBranch,
			Inputs:        d.Inputs,
		}
	}
	return Context{}
}
