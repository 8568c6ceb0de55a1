// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"fmt"
	"strings"
	"time"
)

// Event kind names used in trigger declarations and stream filtering.
// Provider-specific webhook event names are translated to these kinds
// at ingestion time.
const (
	EventKindPush             = "push"
	EventKindPullRequest      = "pull_request"
	EventKindSchedule         = "schedule"
	EventKindWorkflowDispatch = "workflow_dispatch"
	EventKindWorkflowRun      = "workflow_run"
	EventKindWorkflowJob      = "workflow_job"
)

// --- Provider-agnostic event types ---
//
// Each connector translates its native webhook payloads into these
// common types. Evaluation receives the same typed structs regardless
// of which forge hosts the repository.

// Commit represents a single commit in a push event.
type Commit struct {
	SHA       string   `json:"sha"`
	Message   string   `json:"message"`
	Author    string   `json:"author"`    // "Name <email>"
	Timestamp string   `json:"timestamp"` // RFC3339
	Added     []string `json:"added,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// PushEvent represents a push to a repository branch or tag.
type PushEvent struct {
	Repo          string   `json:"repo"`   // "owner/repo"
	Ref           string   `json:"ref"`    // "refs/heads/master" or "refs/tags/v1.2"
	Before        string   `json:"before"` // previous HEAD SHA
	After         string   `json:"after"`  // new HEAD SHA
	Created       bool     `json:"created"`
	Deleted       bool     `json:"deleted"`
	Forced        bool     `json:"forced"`
	Commits       []Commit `json:"commits,omitempty"`
	Sender        string   `json:"sender"` // forge username
	DefaultBranch string   `json:"default_branch,omitempty"`
}

// PullRequestAction enumerates the common actions on a pull request.
// Connectors translate provider-specific action strings to these
// values.
type PullRequestAction string

const (
	PullRequestOpened         PullRequestAction = "opened"
	PullRequestClosed         PullRequestAction = "closed"
	PullRequestSynchronize    PullRequestAction = "synchronize"
	PullRequestReopened       PullRequestAction = "reopened"
	PullRequestEdited         PullRequestAction = "edited"
	PullRequestReadyForReview PullRequestAction = "ready_for_review"
	PullRequestLabeled        PullRequestAction = "labeled"
	PullRequestUnlabeled      PullRequestAction = "unlabeled"
)

// PullRequestEvent represents a change to a pull request.
type PullRequestEvent struct {
	Repo          string `json:"repo"`
	Number        int    `json:"number"`
	Action        string `json:"action"` // see PullRequestAction constants
	Title         string `json:"title"`
	Author        string `json:"author"`   // forge username
	HeadRef       string `json:"head_ref"` // source branch name
	BaseRef       string `json:"base_ref"` // target branch name
	HeadSHA       string `json:"head_sha"`
	Draft         bool   `json:"draft"`
	Merged        bool   `json:"merged"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// ScheduleEvent represents a cron tick. The platform fires these
// against the repository's default branch; there is no sender.
type ScheduleEvent struct {
	Repo          string    `json:"repo"`
	Time          time.Time `json:"time"` // tick time, minute resolution, UTC
	DefaultBranch string    `json:"default_branch,omitempty"`
}

// DispatchEvent represents a manual workflow_dispatch invocation.
type DispatchEvent struct {
	Repo          string            `json:"repo"`
	WorkflowPath  string            `json:"workflow_path"` // ".github/workflows/ci.yml"
	Ref           string            `json:"ref"`           // full ref the dispatch targets
	Inputs        map[string]string `json:"inputs,omitempty"`
	Actor         string            `json:"actor"`
	DefaultBranch string            `json:"default_branch,omitempty"`
}

// RunStatus enumerates the common workflow/job run statuses.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

// Conclusion enumerates the common terminal run conclusions.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionSkipped   Conclusion = "skipped"
	ConclusionTimedOut  Conclusion = "timed_out"
)

// RunEvent represents a workflow run status change (the whole run, not
// an individual job).
type RunEvent struct {
	Repo         string    `json:"repo"`
	WorkflowPath string    `json:"workflow_path"` // workflow file path within the repo
	WorkflowName string    `json:"workflow_name"`
	RunID        int64     `json:"run_id"`
	RunAttempt   int       `json:"run_attempt"`
	Status       string    `json:"status"`     // see RunStatus constants
	Conclusion   string    `json:"conclusion"` // see Conclusion constants; empty until completed
	Event        string    `json:"event"`      // event kind that triggered the run
	HeadBranch   string    `json:"head_branch"`
	HeadSHA      string    `json:"head_sha"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// JobEvent represents a single job's status change within a workflow
// run. This is the granularity run records are kept at.
type JobEvent struct {
	Repo         string    `json:"repo"`
	WorkflowName string    `json:"workflow_name"`
	RunID        int64     `json:"run_id"`
	JobID        int64     `json:"job_id"`
	JobName      string    `json:"job_name"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	HeadBranch   string    `json:"head_branch"`
	HeadSHA      string    `json:"head_sha"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// --- Discriminated event union ---

// Event is a discriminated union of forge event types. The Kind field
// identifies which event pointer is populated. Exactly one event
// pointer is non-nil for a valid Event.
type Event struct {
	Kind        string             `json:"kind"` // matches EventKind* constants
	DeliveryID  string             `json:"delivery_id,omitempty"`
	Push        *PushEvent         `json:"push,omitempty"`
	PullRequest *PullRequestEvent  `json:"pull_request,omitempty"`
	Schedule    *ScheduleEvent     `json:"schedule,omitempty"`
	Dispatch    *DispatchEvent     `json:"workflow_dispatch,omitempty"`
	Run         *RunEvent          `json:"workflow_run,omitempty"`
	Job         *JobEvent          `json:"workflow_job,omitempty"`
}

// Repo returns the "owner/repo" string from whichever event variant is
// populated. Returns "" if the event is invalid.
func (e *Event) Repo() string {
	switch e.Kind {
	case EventKindPush:
		if e.Push != nil {
			return e.Push.Repo
		}
	case EventKindPullRequest:
		if e.PullRequest != nil {
			return e.PullRequest.Repo
		}
	case EventKindSchedule:
		if e.Schedule != nil {
			return e.Schedule.Repo
		}
	case EventKindWorkflowDispatch:
		if e.Dispatch != nil {
			return e.Dispatch.Repo
		}
	case EventKindWorkflowRun:
		if e.Run != nil {
			return e.Run.Repo
		}
	case EventKindWorkflowJob:
		if e.Job != nil {
			return e.Job.Repo
		}
	}
	return ""
}

// Validate checks that the Kind field matches the populated variant.
func (e *Event) Validate() error {
	populated := ""
	count := 0
	if e.Push != nil {
		populated, count = EventKindPush, count+1
	}
	if e.PullRequest != nil {
		populated, count = EventKindPullRequest, count+1
	}
	if e.Schedule != nil {
		populated, count = EventKindSchedule, count+1
	}
	if e.Dispatch != nil {
		populated, count = EventKindWorkflowDispatch, count+1
	}
	if e.Run != nil {
		populated, count = EventKindWorkflowRun, count+1
	}
	if e.Job != nil {
		populated, count = EventKindWorkflowJob, count+1
	}
	if count != 1 {
		return fmt.Errorf("forge event: %d variants populated, want exactly 1", count)
	}
	if populated != e.Kind {
		return fmt.Errorf("forge event: kind %q does not match populated variant %q", e.Kind, populated)
	}
	return nil
}

// --- Ref helpers ---

// Ref kind values returned by SplitRef and used in evaluation contexts.
const (
	RefTypeBranch = "branch"
	RefTypeTag    = "tag"
)

// SplitRef splits a full git ref into its short name and kind.
// "refs/heads/master" yields ("master", "branch"); "refs/tags/v1.2"
// yields ("v1.2", "tag"). Refs outside those two namespaces return the
// input unchanged with an empty kind.
func SplitRef(ref string) (name string, kind string) {
	if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return name, RefTypeBranch
	}
	if name, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
		return name, RefTypeTag
	}
	return ref, ""
}

// SplitRepo splits an "owner/repo" string into its parts. Returns an
// error if the string does not contain exactly one slash or either
// side is empty.
func SplitRepo(full string) (owner string, repo string, err error) {
	owner, repo, ok := strings.Cut(full, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: want \"owner/repo\"", full)
	}
	return owner, repo, nil
}
