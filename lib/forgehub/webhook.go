// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package forgehub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v80/github"

	"github.com/forgeplan/forgeplan/lib/schema/forge"
)

// ValidatePayload verifies the X-Hub-Signature-256 header against the
// shared webhook secret and returns the raw payload bytes. The body is
// consumed either way.
func ValidatePayload(request *http.Request, secret []byte) ([]byte, error) {
	payload, err := github.ValidatePayload(request, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature: %w", err)
	}
	return payload, nil
}

// WebhookInfo extracts the event type and delivery ID headers from a
// webhook request.
func WebhookInfo(request *http.Request) (eventType, deliveryID string) {
	return github.WebHookType(request), github.DeliveryID(request)
}

// Translate converts a raw webhook payload into the provider-agnostic
// event model. Event types with no forge equivalent (ping, star,
// installation, anything GitHub adds later) return (nil, nil) so the
// caller can acknowledge them without treating them as errors.
func Translate(eventType string, payload []byte) (*forge.Event, error) {
	parsed, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", eventType, err)
	}
	switch event := parsed.(type) {
	case *github.PushEvent:
		return translatePush(event), nil
	case *github.PullRequestEvent:
		return translatePullRequest(event), nil
	case *github.WorkflowDispatchEvent:
		return translateDispatch(event), nil
	case *github.WorkflowRunEvent:
		return translateRun(event), nil
	case *github.WorkflowJobEvent:
		return translateJob(event), nil
	default:
		return nil, nil
	}
}

func translatePush(event *github.PushEvent) *forge.Event {
	commits := make([]forge.Commit, len(event.Commits))
	for i, commit := range event.Commits {
		commits[i] = forge.Commit{
			SHA:       commit.GetID(),
			Message:   commit.GetMessage(),
			Author:    commit.GetAuthor().GetName() + " <" + commit.GetAuthor().GetEmail() + ">",
			Timestamp: commit.GetTimestamp().Format(time.RFC3339),
			Added:     commit.Added,
			Modified:  commit.Modified,
			Removed:   commit.Removed,
		}
	}
	return &forge.Event{
		Kind: forge.EventKindPush,
		Push: &forge.PushEvent{
			Repo:          event.GetRepo().GetFullName(),
			Ref:           event.GetRef(),
			Before:        event.GetBefore(),
			After:         event.GetAfter(),
			Created:       event.GetCreated(),
			Deleted:       event.GetDeleted(),
			Forced:        event.GetForced(),
			Commits:       commits,
			Sender:        event.GetSender().GetLogin(),
			DefaultBranch: event.GetRepo().GetDefaultBranch(),
		},
	}
}

func translatePullRequest(event *github.PullRequestEvent) *forge.Event {
	pr := event.GetPullRequest()
	return &forge.Event{
		Kind: forge.EventKindPullRequest,
		PullRequest: &forge.PullRequestEvent{
			Repo:          event.GetRepo().GetFullName(),
			Number:        event.GetNumber(),
			Action:        event.GetAction(),
			Title:         pr.GetTitle(),
			Author:        pr.GetUser().GetLogin(),
			HeadRef:       pr.GetHead().GetRef(),
			BaseRef:       pr.GetBase().GetRef(),
			HeadSHA:       pr.GetHead().GetSHA(),
			Draft:         pr.GetDraft(),
			Merged:        pr.GetMerged(),
			DefaultBranch: event.GetRepo().GetDefaultBranch(),
		},
	}
}

func translateDispatch(event *github.WorkflowDispatchEvent) *forge.Event {
	// Dispatch inputs arrive as a JSON object. The platform coerces
	// every input to a string; mirror that for booleans and numbers.
	var inputs map[string]string
	var raw map[string]any
	if len(event.Inputs) > 0 && json.Unmarshal(event.Inputs, &raw) == nil && len(raw) > 0 {
		inputs = make(map[string]string, len(raw))
		for name, value := range raw {
			inputs[name] = fmt.Sprint(value)
		}
	}
	return &forge.Event{
		Kind: forge.EventKindWorkflowDispatch,
		Dispatch: &forge.DispatchEvent{
			Repo:          event.GetRepo().GetFullName(),
			WorkflowPath:  event.GetWorkflow(),
			Ref:           event.GetRef(),
			Inputs:        inputs,
			Actor:         event.GetSender().GetLogin(),
			DefaultBranch: event.GetRepo().GetDefaultBranch(),
		},
	}
}

func translateRun(event *github.WorkflowRunEvent) *forge.Event {
	run := event.GetWorkflowRun()
	runEvent := &forge.RunEvent{
		Repo:         event.GetRepo().GetFullName(),
		WorkflowPath: event.GetWorkflow().GetPath(),
		WorkflowName: event.GetWorkflow().GetName(),
		RunID:        run.GetID(),
		RunAttempt:   run.GetRunAttempt(),
		Status:       run.GetStatus(),
		Conclusion:   run.GetConclusion(),
		Event:        run.GetEvent(),
		HeadBranch:   run.GetHeadBranch(),
		HeadSHA:      run.GetHeadSHA(),
		StartedAt:    run.GetRunStartedAt().Time,
	}
	// GitHub reports no completion timestamp for runs; once the run
	// completes, updated_at is it.
	if run.GetStatus() == string(forge.RunStatusCompleted) {
		runEvent.CompletedAt = run.GetUpdatedAt().Time
	}
	return &forge.Event{Kind: forge.EventKindWorkflowRun, Run: runEvent}
}

func translateJob(event *github.WorkflowJobEvent) *forge.Event {
	job := event.GetWorkflowJob()
	return &forge.Event{
		Kind: forge.EventKindWorkflowJob,
		Job: &forge.JobEvent{
			Repo:         event.GetRepo().GetFullName(),
			WorkflowName: job.GetWorkflowName(),
			RunID:        job.GetRunID(),
			JobID:        job.GetID(),
			JobName:      job.GetName(),
			Status:       job.GetStatus(),
			Conclusion:   job.GetConclusion(),
			HeadBranch:   job.GetHeadBranch(),
			HeadSHA:      job.GetHeadSHA(),
			StartedAt:    job.GetStartedAt().Time,
			CompletedAt:  job.GetCompletedAt().Time,
		},
	}
}
