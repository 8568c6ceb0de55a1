// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"fmt"
	"time"

	"github.com/forgeplan/forgeplan/lib/schema/forge"
)

// Record is one completed workflow run or job. Job-level records carry
// the job name; whole-run records leave it empty.
type Record struct {
	Repo        string    `json:"repo" cbor:"repo"`
	Workflow    string    `json:"workflow" cbor:"workflow"`
	Job         string    `json:"job,omitempty" cbor:"job,omitempty"`
	RunID       int64     `json:"run_id" cbor:"run_id"`
	Attempt     int       `json:"attempt,omitempty" cbor:"attempt,omitempty"`
	Event       string    `json:"event,omitempty" cbor:"event,omitempty"`
	Conclusion  string    `json:"conclusion" cbor:"conclusion"`
	HeadBranch  string    `json:"head_branch,omitempty" cbor:"head_branch,omitempty"`
	HeadSHA     string    `json:"head_sha,omitempty" cbor:"head_sha,omitempty"`
	StartedAt   time.Time `json:"started_at" cbor:"started_at"`
	CompletedAt time.Time `json:"completed_at" cbor:"completed_at"`
	// Seconds is the wall-clock duration, zero when the forge did not
	// report both timestamps.
	Seconds float64 `json:"seconds" cbor:"seconds"`
}

// Key identifies the series a record belongs to: the workflow for
// whole-run records, "workflow/job" for job records.
func (r *Record) Key() string {
	if r.Job == "" {
		return r.Workflow
	}
	return r.Workflow + "/" + r.Job
}

// Failed reports whether the conclusion counts as a failure for streak
// tracking. Timed-out runs count; cancelled and skipped ones do not.
func (r *Record) Failed() bool {
	return r.Conclusion == string(forge.ConclusionFailure) ||
		r.Conclusion == string(forge.ConclusionTimedOut)
}

// FromEvent derives a record from a forge event. Only completed
// workflow_run and workflow_job events produce records; everything
// else returns ok=false.
func FromEvent(event *forge.Event) (*Record, bool) {
	switch event.Kind {
	case forge.EventKindWorkflowRun:
		run := event.Run
		if run == nil || run.Status != string(forge.RunStatusCompleted) || run.Conclusion == "" {
			return nil, false
		}
		workflow := run.WorkflowName
		if workflow == "" {
			workflow = run.WorkflowPath
		}
		return &Record{
			Repo:        run.Repo,
			Workflow:    workflow,
			RunID:       run.RunID,
			Attempt:     run.RunAttempt,
			Event:       run.Event,
			Conclusion:  run.Conclusion,
			HeadBranch:  run.HeadBranch,
			HeadSHA:     run.HeadSHA,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
			Seconds:     durationSeconds(run.StartedAt, run.CompletedAt),
		}, true

	case forge.EventKindWorkflowJob:
		job := event.Job
		if job == nil || job.Status != string(forge.RunStatusCompleted) || job.Conclusion == "" {
			return nil, false
		}
		return &Record{
			Repo:        job.Repo,
			Workflow:    job.WorkflowName,
			Job:         job.JobName,
			RunID:       job.RunID,
			Conclusion:  job.Conclusion,
			HeadBranch:  job.HeadBranch,
			HeadSHA:     job.HeadSHA,
			StartedAt:   job.StartedAt,
			CompletedAt: job.CompletedAt,
			Seconds:     durationSeconds(job.StartedAt, job.CompletedAt),
		}, true
	}
	return nil, false
}

func durationSeconds(started, completed time.Time) float64 {
	if started.IsZero() || completed.IsZero() || completed.Before(started) {
		return 0
	}
	return completed.Sub(started).Seconds()
}

// Validate reports structural problems with a record before it is
// stored.
func (r *Record) Validate() error {
	if r.Workflow == "" {
		return fmt.Errorf("record has no workflow")
	}
	if r.Conclusion == "" {
		return fmt.Errorf("record has no conclusion")
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("record has no completion time")
	}
	return nil
}
