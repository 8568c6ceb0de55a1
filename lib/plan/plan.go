// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan turns a workflow definition plus a triggering event into
// an execution plan: jobs grouped into dependency stages, gate
// conditions decided, skips propagated, and secret mappings resolved to
// fingerprints.
//
// A plan is a static prediction, not an execution. Gates are evaluated
// eagerly under the assumption that every needed job succeeds, which is
// the only assumption available before anything runs: success() is
// true, failure() and cancelled() are false, and always() is true.
// Divergence between plan and reality (a job failing at runtime) is the
// runtime's concern, observed later through run records.
package plan

import (
	"fmt"
	"strings"

	"github.com/forgeplan/forgeplan/lib/expr"
	"github.com/forgeplan/forgeplan/lib/schema/forge"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
	"github.com/forgeplan/forgeplan/lib/trigger"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// Disposition is the planned outcome for one job.
type Disposition string

const (
	// DispositionRun means the job starts once its needs complete.
	DispositionRun Disposition = "run"

	// DispositionSkip means the job never starts: its gate evaluated
	// to false, or a needed job was itself skipped.
	DispositionSkip Disposition = "skip"
)

// Plan is the execution plan for one workflow and one event.
type Plan struct {
	// Workflow is the workflow's display name.
	Workflow string `json:"workflow,omitempty"`

	// Fingerprint is the workflow definition's content digest, when
	// the caller supplied one via Options. Build cannot compute it
	// itself: the digest covers the raw file bytes, which Build never
	// sees.
	Fingerprint string `json:"fingerprint,omitempty"`

	// EventKind is the kind of the evaluated event.
	EventKind string `json:"event"`

	// Repo is the "owner/repo" the event targets.
	Repo string `json:"repo,omitempty"`

	// Ref is the full git ref the event concerns, when it carries
	// one.
	Ref string `json:"ref,omitempty"`

	// Selected reports whether the event selects the workflow at all.
	// When false, Stages and Jobs are empty and Reason explains why.
	Selected bool `json:"selected"`

	// Reason is the trigger evaluation's explanation.
	Reason string `json:"reason"`

	// Stages are the dependency levels in execution order. Every job
	// appears in exactly one stage, skipped jobs included.
	Stages []Stage `json:"stages,omitempty"`

	// Jobs holds the planned jobs in declaration order.
	Jobs []*PlannedJob `json:"jobs,omitempty"`

	jobsByID map[string]*PlannedJob
}

// Job returns the planned job with the given ID, or nil.
func (p *Plan) Job(id string) *PlannedJob {
	return p.jobsByID[id]
}

// Stage is one dependency level: every job in stage N needs only jobs
// in stages below N, so jobs within a stage could start concurrently.
type Stage struct {
	Number int      `json:"number"`
	JobIDs []string `json:"jobs"`
}

// PlannedJob is one job's planned outcome.
type PlannedJob struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Uses  string   `json:"uses,omitempty"`
	Needs []string `json:"needs,omitempty"`
	Stage int      `json:"stage"`

	Disposition Disposition `json:"disposition"`

	// Reason explains a skip, or a gated run. Empty for ungated runs.
	Reason string `json:"reason,omitempty"`

	// SecretsInherited is true for reusable jobs declaring
	// "secrets: inherit".
	SecretsInherited bool `json:"secrets_inherited,omitempty"`

	// Secrets are the job's resolved secret mappings. Populated only
	// for jobs that will run; skipped jobs never resolve secrets.
	Secrets []ResolvedSecret `json:"secrets,omitempty"`
}

// Options adjusts plan construction.
type Options struct {
	// Name overrides the workflow display name (normally derived from
	// the file path when the definition has no "name" key).
	Name string

	// Secrets resolves secret names during planning. Nil leaves every
	// mapping unresolved.
	Secrets SecretResolver

	// Fingerprint is the workflow definition's content digest,
	// recorded on the plan verbatim. See
	// [workflowdef.ComputeFingerprint].
	Fingerprint string
}

// Build constructs the plan for one workflow definition and one event.
// The definition must be valid; Build rejects definitions with
// validation issues rather than planning around them.
func Build(def *workflow.Workflow, event *forge.Event, opts Options) (*Plan, error) {
	if issues := workflowdef.Validate(def); len(issues) > 0 {
		return nil, fmt.Errorf("workflow has %d validation issue(s): %s",
			len(issues), strings.Join(issues, "; "))
	}

	name := opts.Name
	if name == "" {
		name = def.Name
	}

	decision := trigger.Evaluate(&def.On, event)
	p := &Plan{
		Workflow:    name,
		Fingerprint: opts.Fingerprint,
		EventKind:   event.Kind,
		Repo:        event.Repo(),
		Ref:         event.Context().Ref,
		Selected:    decision.Selected,
		Reason:      decision.Reason,
		jobsByID:    make(map[string]*PlannedJob, def.Jobs.Len()),
	}
	if !decision.Selected {
		return p, nil
	}

	stageOf := stageJobs(def)
	byStage := make([][]string, highestStage(stageOf)+1)
	for _, id := range def.Jobs.Order() {
		byStage[stageOf[id]] = append(byStage[stageOf[id]], id)
	}

	github, inputs := contextProperties(event)

	for number, ids := range byStage {
		p.Stages = append(p.Stages, Stage{Number: number, JobIDs: ids})
		for _, id := range ids {
			job := def.Jobs.Get(id)
			planned := &PlannedJob{
				ID:    id,
				Name:  job.DisplayName(),
				Uses:  job.Uses,
				Needs: []string(job.Needs),
				Stage: number,
			}
			if err := p.decide(planned, job, github, inputs); err != nil {
				return nil, err
			}
			if planned.Disposition == DispositionRun {
				planned.SecretsInherited, planned.Secrets = ResolveJobSecrets(job, opts.Secrets)
			}
			p.Jobs = append(p.Jobs, planned)
			p.jobsByID[id] = planned
		}
	}

	return p, nil
}

// decide sets the job's disposition. Needs are already decided: stages
// are processed bottom-up, and every need sits in a lower stage.
func (p *Plan) decide(planned *PlannedJob, job *workflow.Job, github, inputs map[string]any) error {
	var gate *expr.Expr
	if strings.TrimSpace(job.If) != "" {
		parsed, err := expr.ParseGate(job.If)
		if err != nil {
			return fmt.Errorf("jobs[%q]: parsing condition: %w", job.ID, err)
		}
		gate = parsed
	}

	var skippedNeeds []string
	for _, need := range job.Needs {
		if p.jobsByID[need].Disposition == DispositionSkip {
			skippedNeeds = append(skippedNeeds, need)
		}
	}

	// A skipped need propagates the skip unless the gate calls
	// always(), which is the author's explicit request to run
	// regardless of what happened upstream.
	if len(skippedNeeds) > 0 && (gate == nil || !gate.Calls("always")) {
		planned.Disposition = DispositionSkip
		planned.Reason = skippedNeedsReason(skippedNeeds)
		return nil
	}

	if gate == nil {
		planned.Disposition = DispositionRun
		return nil
	}

	scope := &expr.Scope{
		Properties: map[string]any{
			"github": github,
			"inputs": inputs,
			"needs":  needsProperties(p, job.Needs),
		},
		Success: true,
	}
	ok, err := gate.EvaluateBool(scope)
	if err != nil {
		return fmt.Errorf("jobs[%q]: evaluating condition: %w", job.ID, err)
	}
	if !ok {
		planned.Disposition = DispositionSkip
		planned.Reason = fmt.Sprintf("condition %q evaluated to false", strings.TrimSpace(job.If))
		return nil
	}
	planned.Disposition = DispositionRun
	planned.Reason = fmt.Sprintf("condition %q evaluated to true", strings.TrimSpace(job.If))
	return nil
}

func skippedNeedsReason(skipped []string) string {
	if len(skipped) == 1 {
		return fmt.Sprintf("needed job %q was skipped", skipped[0])
	}
	quoted := make([]string, len(skipped))
	for i, id := range skipped {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("needed jobs %s were skipped", strings.Join(quoted, ", "))
}

// stageJobs assigns each job its dependency level: jobs with no needs
// sit at stage 0, everything else one past its deepest need. The
// definition is validated before this runs, so the graph is acyclic
// and recursion terminates.
func stageJobs(def *workflow.Workflow) map[string]int {
	stageOf := make(map[string]int, def.Jobs.Len())
	var stage func(id string) int
	stage = func(id string) int {
		if s, ok := stageOf[id]; ok {
			return s
		}
		highest := -1
		for _, need := range def.Jobs.Get(id).Needs {
			if s := stage(need); s > highest {
				highest = s
			}
		}
		stageOf[id] = highest + 1
		return highest + 1
	}
	for _, id := range def.Jobs.Order() {
		stage(id)
	}
	return stageOf
}

func highestStage(stageOf map[string]int) int {
	highest := 0
	for _, s := range stageOf {
		if s > highest {
			highest = s
		}
	}
	return highest
}

// contextProperties flattens the event context into the github and
// inputs property trees gates evaluate against.
func contextProperties(event *forge.Event) (github, inputs map[string]any) {
	ctx := event.Context()
	github = map[string]any{
		"event_name":     ctx.EventName,
		"event_action":   ctx.Action,
		"ref":            ctx.Ref,
		"ref_name":       ctx.RefName,
		"ref_type":       ctx.RefType,
		"base_ref":       ctx.BaseRef,
		"head_ref":       ctx.HeadRef,
		"sha":            ctx.SHA,
		"actor":          ctx.Actor,
		"repository":     ctx.Repository,
		"default_branch": ctx.DefaultBranch,
	}
	inputs = make(map[string]any, len(ctx.Inputs))
	for name, value := range ctx.Inputs {
		inputs[name] = value
	}
	return github, inputs
}

// needsProperties exposes each need's planned result to the gate, the
// way "needs.<id>.result" reads at runtime. Under the eager-success
// assumption a need's result is "success" unless the plan skipped it.
func needsProperties(p *Plan, needs []string) map[string]any {
	tree := make(map[string]any, len(needs))
	for _, need := range needs {
		result := "success"
		if p.jobsByID[need].Disposition == DispositionSkip {
			result = "skipped"
		}
		tree[need] = map[string]any{"result": result}
	}
	return tree
}
