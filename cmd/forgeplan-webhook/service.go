// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/forgeplan/forgeplan/lib/config"
	"github.com/forgeplan/forgeplan/lib/forgehub"
	"github.com/forgeplan/forgeplan/lib/plan"
	"github.com/forgeplan/forgeplan/lib/runlog"
	"github.com/forgeplan/forgeplan/lib/schema/forge"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
	"github.com/forgeplan/forgeplan/lib/secretstore"
	"github.com/forgeplan/forgeplan/lib/workflowdef"
)

// observedWorkflow is one parsed workflow definition the observer
// evaluates incoming events against.
type observedWorkflow struct {
	// path is where the definition came from: a local file path or a
	// repository path like ".github/workflows/ci.yml".
	path        string
	name        string
	fingerprint string
	def         *workflow.Workflow
}

// parseWorkflow parses and validates one workflow document. The format
// is chosen by extension, matching workflowdef.ReadFile.
func parseWorkflow(path string, data []byte) (*observedWorkflow, error) {
	var def *workflow.Workflow
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		def, err = workflowdef.ParseJSONC(data)
	default:
		def, err = workflowdef.Parse(data)
	}
	if err != nil {
		return nil, err
	}
	if issues := workflowdef.Validate(def); len(issues) > 0 {
		return nil, fmt.Errorf("%d validation issue(s): %s", len(issues), strings.Join(issues, "; "))
	}
	return &observedWorkflow{
		path:        path,
		name:        workflowdef.EffectiveName(def, path),
		fingerprint: workflowdef.ComputeFingerprint(data).String(),
		def:         def,
	}, nil
}

func isWorkflowFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml", ".json", ".jsonc":
		return true
	}
	return false
}

// loadWorkflowDir reads every workflow definition under dir. A missing
// directory is not an error — the service can run record-only. Broken
// definitions are skipped with a warning; the lint commands exist to
// find those.
func loadWorkflowDir(dir string, logger *slog.Logger) ([]*observedWorkflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workflow directory: %w", err)
	}

	var workflows []*observedWorkflow
	for _, entry := range entries {
		if entry.IsDir() || !isWorkflowFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		wf, err := parseWorkflow(path, data)
		if err != nil {
			logger.Warn("skipping workflow", "path", path, "error", err)
			continue
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// fetchWorkflowRepo fetches workflow definitions from the repository
// the config names. Fetch failures degrade to a warning — the service
// keeps running with whatever the local directory provided.
func fetchWorkflowRepo(ctx context.Context, cfg *config.Config, token string, logger *slog.Logger) []*observedWorkflow {
	owner, repo, err := forge.SplitRepo(cfg.Workflows.Repo)
	if err != nil {
		logger.Warn("not fetching remote workflows", "error", err)
		return nil
	}
	client, err := forgehub.NewClient(forgehub.ClientConfig{
		Token:   token,
		BaseURL: cfg.Forge.BaseURL,
	})
	if err != nil {
		logger.Warn("not fetching remote workflows", "error", err)
		return nil
	}
	files, err := client.ListWorkflowFiles(ctx, owner, repo, cfg.Workflows.Ref)
	if err != nil {
		logger.Warn("fetching remote workflows failed",
			"repo", cfg.Workflows.Repo,
			"error", err,
		)
		return nil
	}

	var workflows []*observedWorkflow
	for _, file := range files {
		wf, err := parseWorkflow(file.Path, []byte(file.Content))
		if err != nil {
			logger.Warn("skipping workflow", "path", file.Path, "error", err)
			continue
		}
		workflows = append(workflows, wf)
	}
	logger.Info("remote workflows loaded",
		"repo", cfg.Workflows.Repo,
		"count", len(workflows),
	)
	return workflows
}

// Observer is the core service state: the workflow definitions events
// are evaluated against, the secret stores plans resolve from, the run
// log the completions feed, and the most recent plan batch for the
// read API.
type Observer struct {
	workflows []*observedWorkflow
	secrets   secretstore.Store
	log       *runlog.Log
	store     runlog.Store
	logger    *slog.Logger

	mu     sync.Mutex
	latest *PlanBatch
}

// PlanBatch is the result of evaluating one forge event against every
// loaded workflow, kept for the /api/plans/latest endpoint.
type PlanBatch struct {
	Event      string       `json:"event"`
	Repo       string       `json:"repo,omitempty"`
	DeliveryID string       `json:"delivery_id,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
	Plans      []*plan.Plan `json:"plans"`
}

// handleEvent processes a translated forge event from the webhook
// handler. Trigger-bearing events are planned against the loaded
// workflows; completed run and job events become run records.
func (o *Observer) handleEvent(event *forge.Event) {
	switch event.Kind {
	case forge.EventKindPush, forge.EventKindPullRequest,
		forge.EventKindSchedule, forge.EventKindWorkflowDispatch:
		o.evaluate(event)
	case forge.EventKindWorkflowRun, forge.EventKindWorkflowJob:
		o.record(event)
	}
}

// evaluate plans the event against every loaded workflow and keeps the
// batch as the latest evaluation. Nothing is executed; the plans show
// what the forge will (or would) do.
func (o *Observer) evaluate(event *forge.Event) {
	batch := &PlanBatch{
		Event:      event.Kind,
		Repo:       event.Repo(),
		DeliveryID: event.DeliveryID,
		ReceivedAt: time.Now().UTC(),
		Plans:      make([]*plan.Plan, 0, len(o.workflows)),
	}

	for _, wf := range o.workflows {
		p, err := plan.Build(wf.def, event, plan.Options{
			Name:        wf.name,
			Secrets:     o.secrets,
			Fingerprint: wf.fingerprint,
		})
		if err != nil {
			o.logger.Error("planning failed", "workflow", wf.path, "error", err)
			continue
		}
		batch.Plans = append(batch.Plans, p)

		if !p.Selected {
			o.logger.Debug("workflow not selected",
				"workflow", p.Workflow,
				"event", event.Kind,
				"reason", p.Reason,
			)
			continue
		}
		run, skip := 0, 0
		for _, job := range p.Jobs {
			if job.Disposition == plan.DispositionRun {
				run++
			} else {
				skip++
			}
		}
		o.logger.Info("workflow selected",
			"workflow", p.Workflow,
			"event", event.Kind,
			"stages", len(p.Stages),
			"run", run,
			"skip", skip,
		)
	}

	o.mu.Lock()
	o.latest = batch
	o.mu.Unlock()
}

// record appends a completed run or job to the log. Queued and
// in-progress notifications carry no conclusion and are dropped.
func (o *Observer) record(event *forge.Event) {
	record, ok := runlog.FromEvent(event)
	if !ok {
		o.logger.Debug("ignoring incomplete run event", "event", event.Kind)
		return
	}
	// Persistence must not be cut short by the webhook client
	// disconnecting, hence no request context here.
	if err := o.log.Append(context.Background(), record); err != nil {
		o.logger.Error("recording run failed", "key", record.Key(), "error", err)
		return
	}
	o.logger.Info("run recorded",
		"key", record.Key(),
		"conclusion", record.Conclusion,
		"seconds", record.Seconds,
	)
}

// LatestPlans returns the most recent evaluation, or nil before the
// first trigger-bearing event arrives.
func (o *Observer) LatestPlans() *PlanBatch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}
