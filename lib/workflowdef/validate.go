// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/forgeplan/forgeplan/lib/cronspec"
	"github.com/forgeplan/forgeplan/lib/expr"
	"github.com/forgeplan/forgeplan/lib/pattern"
	"github.com/forgeplan/forgeplan/lib/schema/workflow"
)

// jobIDPattern matches valid job IDs and dispatch input names: start
// with a letter or underscore, followed by letters, digits,
// underscores, or hyphens. Anchored to the full string.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// secretNamePattern matches valid secret and environment variable
// names. Hyphens are not allowed; these names cross into process
// environments.
var secretNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// knownPullRequestTypes are the pull_request activity types a forge
// delivers. Filter entries outside this set can never match.
var knownPullRequestTypes = map[string]bool{
	"assigned":               true,
	"unassigned":             true,
	"labeled":                true,
	"unlabeled":              true,
	"opened":                 true,
	"edited":                 true,
	"closed":                 true,
	"reopened":               true,
	"synchronize":            true,
	"converted_to_draft":     true,
	"ready_for_review":       true,
	"locked":                 true,
	"unlocked":               true,
	"milestoned":             true,
	"demilestoned":           true,
	"review_requested":       true,
	"review_request_removed": true,
	"auto_merge_enabled":     true,
	"auto_merge_disabled":    true,
	"enqueued":               true,
	"dequeued":               true,
}

// Validate checks a workflow definition for structural issues. Returns
// a list of human-readable issue descriptions. An empty list means the
// workflow is valid.
//
// Structural checks include:
//   - At least one trigger and at least one job are required
//   - Branch/tag filter patterns must compile, and "branches" is
//     mutually exclusive with "branches-ignore" (same for tags)
//   - pull_request types must be recognized activity types
//   - schedule entries must be parseable cron lines
//   - workflow_dispatch inputs must have known types; "options" is
//     required for choice inputs and forbidden elsewhere
//   - Each job must set exactly one of "uses" or "steps"
//   - "with" and "secrets" are only valid on reusable workflow jobs,
//     and each secret value must be a single "${{ secrets.* }}" reference
//   - "needs" edges must point at declared jobs and form no cycles
//   - "if" gates must parse; job-level gates cannot read the secrets
//     context (the platform does not supply it there)
//   - Each step must set exactly one of "run" or "uses"
//   - Environment values must be well-formed templates
func Validate(def *workflow.Workflow) []string {
	var issues []string

	if def.On.Empty() {
		issues = append(issues, "workflow declares no triggers (\"on\" is required)")
	} else {
		issues = append(issues, validateTriggers(&def.On)...)
	}

	if def.Jobs.Len() == 0 {
		issues = append(issues, "workflow has no jobs (at least one job is required)")
	}

	issues = append(issues, validateEnv("env", def.Env)...)

	for _, id := range def.Jobs.Order() {
		issues = append(issues, validateJob(def.Jobs.Get(id))...)
	}

	issues = append(issues, validateNeedsGraph(def)...)

	return issues
}

// validateTriggers checks the "on" block.
func validateTriggers(triggers *workflow.Triggers) []string {
	var issues []string

	if push := triggers.Push; push != nil {
		if len(push.Branches) > 0 && len(push.BranchesIgnore) > 0 {
			issues = append(issues, "on[push]: branches and branches-ignore are mutually exclusive")
		}
		if len(push.Tags) > 0 && len(push.TagsIgnore) > 0 {
			issues = append(issues, "on[push]: tags and tags-ignore are mutually exclusive")
		}
		issues = append(issues, validatePatterns("on[push]", "branches", push.Branches)...)
		issues = append(issues, validatePatterns("on[push]", "branches-ignore", push.BranchesIgnore)...)
		issues = append(issues, validatePatterns("on[push]", "tags", push.Tags)...)
		issues = append(issues, validatePatterns("on[push]", "tags-ignore", push.TagsIgnore)...)
	}

	if pr := triggers.PullRequest; pr != nil {
		if len(pr.Branches) > 0 && len(pr.BranchesIgnore) > 0 {
			issues = append(issues, "on[pull_request]: branches and branches-ignore are mutually exclusive")
		}
		issues = append(issues, validatePatterns("on[pull_request]", "branches", pr.Branches)...)
		issues = append(issues, validatePatterns("on[pull_request]", "branches-ignore", pr.BranchesIgnore)...)
		for _, activityType := range pr.Types {
			if !knownPullRequestTypes[activityType] {
				issues = append(issues, fmt.Sprintf(
					"on[pull_request]: unknown activity type %q", activityType,
				))
			}
		}
	}

	if triggers.Schedule != nil {
		if len(triggers.Schedule) == 0 {
			issues = append(issues, "on[schedule]: at least one cron entry is required")
		}
		for index, entry := range triggers.Schedule {
			if entry.Cron == "" {
				issues = append(issues, fmt.Sprintf("on[schedule][%d]: cron is required", index))
				continue
			}
			if _, err := cronspec.Parse(entry.Cron); err != nil {
				issues = append(issues, fmt.Sprintf("on[schedule][%d]: %v", index, err))
			}
		}
	}

	if dispatch := triggers.WorkflowDispatch; dispatch != nil {
		for name, input := range dispatch.Inputs {
			issues = append(issues, validateDispatchInput(name, input)...)
		}
	}

	for _, kind := range triggers.Other {
		issues = append(issues, fmt.Sprintf(
			"on[%q]: unrecognized trigger (events of this kind never select the workflow)", kind,
		))
	}

	return issues
}

// validateDispatchInput checks one workflow_dispatch input declaration.
func validateDispatchInput(name string, input *workflow.DispatchInput) []string {
	var issues []string
	prefix := fmt.Sprintf("on[workflow_dispatch]: inputs[%q]", name)

	if !jobIDPattern.MatchString(name) {
		issues = append(issues, fmt.Sprintf(
			"%s: input name must be a valid identifier ([A-Za-z_][A-Za-z0-9_-]*)", prefix,
		))
	}
	if input == nil {
		return issues
	}

	switch input.Type {
	case "", workflow.InputTypeString, workflow.InputTypeBoolean,
		workflow.InputTypeNumber, workflow.InputTypeEnvironment:
		if len(input.Options) > 0 {
			issues = append(issues, fmt.Sprintf("%s: options are only valid on choice inputs", prefix))
		}
	case workflow.InputTypeChoice:
		if len(input.Options) == 0 {
			issues = append(issues, fmt.Sprintf("%s: choice inputs require options", prefix))
		} else if input.Default != "" && !slices.Contains(input.Options, string(input.Default)) {
			issues = append(issues, fmt.Sprintf(
				"%s: default %q is not one of the declared options", prefix, input.Default,
			))
		}
	default:
		issues = append(issues, fmt.Sprintf(
			"%s: type must be one of string, boolean, choice, number, or environment, got %q",
			prefix, input.Type,
		))
	}

	if input.Type == workflow.InputTypeBoolean && input.Default != "" &&
		input.Default != "true" && input.Default != "false" {
		issues = append(issues, fmt.Sprintf(
			"%s: boolean default must be \"true\" or \"false\", got %q", prefix, input.Default,
		))
	}

	return issues
}

// validateJob checks a single job for structural issues.
func validateJob(job *workflow.Job) []string {
	var issues []string
	prefix := fmt.Sprintf("jobs[%q]", job.ID)

	if !jobIDPattern.MatchString(job.ID) {
		issues = append(issues, fmt.Sprintf(
			"%s: job ID must be a valid identifier ([A-Za-z_][A-Za-z0-9_-]*)", prefix,
		))
	}

	hasUses := job.Uses != ""
	hasSteps := len(job.Steps) > 0
	switch {
	case hasUses && hasSteps:
		issues = append(issues, fmt.Sprintf("%s: uses and steps are mutually exclusive (set exactly one)", prefix))
	case !hasUses && !hasSteps:
		issues = append(issues, fmt.Sprintf("%s: must set either uses (reusable workflow) or steps", prefix))
	}

	if hasUses {
		issues = append(issues, validateReusableRef(job.Uses, prefix)...)
	} else {
		if len(job.With) > 0 {
			issues = append(issues, fmt.Sprintf("%s: with is only valid on reusable workflow jobs", prefix))
		}
		if !job.Secrets.IsZero() {
			issues = append(issues, fmt.Sprintf("%s: secrets are only valid on reusable workflow jobs", prefix))
		}
	}

	for name, value := range job.Secrets.Values {
		issues = append(issues, validateSecretMapping(name, value, prefix)...)
	}

	if job.If != "" {
		gate, err := expr.ParseGate(job.If)
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("%s: invalid if condition: %v", prefix, err))
		case gate.UsesContext("secrets"):
			issues = append(issues, fmt.Sprintf(
				"%s: if condition reads the secrets context, which is not available in job-level conditions", prefix,
			))
		}
	}

	if job.TimeoutMinutes < 0 {
		issues = append(issues, fmt.Sprintf("%s: timeout-minutes must be positive", prefix))
	}

	issues = append(issues, validateEnv(prefix+": env", job.Env)...)
	issues = append(issues, validateTemplates(prefix+": with", job.With)...)

	for index, step := range job.Steps {
		issues = append(issues, validateStep(step, fmt.Sprintf("%s: steps[%d]", prefix, index))...)
	}

	return issues
}

// validateStep checks a single inline step.
func validateStep(step *workflow.Step, prefix string) []string {
	var issues []string
	if name := step.DisplayName(); name != "" {
		prefix = fmt.Sprintf("%s %q", prefix, name)
	}

	hasRun := step.Run != ""
	hasUses := step.Uses != ""
	switch {
	case hasRun && hasUses:
		issues = append(issues, fmt.Sprintf("%s: run and uses are mutually exclusive (set exactly one)", prefix))
	case !hasRun && !hasUses:
		issues = append(issues, fmt.Sprintf("%s: must set either run or uses", prefix))
	}

	if !hasRun {
		if step.Shell != "" {
			issues = append(issues, fmt.Sprintf("%s: shell is only valid on run steps", prefix))
		}
		if step.WorkingDirectory != "" {
			issues = append(issues, fmt.Sprintf("%s: working-directory is only valid on run steps", prefix))
		}
	}
	if !hasUses && len(step.With) > 0 {
		issues = append(issues, fmt.Sprintf("%s: with is only valid on uses steps", prefix))
	}

	if step.If != "" {
		if _, err := expr.ParseGate(step.If); err != nil {
			issues = append(issues, fmt.Sprintf("%s: invalid if condition: %v", prefix, err))
		}
	}

	issues = append(issues, validateEnv(prefix+": env", step.Env)...)
	issues = append(issues, validateTemplates(prefix+": with", step.With)...)

	return issues
}

// validateReusableRef checks a job "uses" reference. Local references
// start with "./" and name a workflow file in the same repository;
// remote references are "owner/repo/path@ref".
func validateReusableRef(uses, prefix string) []string {
	var issues []string

	isWorkflowFile := strings.HasSuffix(uses, ".yml") || strings.HasSuffix(uses, ".yaml")
	if strings.HasPrefix(uses, "./") {
		if !isWorkflowFile {
			issues = append(issues, fmt.Sprintf(
				"%s: local reusable workflow reference %q must name a .yml or .yaml file", prefix, uses,
			))
		}
		return issues
	}

	base, ref, found := strings.Cut(uses, "@")
	if !found || ref == "" {
		issues = append(issues, fmt.Sprintf(
			"%s: remote reusable workflow reference %q must be pinned to a ref (owner/repo/path@ref)", prefix, uses,
		))
		return issues
	}
	if strings.Count(base, "/") < 2 || (!strings.HasSuffix(base, ".yml") && !strings.HasSuffix(base, ".yaml")) {
		issues = append(issues, fmt.Sprintf(
			"%s: remote reusable workflow reference %q must be owner/repo/path@ref naming a .yml or .yaml file", prefix, uses,
		))
	}

	return issues
}

// validateSecretMapping checks one entry of a job's secrets map. The
// value must be a lone secrets-context reference; anything else would
// leak a literal into the called workflow's secret namespace.
func validateSecretMapping(name, value, prefix string) []string {
	var issues []string
	entry := fmt.Sprintf("%s: secrets[%q]", prefix, name)

	if !secretNamePattern.MatchString(name) {
		issues = append(issues, fmt.Sprintf(
			"%s: secret name must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)", entry,
		))
	}

	template, err := expr.ParseTemplate(value)
	if err != nil {
		issues = append(issues, fmt.Sprintf("%s: %v", entry, err))
		return issues
	}
	single, ok := template.Single()
	if !ok {
		issues = append(issues, fmt.Sprintf(
			"%s: value must be a single \"${{ secrets.* }}\" reference, got %q", entry, value,
		))
		return issues
	}
	path, ok := single.PropertyPath()
	if !ok || len(path) != 2 || !strings.EqualFold(path[0], "secrets") {
		issues = append(issues, fmt.Sprintf(
			"%s: value must reference the secrets context, got %q", entry, value,
		))
	}

	return issues
}

// validatePatterns checks that every entry in a ref filter list
// compiles as a match pattern.
func validatePatterns(prefix, field string, sources workflow.StringList) []string {
	var issues []string
	for _, source := range sources {
		if _, err := pattern.Compile(source); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %s pattern %q: %v", prefix, field, source, err))
		}
	}
	return issues
}

// validateEnv checks environment variable names and value templates.
func validateEnv(prefix string, env workflow.StringMap) []string {
	var issues []string
	for name, value := range env {
		if !secretNamePattern.MatchString(name) {
			issues = append(issues, fmt.Sprintf(
				"%s[%q]: name must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)", prefix, name,
			))
		}
		if _, err := expr.ParseTemplate(value); err != nil {
			issues = append(issues, fmt.Sprintf("%s[%q]: %v", prefix, name, err))
		}
	}
	return issues
}

// validateTemplates checks that every value in a with-map parses as a
// template. Names are action-defined, so only values are checked.
func validateTemplates(prefix string, values workflow.StringMap) []string {
	var issues []string
	for name, value := range values {
		if _, err := expr.ParseTemplate(value); err != nil {
			issues = append(issues, fmt.Sprintf("%s[%q]: %v", prefix, name, err))
		}
	}
	return issues
}

// validateNeedsGraph checks needs edges: every referenced job must be
// declared, no job may need itself, and the graph must be acyclic.
// Only the first cycle found is reported; fixing it usually reveals or
// removes the rest.
func validateNeedsGraph(def *workflow.Workflow) []string {
	var issues []string

	for _, id := range def.Jobs.Order() {
		job := def.Jobs.Get(id)
		for _, need := range job.Needs {
			if need == id {
				issues = append(issues, fmt.Sprintf("jobs[%q]: needs itself", id))
				continue
			}
			if def.Jobs.Get(need) == nil {
				issues = append(issues, fmt.Sprintf("jobs[%q]: needs undeclared job %q", id, need))
			}
		}
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	state := make(map[string]int, def.Jobs.Len())
	var stack []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = grey
		stack = append(stack, id)
		for _, need := range def.Jobs.Get(id).Needs {
			if need == id || def.Jobs.Get(need) == nil {
				continue // reported above
			}
			switch state[need] {
			case grey:
				start := slices.Index(stack, need)
				cycle := append(slices.Clone(stack[start:]), need)
				issues = append(issues, fmt.Sprintf("jobs: needs cycle: %s", strings.Join(cycle, " -> ")))
				return true
			case white:
				if visit(need) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = black
		return false
	}

	for _, id := range def.Jobs.Order() {
		if state[id] == white && visit(id) {
			break
		}
	}

	return issues
}
