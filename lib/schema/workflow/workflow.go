// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Workflow is one workflow document. The zero value is an empty
// workflow; obtain populated values by unmarshalling YAML into it.
type Workflow struct {
	// Name is the display name. Optional; tooling falls back to the
	// file name when empty.
	Name string `yaml:"name"`

	// On declares which forge events select this workflow.
	On Triggers `yaml:"on"`

	// Env is the workflow-level environment, inherited by every job.
	Env StringMap `yaml:"env"`

	// Jobs holds the job table in declaration order.
	Jobs Jobs `yaml:"jobs"`
}

// Job returns the job with the given ID, or nil if none exists.
func (w *Workflow) Job(id string) *Job {
	return w.Jobs.byID[id]
}

// Jobs is an ordered job table. YAML mappings carry declaration order
// in the node stream but Go maps discard it; planning and rendering
// need it back (stages print in file order), so Jobs keeps both the
// lookup map and the original key order.
type Jobs struct {
	byID  map[string]*Job
	order []string
}

// Get returns the job with the given ID, or nil.
func (j *Jobs) Get(id string) *Job {
	return j.byID[id]
}

// Order returns job IDs in declaration order. The returned slice is
// shared; callers must not modify it.
func (j *Jobs) Order() []string {
	return j.order
}

// Len returns the number of jobs.
func (j *Jobs) Len() int {
	return len(j.order)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (j *Jobs) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: \"jobs\" must be a mapping", value.Line)
	}
	j.byID = make(map[string]*Job, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]
		if _, exists := j.byID[key.Value]; exists {
			return fmt.Errorf("line %d: duplicate job ID %q", key.Line, key.Value)
		}
		job := &Job{}
		if err := val.Decode(job); err != nil {
			return fmt.Errorf("job %q: %w", key.Value, err)
		}
		job.ID = key.Value
		job.Line = key.Line
		j.byID[key.Value] = job
		j.order = append(j.order, key.Value)
	}
	return nil
}

// Job is one entry in the jobs table. A job either invokes a reusable
// workflow (Uses) or runs inline steps; never both.
type Job struct {
	// ID is the job's key in the jobs mapping. Populated during
	// unmarshalling, not from a YAML field.
	ID string `yaml:"-"`

	// Line is the source line of the job's key, for issue reporting.
	Line int `yaml:"-"`

	// Name is the display name. Optional.
	Name string `yaml:"name"`

	// Uses references a reusable workflow
	// ("owner/repo/.github/workflows/x.yml@ref" or a local
	// "./.github/workflows/x.yml").
	Uses string `yaml:"uses"`

	// With passes inputs to the reusable workflow. Only meaningful
	// with Uses.
	With StringMap `yaml:"with"`

	// Secrets passes secrets to the reusable workflow. Only
	// meaningful with Uses.
	Secrets Secrets `yaml:"secrets"`

	// Needs lists job IDs that must complete before this job starts.
	Needs StringList `yaml:"needs"`

	// If gates the job on an expression evaluated against the event
	// context. Absent means the job always runs (when its needs do).
	If string `yaml:"if"`

	// RunsOn selects the runner label(s). Informational for planning.
	RunsOn StringList `yaml:"runs-on"`

	// Env is the job-level environment.
	Env StringMap `yaml:"env"`

	// Steps are the inline commands. Mutually exclusive with Uses.
	Steps []*Step `yaml:"steps"`

	// TimeoutMinutes bounds the job's runtime. Zero means the
	// platform default.
	TimeoutMinutes int `yaml:"timeout-minutes"`

	// ContinueOnError marks the job's failure as non-fatal to the
	// run.
	ContinueOnError bool `yaml:"continue-on-error"`
}

// IsReusable reports whether the job invokes a reusable workflow.
func (j *Job) IsReusable() bool {
	return j.Uses != ""
}

// DisplayName returns Name when set, otherwise the job ID.
func (j *Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// Step is one entry in a job's steps list. A step either runs a shell
// command (Run) or invokes an action (Uses); never both.
type Step struct {
	// Name is the display name. Optional.
	Name string `yaml:"name"`

	// ID names the step for output references. Optional.
	ID string `yaml:"id"`

	// If gates the step on an expression.
	If string `yaml:"if"`

	// Uses invokes an action ("actions/checkout@v4").
	Uses string `yaml:"uses"`

	// With passes inputs to the action. Only meaningful with Uses.
	With StringMap `yaml:"with"`

	// Run executes a shell command. Mutually exclusive with Uses.
	Run string `yaml:"run"`

	// Shell overrides the shell for Run.
	Shell string `yaml:"shell"`

	// WorkingDirectory sets the directory for Run.
	WorkingDirectory string `yaml:"working-directory"`

	// Env is the step-level environment.
	Env StringMap `yaml:"env"`

	// ContinueOnError marks the step's failure as non-fatal.
	ContinueOnError bool `yaml:"continue-on-error"`
}

// DisplayName returns the step's name, falling back to its action
// reference or the first line of its run command.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Uses != "" {
		return s.Uses
	}
	for i := 0; i < len(s.Run); i++ {
		if s.Run[i] == '\n' {
			return s.Run[:i]
		}
	}
	return s.Run
}
