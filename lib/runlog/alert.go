// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"
)

// State is the severity of an alert. An ongoing alert never downgrades
// from CRITICAL back to WARNING; it stays CRITICAL until it ends.
type State string

const (
	StateOK       State = "OK"
	StateWarning  State = "WARNING"
	StateCritical State = "CRITICAL"
)

// Alert kinds.
const (
	AlertFailureStreak      = "failure_streak"
	AlertDurationRegression = "duration_regression"
)

// Alert is a begin/end window during which a workflow/job key was
// unhealthy. While ongoing, End is zero and the aggregates keep
// accumulating with each offending observation.
type Alert struct {
	Kind  string    `json:"kind"`
	Key   string    `json:"key"`
	State State     `json:"state"`
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end,omitzero"`

	// Aggregates of the offending metric over the window: the streak
	// length for failure alerts, the run duration in seconds for
	// regression alerts.
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`

	// Top holds the three worst keys at the moment the alert reached
	// CRITICAL, ordered worst first.
	Top []string `json:"top,omitempty"`

	// Message is a one-line description for logs and rendering.
	Message string `json:"message"`
}

// Ongoing reports whether the alert window is still open.
func (a *Alert) Ongoing() bool {
	return a.End.IsZero()
}

// update folds one more offending observation into the window. The
// state only escalates; reaching CRITICAL also snapshots the top keys.
func (a *Alert) update(state State, value float64, top func() []string) {
	a.Min = min(a.Min, value)
	a.Max = max(a.Max, value)
	a.Sum += value
	a.Count++
	a.Avg = a.Sum / float64(a.Count)

	if state == StateCritical && a.State != StateCritical {
		a.State = StateCritical
		a.Top = top()
	}
}

// Thresholds tunes the monitor. Zero fields take the defaults.
type Thresholds struct {
	// FailureWarning is the consecutive-failure count that opens a
	// WARNING failure-streak alert. Default 3.
	FailureWarning int
	// FailureCritical escalates the streak alert to CRITICAL.
	// Default 5.
	FailureCritical int
	// DurationFactor opens a regression alert when a run takes at
	// least this many times the rolling mean. Default 2.0; twice the
	// factor escalates to CRITICAL.
	DurationFactor float64
	// DurationMinimum is the number of observed runs a key needs
	// before regression checks apply. Default 5.
	DurationMinimum int
}

func (t Thresholds) withDefaults() Thresholds {
	if t.FailureWarning <= 0 {
		t.FailureWarning = 3
	}
	if t.FailureCritical <= 0 {
		t.FailureCritical = 5
	}
	if t.FailureCritical < t.FailureWarning {
		t.FailureCritical = t.FailureWarning
	}
	if t.DurationFactor <= 1 {
		t.DurationFactor = 2.0
	}
	if t.DurationMinimum <= 1 {
		t.DurationMinimum = 5
	}
	return t
}

// Monitor turns a stream of records into alerts. Not safe for
// concurrent use; the Log serializes access.
type Monitor struct {
	thresholds Thresholds
	streaks    map[string]int
	durations  map[string]*Series
	ongoing    map[string]*Alert // keyed by kind + "\x00" + key
	closed     []*Alert
}

// NewMonitor creates a monitor with the given thresholds.
func NewMonitor(thresholds Thresholds) *Monitor {
	return &Monitor{
		thresholds: thresholds.withDefaults(),
		streaks:    make(map[string]int),
		durations:  make(map[string]*Series),
		ongoing:    make(map[string]*Alert),
	}
}

// Observe folds one record into the monitor's state and returns the
// alerts that were opened or escalated by it, if any.
func (m *Monitor) Observe(record *Record) []*Alert {
	var raised []*Alert
	if alert := m.observeConclusion(record); alert != nil {
		raised = append(raised, alert)
	}
	if alert := m.observeDuration(record); alert != nil {
		raised = append(raised, alert)
	}
	return raised
}

// observeConclusion tracks consecutive failures per key.
func (m *Monitor) observeConclusion(record *Record) *Alert {
	key := record.Key()
	alertKey := AlertFailureStreak + "\x00" + key

	if record.Failed() {
		m.streaks[key]++
		streak := m.streaks[key]
		if streak < m.thresholds.FailureWarning {
			return nil
		}

		state := StateWarning
		if streak >= m.thresholds.FailureCritical {
			state = StateCritical
		}

		alert := m.ongoing[alertKey]
		opened := alert == nil
		if opened {
			// Opened at WARNING even when the streak is already
			// critical; the update escalates and snapshots Top.
			alert = &Alert{
				Kind:  AlertFailureStreak,
				Key:   key,
				State: StateWarning,
				Begin: record.CompletedAt,
				Min:   float64(streak),
				Max:   float64(streak),
			}
			m.ongoing[alertKey] = alert
		}
		escalating := state == StateCritical && alert.State != StateCritical
		alert.update(state, float64(streak), m.worstStreaks)
		alert.Message = fmt.Sprintf("%s: %d consecutive failures", key, streak)
		if opened || escalating {
			return alert
		}
		return nil
	}

	// Success resets the streak and closes any open alert. Cancelled
	// and skipped runs say nothing about health; they leave the
	// streak alone.
	if record.Conclusion == "success" {
		m.streaks[key] = 0
		m.closeAlert(alertKey, record.CompletedAt)
	}
	return nil
}

// observeDuration tracks run durations per key and flags regressions
// against the rolling mean.
func (m *Monitor) observeDuration(record *Record) *Alert {
	if record.Seconds <= 0 || record.Conclusion != "success" {
		// Failed or skipped runs have unrepresentative durations.
		return nil
	}

	key := record.Key()
	alertKey := AlertDurationRegression + "\x00" + key

	series := m.durations[key]
	if series == nil {
		series = NewSeries(key, UnitSeconds)
		m.durations[key] = series
	}

	// Compare against the history before this run, so one slow run
	// does not drag the baseline toward itself.
	baseline := series.Mean()
	enough := series.Count() >= m.thresholds.DurationMinimum
	series.Add(record.CompletedAt, record.Seconds)

	if !enough || baseline <= 0 {
		return nil
	}

	factor := record.Seconds / baseline
	if factor < m.thresholds.DurationFactor {
		m.closeAlert(alertKey, record.CompletedAt)
		return nil
	}

	state := StateWarning
	if factor >= 2*m.thresholds.DurationFactor {
		state = StateCritical
	}

	alert := m.ongoing[alertKey]
	opened := alert == nil
	if opened {
		alert = &Alert{
			Kind:  AlertDurationRegression,
			Key:   key,
			State: StateWarning,
			Begin: record.CompletedAt,
			Min:   record.Seconds,
			Max:   record.Seconds,
		}
		m.ongoing[alertKey] = alert
	}
	escalating := state == StateCritical && alert.State != StateCritical
	alert.update(state, record.Seconds, m.slowestKeys)
	alert.Message = fmt.Sprintf("%s: %.0fs is %.1fx the rolling mean of %.0fs",
		key, record.Seconds, factor, baseline)
	if opened || escalating {
		return alert
	}
	return nil
}

func (m *Monitor) closeAlert(alertKey string, at time.Time) {
	alert := m.ongoing[alertKey]
	if alert == nil {
		return
	}
	alert.End = at
	delete(m.ongoing, alertKey)
	m.closed = append(m.closed, alert)
}

// worstStreaks returns up to three keys with the longest current
// failure streaks, worst first.
func (m *Monitor) worstStreaks() []string {
	return topKeys(slices.Collect(maps.Keys(m.streaks)), func(key string) float64 {
		return float64(m.streaks[key])
	})
}

// slowestKeys returns up to three keys with the slowest last runs,
// slowest first.
func (m *Monitor) slowestKeys() []string {
	return topKeys(slices.Collect(maps.Keys(m.durations)), func(key string) float64 {
		return m.durations[key].Last()
	})
}

func topKeys(keys []string, metric func(string) float64) []string {
	ranked := keys[:0]
	for _, key := range keys {
		if metric(key) > 0 {
			ranked = append(ranked, key)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		left, right := metric(ranked[i]), metric(ranked[j])
		if left != right {
			return left > right
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	return ranked
}

// Alerts returns ongoing alerts followed by closed ones, each group
// newest first.
func (m *Monitor) Alerts() []*Alert {
	alerts := make([]*Alert, 0, len(m.ongoing)+len(m.closed))
	for _, alert := range m.ongoing {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Begin.After(alerts[j].Begin)
	})
	for _, alert := range slices.Backward(m.closed) {
		alerts = append(alerts, alert)
	}
	return alerts
}

// Series returns the duration series for a key, or nil if the key has
// not been observed.
func (m *Monitor) Series(key string) *Series {
	return m.durations[key]
}
