// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"time"
)

// DefaultCapacity is the number of points a series retains.
const DefaultCapacity = 512

// UnitSeconds is the unit label for duration series.
const UnitSeconds = "s"

// Point is one observation in a series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a bounded history of one metric. The ring keeps the most
// recent points; the aggregates (count, sum, min, max) cover every
// observation since the series was created, not just the retained
// window.
type Series struct {
	name     string
	unit     string
	capacity int

	ring   []Point
	next   int
	filled bool

	count    int
	sum      float64
	min      float64
	max      float64
	last     float64
	lastTime time.Time

	previousValue float64
	previousTime  time.Time
	rate          float64
	hasRate       bool
}

// NewSeries creates a series with the default capacity.
func NewSeries(name, unit string) *Series {
	return NewSeriesWithCapacity(name, unit, DefaultCapacity)
}

// NewSeriesWithCapacity creates a series retaining up to capacity
// points. Capacity below one is raised to one.
func NewSeriesWithCapacity(name, unit string, capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{
		name:     name,
		unit:     unit,
		capacity: capacity,
		ring:     make([]Point, 0, capacity),
	}
}

// Name returns the series key.
func (s *Series) Name() string { return s.name }

// Unit returns the unit label for rendering.
func (s *Series) Unit() string { return s.unit }

// Add records an observation. Observations must arrive in time order;
// the rate is computed against the previous observation's time.
func (s *Series) Add(at time.Time, value float64) {
	if s.count > 0 {
		if delta := at.Sub(s.previousTime).Seconds(); delta > 0 {
			s.rate = (value - s.previousValue) / delta
			s.hasRate = true
		}
	}
	s.previousValue = value
	s.previousTime = at

	if s.count == 0 || value < s.min {
		s.min = value
	}
	if s.count == 0 || value > s.max {
		s.max = value
	}
	s.count++
	s.sum += value
	s.last = value
	s.lastTime = at

	point := Point{Time: at, Value: value}
	if len(s.ring) < s.capacity {
		s.ring = append(s.ring, point)
	} else {
		s.ring[s.next] = point
		s.filled = true
	}
	s.next = (s.next + 1) % s.capacity
}

// Count returns the number of observations ever added.
func (s *Series) Count() int { return s.count }

// Sum returns the sum of all observations.
func (s *Series) Sum() float64 { return s.sum }

// Min returns the smallest observation, or zero before any.
func (s *Series) Min() float64 { return s.min }

// Max returns the largest observation, or zero before any.
func (s *Series) Max() float64 { return s.max }

// Mean returns the mean of all observations, or zero before any.
func (s *Series) Mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Last returns the most recent observation, or zero before any.
func (s *Series) Last() float64 { return s.last }

// LastTime returns the time of the most recent observation.
func (s *Series) LastTime() time.Time { return s.lastTime }

// Rate returns the change per second between the two most recent
// observations. ok is false until two observations with distinct
// times have been added.
func (s *Series) Rate() (perSecond float64, ok bool) {
	return s.rate, s.hasRate
}

// Points returns the retained window in chronological order.
func (s *Series) Points() []Point {
	if !s.filled {
		return append([]Point(nil), s.ring...)
	}
	points := make([]Point, 0, s.capacity)
	points = append(points, s.ring[s.next:]...)
	points = append(points, s.ring[:s.next]...)
	return points
}
