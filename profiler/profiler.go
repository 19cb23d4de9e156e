// Package profiler - Stage timing for the preservation pipeline.
package profiler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// TimeTracker records the duration of each named stage of one call.
//
// A TimeTracker belongs to a single call and is not safe for concurrent use.
//
// @example
// tt := profiler.NewTimeTracker()
// done := tt.StartOperation("detect")
// ...
// done()
// fmt.Println(tt)
type TimeTracker struct {
	order     []string
	durations map[string]time.Duration
}

// NewTimeTracker creates an empty tracker.
func NewTimeTracker() *TimeTracker {
	return &TimeTracker{durations: make(map[string]time.Duration)}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The stage name.
//
// Returns:
// - A function to call when the stage completes. Calling it more than once
// accumulates.
func (t *TimeTracker) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		t.Record(name, time.Since(start))
	}
}

// Record adds d to the named stage.
func (t *TimeTracker) Record(name string, d time.Duration) {
	if _, ok := t.durations[name]; !ok {
		t.order = append(t.order, name)
	}
	t.durations[name] += d
}

// Durations returns a copy of the recorded stage durations.
func (t *TimeTracker) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(t.durations))
	for k, v := range t.durations {
		out[k] = v
	}
	return out
}

// Stages returns stage names in the order they were first recorded.
func (t *TimeTracker) Stages() []string {
	return append([]string(nil), t.order...)
}

// Total returns the sum of all stages.
func (t *TimeTracker) Total() time.Duration {
	var total time.Duration
	for _, d := range t.durations {
		total += d
	}
	return total
}

// String formats the stages as "name=duration" pairs in recording order.
func (t *TimeTracker) String() string {
	parts := make([]string, 0, len(t.order))
	for _, name := range t.order {
		parts = append(parts, fmt.Sprintf("%s=%v", name, t.durations[name].Truncate(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}

// stageStats tracks timing statistics of one stage across calls.
type stageStats struct {
	total time.Duration
	min   time.Duration
	max   time.Duration
	count int64
}

// StageStats aggregates per-call timings across many calls. It is safe for
// concurrent use.
type StageStats struct {
	mu     sync.Mutex
	stages map[string]*stageStats
}

// NewStageStats creates an empty aggregate.
func NewStageStats() *StageStats {
	return &StageStats{stages: make(map[string]*stageStats)}
}

// Add folds one call's durations into the aggregate.
func (s *StageStats) Add(durations map[string]time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, d := range durations {
		st, ok := s.stages[name]
		if !ok {
			st = &stageStats{min: d, max: d}
			s.stages[name] = st
		}
		st.total += d
		st.count++
		if d < st.min {
			st.min = d
		}
		if d > st.max {
			st.max = d
		}
	}
}

// Average returns the mean duration of a stage, or 0 when it was never seen.
func (s *StageStats) Average(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stages[name]
	if !ok || st.count == 0 {
		return 0
	}
	return st.total / time.Duration(st.count)
}

// Report formats every stage as avg/min/max/count, sorted by name.
func (s *StageStats) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.stages))
	for name := range s.stages {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		st := s.stages[name]
		fmt.Fprintf(&b, "%s: avg=%v, min=%v, max=%v, count=%d\n",
			name,
			(st.total / time.Duration(st.count)).Truncate(time.Microsecond),
			st.min.Truncate(time.Microsecond),
			st.max.Truncate(time.Microsecond),
			st.count)
	}
	return b.String()
}
