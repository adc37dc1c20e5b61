// Package stats implements the StatRec component: sampled/interval
// statistics with an optional histogram, grounded on original_source's
// src/MemSys/stat.c (NewStatrec and its histogram variant).
package stats

import "math"

// Kind selects how a StatRec accumulates values.
type Kind int

const (
	// Interval records an instantaneous sample each time it changes and
	// weights the running mean by the time spent at each level (useful
	// for occupancy/utilization counters such as buffer fill level).
	Interval Kind = iota
	// Sampled records independent point samples (useful for per-request
	// latencies) and reports a simple mean/variance over all samples.
	Sampled
)

// StatRec accumulates either interval- or sample-based statistics, with an
// optional fixed-width histogram recorded alongside when HistBuckets > 0.
type StatRec struct {
	Name string
	kind Kind

	// Interval bookkeeping.
	lastValue   float64
	lastChange  float64
	integral    float64 // time-weighted area under the value curve
	totalTime   float64

	// Sampled bookkeeping (count, min and max are also kept by
	// RecordLevel for Interval StatRecs).
	count int64
	sum   float64
	sumSq float64
	min   float64
	max   float64

	// Histogram, enabled by stats_level (spec.md §6) when the caller asks
	// for HistBuckets > 0.
	histWidth   float64
	histBuckets []int64
	histOver    int64 // count of samples above the last bucket
}

// New creates a StatRec of the given kind. histBuckets == 0 disables the
// histogram; histWidth is the width of each bucket when enabled.
func New(name string, kind Kind, histBuckets int, histWidth float64) *StatRec {
	s := &StatRec{Name: name, kind: kind, min: math.Inf(1), max: math.Inf(-1)}
	if histBuckets > 0 {
		s.histWidth = histWidth
		s.histBuckets = make([]int64, histBuckets)
	}
	return s
}

// RecordSample is for Kind == Sampled StatRecs: independent point samples,
// e.g. one per completed memory request's latency.
func (s *StatRec) RecordSample(v float64) {
	s.count++
	s.sum += v
	s.sumSq += v * v
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
	s.bucket(v)
}

// RecordLevel is for Kind == Interval StatRecs: the value held constant
// since the last call, now changing at simulated time now. The time-
// weighted integral is updated before the new level is latched.
func (s *StatRec) RecordLevel(now, newValue float64) {
	if now < s.lastChange {
		now = s.lastChange
	}
	dt := now - s.lastChange
	s.integral += s.lastValue * dt
	s.totalTime += dt
	s.lastChange = now
	s.lastValue = newValue
	s.count++
	if newValue < s.min {
		s.min = newValue
	}
	if newValue > s.max {
		s.max = newValue
	}
	s.bucket(newValue)
}

func (s *StatRec) bucket(v float64) {
	if len(s.histBuckets) == 0 || s.histWidth <= 0 {
		return
	}
	idx := int(v / s.histWidth)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.histBuckets) {
		s.histOver++
		return
	}
	s.histBuckets[idx]++
}

// Mean returns the running mean: time-weighted for Interval StatRecs,
// arithmetic for Sampled ones.
func (s *StatRec) Mean() float64 {
	switch s.kind {
	case Interval:
		if s.totalTime == 0 {
			return s.lastValue
		}
		return s.integral / s.totalTime
	default:
		if s.count == 0 {
			return 0
		}
		return s.sum / float64(s.count)
	}
}

// Variance returns the sample variance for Sampled StatRecs; it is 0 for
// Interval StatRecs (time-weighted variance is not tracked).
func (s *StatRec) Variance() float64 {
	if s.kind != Sampled || s.count < 2 {
		return 0
	}
	mean := s.Mean()
	return s.sumSq/float64(s.count) - mean*mean
}

// Count returns the number of samples recorded (Sampled) or level changes
// observed (Interval).
func (s *StatRec) Count() int64 { return s.count }

// Min and Max report the sampled extrema; for Interval StatRecs they track
// the extrema of the values passed to RecordLevel.
func (s *StatRec) Min() float64 { return s.min }
func (s *StatRec) Max() float64 { return s.max }

// Histogram returns the per-bucket counts and the overflow count (values
// at or above the last bucket's upper edge), or nil if no histogram was
// configured.
func (s *StatRec) Histogram() (buckets []int64, overflow int64) {
	if len(s.histBuckets) == 0 {
		return nil, 0
	}
	out := make([]int64, len(s.histBuckets))
	copy(out, s.histBuckets)
	return out, s.histOver
}

// Finalize closes out an Interval StatRec's integral up to simulated time
// now, so Mean() reflects the full run instead of stopping at the last
// RecordLevel call.
func (s *StatRec) Finalize(now float64) {
	if s.kind != Interval {
		return
	}
	if now <= s.lastChange {
		return
	}
	s.integral += s.lastValue * (now - s.lastChange)
	s.totalTime += now - s.lastChange
	s.lastChange = now
}
