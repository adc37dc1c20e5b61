package stats_test

import (
	"testing"

	"github.com/sarchlab/rsim/stats"
)

func TestSampledMeanAndHistogram(t *testing.T) {
	s := stats.New("latency", stats.Sampled, 4, 10)
	for _, v := range []float64{1, 5, 15, 25, 35, 45} {
		s.RecordSample(v)
	}
	if got, want := s.Count(), int64(6); got != want {
		t.Fatalf("count = %d, want %d", got, want)
	}
	wantMean := (1 + 5 + 15 + 25 + 35 + 45) / 6.0
	if got := s.Mean(); got != wantMean {
		t.Fatalf("mean = %v, want %v", got, wantMean)
	}
	buckets, overflow := s.Histogram()
	// buckets are [0,10) [10,20) [20,30) [30,40); 45 overflows.
	if buckets[0] != 2 || buckets[1] != 1 || buckets[2] != 1 || buckets[3] != 1 {
		t.Fatalf("unexpected histogram buckets: %v", buckets)
	}
	if overflow != 1 {
		t.Fatalf("expected 1 overflow sample, got %d", overflow)
	}
}

func TestIntervalTimeWeightedMean(t *testing.T) {
	s := stats.New("occupancy", stats.Interval, 0, 0)
	// Level 0 from t=0, goes to 4 at t=2, goes to 0 at t=6, finalize at t=8.
	s.RecordLevel(2, 4)
	s.RecordLevel(6, 0)
	s.Finalize(8)
	// area = 0*2 + 4*4 + 0*2 = 16 over totalTime=8 -> mean 2.
	if got, want := s.Mean(), 2.0; got != want {
		t.Fatalf("mean = %v, want %v", got, want)
	}
}
