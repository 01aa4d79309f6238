package scheduler

import (
	"math/rand"
	"sort"
	"testing"
)

func TestQuantileEstimatorApproximatesMedian(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = rng.Float64() * 1000
	}

	e := newQuantileEstimator(0.5)
	for _, s := range samples {
		e.Update(s)
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	want := sorted[len(sorted)/2]

	got := e.Quantile()
	if got < want-50 || got > want+50 {
		t.Fatalf("P50 estimate %f too far from true median %f", got, want)
	}
}

func TestQuantileEstimatorZeroSamples(t *testing.T) {
	e := newQuantileEstimator(0.99)
	if got := e.Quantile(); got != 0 {
		t.Fatalf("Quantile() with no samples = %f, want 0", got)
	}
}

func TestQuantileEstimatorFewSamples(t *testing.T) {
	e := newQuantileEstimator(0.5)
	e.Update(10)
	e.Update(30)
	e.Update(20)
	got := e.Quantile()
	if got < 10 || got > 30 {
		t.Fatalf("Quantile() with 3 samples = %f, want within [10, 30]", got)
	}
}

func TestSchedulingLatencySnapshotCountsSamples(t *testing.T) {
	sl := newSchedulingLatency()
	for i := 0; i < 10; i++ {
		sl.observe(float64(i * 100))
	}
	snap := sl.snapshot()
	if snap.Samples != 10 {
		t.Fatalf("Samples = %d, want 10", snap.Samples)
	}
	if snap.P99Micros < snap.P50Micros {
		t.Fatalf("P99 (%f) should be >= P50 (%f) for an increasing sample sequence", snap.P99Micros, snap.P50Micros)
	}
}
