package reduce

import (
	"testing"
)

// oscillating builds n evenly spaced samples whose response time
// alternates between lo and hi.
func oscillating(n int, lo, hi float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		rt := lo
		if i%2 == 1 {
			rt = hi
		}
		out[i] = Sample{TimestampMs: int64(i) * 1000, ResponseTimeMs: rt, Throughput: 10}
	}
	return out
}

func TestAdaptiveSampleSmallSeriesUnchanged(t *testing.T) {
	if out := AdaptiveSample(nil, 500); len(out) != 0 {
		t.Errorf("expected empty output, got %d", len(out))
	}

	one := []Sample{{ResponseTimeMs: 42}}
	if out := AdaptiveSample(one, 500); len(out) != 1 {
		t.Errorf("expected single sample back, got %d", len(out))
	}

	small := evenSamples(100, 0, 1000)
	out := AdaptiveSample(small, 500)
	if len(out) != 100 {
		t.Errorf("expected series under budget unchanged, got %d", len(out))
	}
}

func TestAdaptiveSampleEndpointsPreserved(t *testing.T) {
	series := oscillating(3000, 50, 500)
	for _, maxPoints := range []int{2, 10, 500, 1000} {
		out := AdaptiveSample(series, maxPoints)
		if len(out) == 0 {
			t.Fatalf("maxPoints %d: empty output", maxPoints)
		}
		if out[0] != series[0] {
			t.Errorf("maxPoints %d: first element not preserved", maxPoints)
		}
		if out[len(out)-1] != series[len(series)-1] {
			t.Errorf("maxPoints %d: last element not preserved", maxPoints)
		}
	}
}

func TestAdaptiveSampleBudget(t *testing.T) {
	// 3000 oscillating samples at maxPoints=500: the union of the
	// uniform base set and the importance top-up may overshoot by up to
	// 20% of the budget, never more.
	series := oscillating(3000, 50, 500)
	out := AdaptiveSample(series, 500)

	if len(out) < 500 || len(out) > 600 {
		t.Fatalf("expected between 500 and 600 points, got %d", len(out))
	}
	if out[0] != series[0] || out[len(out)-1] != series[2999] {
		t.Error("endpoints not preserved")
	}
	if len(out) > len(series) {
		t.Error("sampling must never grow the series")
	}
}

func TestAdaptiveSampleClampsMaxPoints(t *testing.T) {
	series := evenSamples(5, 0, 1000)
	for _, maxPoints := range []int{-1, 0, 1} {
		out := AdaptiveSample(series, maxPoints)
		if len(out) != 2 {
			t.Fatalf("maxPoints %d: expected both endpoints, got %d points", maxPoints, len(out))
		}
		if out[0] != series[0] || out[1] != series[4] {
			t.Errorf("maxPoints %d: expected endpoints, got %+v", maxPoints, out)
		}
	}
}

func TestAdaptiveSampleDeterministicTieBreak(t *testing.T) {
	// Flat series: every interior score is 0, so the top-up must pick
	// the lowest indices. Two invocations must agree exactly.
	series := evenSamples(100, 0, 1000)
	a := AdaptiveSample(series, 10)
	b := AdaptiveSample(series, 10)

	if len(a) != len(b) {
		t.Fatalf("non-deterministic output length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic selection at position %d", i)
		}
	}
}

func TestAdaptiveSampleKeepsSpike(t *testing.T) {
	// A single one-point latency spike in an otherwise flat series must
	// survive sampling via the importance top-up; a pure uniform stride
	// would usually miss it.
	series := evenSamples(1000, 0, 1000)
	series[637].ResponseTimeMs = 5000

	out := AdaptiveSample(series, 50)

	found := false
	for _, s := range out {
		if s.ResponseTimeMs == 5000 {
			found = true
			break
		}
	}
	if !found {
		t.Error("latency spike was dropped by adaptive sampling")
	}
}

func TestAdaptiveSampleSortedOutput(t *testing.T) {
	series := oscillating(3000, 50, 500)
	out := AdaptiveSample(series, 500)

	for i := 1; i < len(out); i++ {
		if out[i].TimestampMs <= out[i-1].TimestampMs {
			t.Fatalf("output not strictly ordered at position %d", i)
		}
	}
}

func TestImportanceScoresEndpointsDominate(t *testing.T) {
	series := oscillating(100, 50, 500)
	scores := importanceScores(series)

	maxInterior := 0.0
	for i := 1; i < len(scores)-1; i++ {
		if scores[i] > maxInterior {
			maxInterior = scores[i]
		}
	}
	if scores[0] != 1.5*maxInterior {
		t.Errorf("expected first endpoint score %f, got %f", 1.5*maxInterior, scores[0])
	}
	if scores[len(scores)-1] != 1.5*maxInterior {
		t.Errorf("expected last endpoint score %f, got %f", 1.5*maxInterior, scores[len(scores)-1])
	}
}
