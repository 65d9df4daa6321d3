package reduce

import "math"

// Severity tiers for distribution buckets.
const (
	ColorFast     = "fast"
	ColorModerate = "moderate"
	ColorSlow     = "slow"
	ColorVerySlow = "very-slow"
)

type bucketBound struct {
	label string
	lower float64
	upper float64 // +Inf for the open-ended final bucket
	color string
}

// distributionBounds is the fixed response-time ladder. Boundaries are
// absolute, not data-relative, so the same latency value maps to the
// same bucket across different test runs.
var distributionBounds = []bucketBound{
	{"0-50ms", 0, 50, ColorFast},
	{"50-100ms", 50, 100, ColorFast},
	{"100-200ms", 100, 200, ColorModerate},
	{"200-500ms", 200, 500, ColorModerate},
	{"500-1000ms", 500, 1000, ColorSlow},
	{"1000-2000ms", 1000, 2000, ColorSlow},
	{"2000ms+", 2000, math.Inf(1), ColorVerySlow},
}

// Distribution builds the response-time frequency histogram over
// series. Each point is counted in the bucket whose half-open interval
// [lower, upper) contains its response time. An empty series yields an
// empty bucket slice.
func Distribution(series []Sample) []DistributionBucket {
	if len(series) == 0 {
		return []DistributionBucket{}
	}

	counts := make([]int, len(distributionBounds))
	for _, s := range series {
		for i, b := range distributionBounds {
			if s.ResponseTimeMs >= b.lower && s.ResponseTimeMs < b.upper {
				counts[i]++
				break
			}
		}
	}

	total := len(series)
	maxCount := 1 // floor of 1 keeps the height denominator non-zero
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	out := make([]DistributionBucket, len(distributionBounds))
	for i, b := range distributionBounds {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[i]) / float64(total) * 100
		}
		out[i] = DistributionBucket{
			Range:      b.label,
			Count:      counts[i],
			Percentage: pct,
			Color:      b.color,
			Height:     bucketHeight(counts[i], maxCount),
		}
	}
	return out
}

// bucketHeight maps a count onto a log-compressed visual height so one
// dominant bucket does not visually erase the smaller ones. Non-empty
// buckets get a minimum height of 3.
func bucketHeight(count, maxCount int) float64 {
	h := math.Log(float64(count+1))/math.Log(float64(maxCount+1))*85 + 5
	floor := 0.0
	if count > 0 {
		floor = 3
	}
	return math.Max(h, floor)
}
