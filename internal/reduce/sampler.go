package reduce

import (
	"math"
	"sort"
)

// Weighting of the importance score. Response time dominates because it
// is the primary chart metric; throughput changes still count so load
// transitions survive sampling.
const (
	responseWeight   = 0.6
	throughputWeight = 0.4
)

// endpointFactor scales endpoint importance above the largest interior
// score so endpoints always dominate any re-ranking.
const endpointFactor = 1.5

// AdaptiveSample selects roughly maxPoints elements of series while
// always retaining both endpoints. The selection is the union of a
// uniform stride (global shape) and the highest-importance interior
// points (local anomalies such as brief error spikes). The union makes
// maxPoints a soft budget: the output may overshoot by up to the
// top-up count. Series of length 0 or 1 are returned unchanged, and
// maxPoints below 2 is clamped to 2 so both endpoints are kept.
func AdaptiveSample(series []Sample, maxPoints int) []Sample {
	if len(series) <= 1 {
		return series
	}
	if maxPoints < 2 {
		maxPoints = 2
	}
	if len(series) <= maxPoints {
		return series
	}

	n := len(series)
	scores := importanceScores(series)

	keep := make(map[int]struct{}, maxPoints+maxPoints/5)
	keep[0] = struct{}{}
	keep[n-1] = struct{}{}

	// Uniform base set.
	for i := 1; i <= maxPoints-2; i++ {
		keep[i*n/maxPoints] = struct{}{}
	}

	// High-importance top-up: the top 20% of the budget by score,
	// ties broken by lower index for determinism.
	topUp := maxPoints / 5
	if topUp > n-2 {
		topUp = n - 2
	}
	if topUp > 0 {
		interior := make([]int, 0, n-2)
		for i := 1; i < n-1; i++ {
			interior = append(interior, i)
		}
		sort.Slice(interior, func(a, b int) bool {
			ia, ib := interior[a], interior[b]
			if scores[ia] != scores[ib] {
				return scores[ia] > scores[ib]
			}
			return ia < ib
		})
		for _, idx := range interior[:topUp] {
			keep[idx] = struct{}{}
		}
	}

	indices := make([]int, 0, len(keep))
	for idx := range keep {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]Sample, 0, len(indices))
	for _, idx := range indices {
		out = append(out, series[idx])
	}
	return out
}

// importanceScores computes the per-point importance used by
// AdaptiveSample: a weighted sum of the absolute response-time and
// throughput deltas against both immediate neighbors. Endpoints score
// endpointFactor times the interior maximum.
func importanceScores(series []Sample) []float64 {
	n := len(series)
	scores := make([]float64, n)

	maxInterior := 0.0
	for i := 1; i < n-1; i++ {
		dResponse := math.Abs(series[i].ResponseTimeMs-series[i-1].ResponseTimeMs) +
			math.Abs(series[i+1].ResponseTimeMs-series[i].ResponseTimeMs)
		dThroughput := math.Abs(series[i].Throughput-series[i-1].Throughput) +
			math.Abs(series[i+1].Throughput-series[i].Throughput)

		score := responseWeight*dResponse + throughputWeight*dThroughput
		scores[i] = score
		if score > maxInterior {
			maxInterior = score
		}
	}

	scores[0] = endpointFactor * maxInterior
	scores[n-1] = endpointFactor * maxInterior
	return scores
}
