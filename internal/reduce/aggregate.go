package reduce

import (
	"math"
	"sort"
)

// AggregateInterval partitions samples into consecutive fixed-width
// windows of intervalMs and reduces each non-empty window to one point:
// mean response time, throughput and error rate, rounded mean active
// users, and the window midpoint as the timestamp so the point plots
// centered under the data it represents. Passthrough fields come from
// the first sample seen in the window. Empty windows are skipped, not
// emitted as zero points. intervalMs <= 0 is an identity passthrough.
func AggregateInterval(samples []Sample, intervalMs int64) []Sample {
	if intervalMs <= 0 || len(samples) == 0 {
		return samples
	}

	minTS, _ := timestampSpan(samples)

	type window struct {
		first         Sample
		count         int
		sumResponse   float64
		sumThroughput float64
		sumErrorRate  float64
		sumUsers      int64
	}

	windows := make(map[int64]*window)
	for _, s := range samples {
		idx := (s.TimestampMs - minTS) / intervalMs
		w, ok := windows[idx]
		if !ok {
			w = &window{first: s}
			windows[idx] = w
		}
		w.count++
		w.sumResponse += s.ResponseTimeMs
		w.sumThroughput += s.Throughput
		w.sumErrorRate += s.ErrorRate
		w.sumUsers += int64(s.ActiveUsers)
	}

	indices := make([]int64, 0, len(windows))
	for idx := range windows {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]Sample, 0, len(windows))
	for _, idx := range indices {
		w := windows[idx]
		n := float64(w.count)

		agg := w.first
		agg.TimestampMs = minTS + idx*intervalMs + intervalMs/2
		agg.ResponseTimeMs = w.sumResponse / n
		agg.Throughput = w.sumThroughput / n
		agg.ErrorRate = w.sumErrorRate / n
		agg.ActiveUsers = int(math.Round(float64(w.sumUsers) / n))
		out = append(out, agg)
	}
	return out
}
