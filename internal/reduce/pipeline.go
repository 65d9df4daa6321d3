package reduce

import (
	"sync/atomic"

	"github.com/maypok86/otter"
)

// Reduce runs the full pipeline over samples: time-range filter,
// interval aggregation, adaptive sampling and the average overlay for
// the chart path, plus the distribution histogram computed from the
// filtered (but not aggregated) series. The input is never mutated and
// the stages allocate fresh output, so concurrent invocations over the
// same slice are safe.
func Reduce(samples []Sample, opts Options) *Result {
	filtered := FilterRange(samples, opts.TimeRange)

	series := AggregateInterval(filtered, opts.IntervalMs)
	if opts.AdaptiveSampling {
		series = AdaptiveSample(series, opts.MaxPoints)
	}

	points := make([]ReducedPoint, len(series))
	for i, s := range series {
		points[i] = ReducedPoint{Sample: s}
	}
	if opts.AverageOverlay {
		points = WithAverage(points)
	}

	return &Result{
		Points:       points,
		Distribution: Distribution(filtered),
	}
}

// reduceKey identifies one memoized pipeline result. The revision is a
// counter advanced by the caller whenever the run's raw samples change.
// Callers must never reuse a revision for different data under the same
// run ID, including across a delete and recreate of the run.
type reduceKey struct {
	runID    string
	revision uint64
	opts     Options
}

// Reducer memoizes Reduce results so re-renders with unchanged data and
// options do not recompute the pipeline. Bounded by an otter cache with
// cost-1 entries.
type Reducer struct {
	cache  otter.Cache[reduceKey, *Result]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewReducer creates a Reducer whose cache holds up to maxEntries results.
func NewReducer(maxEntries int) *Reducer {
	cache, err := otter.MustBuilder[reduceKey, *Result](maxEntries).
		Cost(func(_ reduceKey, _ *Result) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("reduce: failed to create result cache: " + err.Error())
	}
	return &Reducer{cache: cache}
}

// Reduce returns the memoized pipeline result for (runID, revision,
// opts), computing and caching it on a miss. Callers must treat the
// returned Result as immutable.
func (r *Reducer) Reduce(runID string, revision uint64, samples []Sample, opts Options) *Result {
	key := reduceKey{runID: runID, revision: revision, opts: opts}

	if cached, ok := r.cache.Get(key); ok {
		r.hits.Add(1)
		return cached
	}

	result := Reduce(samples, opts)
	r.cache.Set(key, result)
	r.misses.Add(1)
	return result
}

// Stats returns the cumulative cache hit and miss counts.
func (r *Reducer) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

// Close releases resources held by the underlying cache.
func (r *Reducer) Close() {
	r.cache.Close()
}
