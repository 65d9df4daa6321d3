// Package reduce implements the chart reduction pipeline for test run
// telemetry: time-range filtering, interval aggregation, adaptive
// down-sampling, an optional average overlay, and a response-time
// distribution histogram. Every stage is a pure function: inputs are
// never mutated, empty input yields empty output, and no stage can
// fail.
package reduce

// TimeRange selects the trailing window applied by FilterRange.
type TimeRange string

const (
	// RangeAll disables time filtering.
	RangeAll TimeRange = "all"

	// RangeLast1Min keeps the trailing minute of the data's own span.
	RangeLast1Min TimeRange = "last1min"

	// RangeLast5Min keeps the trailing five minutes of the data's own span.
	RangeLast5Min TimeRange = "last5min"
)

// WindowMs returns the window length in milliseconds, or 0 when the
// range applies no window (RangeAll or an unrecognized value).
func (r TimeRange) WindowMs() int64 {
	switch r {
	case RangeLast1Min:
		return 60 * 1000
	case RangeLast5Min:
		return 5 * 60 * 1000
	default:
		return 0
	}
}

// Valid reports whether r is one of the supported ranges.
func (r TimeRange) Valid() bool {
	switch r {
	case RangeAll, RangeLast1Min, RangeLast5Min:
		return true
	}
	return false
}

// Sample is one raw telemetry point collected during a test run.
type Sample struct {
	// TimestampMs is the absolute sample time in Unix milliseconds.
	// Non-decreasing order is assumed but not guaranteed by sources;
	// all stages tolerate out-of-order input.
	TimestampMs int64 `json:"timestamp_ms"`

	// ResponseTimeMs is the primary metric, in milliseconds.
	ResponseTimeMs float64 `json:"response_time_ms"`

	// Throughput is requests per second at this point. Optional, 0 if absent.
	Throughput float64 `json:"throughput"`

	// ActiveUsers is the number of concurrent virtual users. Optional.
	ActiveUsers int `json:"active_users"`

	// ErrorRate is a percentage in [0, 100]. Optional.
	ErrorRate float64 `json:"error_rate"`

	// StatusCode, Phase and Success are passthrough fields: preserved
	// by the pipeline but never transformed.
	StatusCode int    `json:"status_code,omitempty"`
	Phase      string `json:"phase,omitempty"`
	Success    bool   `json:"success"`
}

// ReducedPoint is a pipeline output point. AverageResponseTime is set
// on every point when the overlay stage is enabled; it is the flat mean
// of the output series, not a rolling average.
type ReducedPoint struct {
	Sample
	AverageResponseTime *float64 `json:"average_response_time,omitempty"`
}

// DistributionBucket is one bar of the response-time histogram.
type DistributionBucket struct {
	// Range is the human-readable bucket label, e.g. "0-50ms".
	Range string `json:"range"`

	// Count is the number of points whose response time falls in the
	// bucket's half-open interval.
	Count int `json:"count"`

	// Percentage is Count / total * 100, or 0 when the series is empty.
	Percentage float64 `json:"percentage"`

	// Color is the severity tier of the bucket (fast, moderate, slow,
	// very-slow). Purely presentational.
	Color string `json:"color"`

	// Height is the log-compressed visual bar height consumed by the
	// rendering layer.
	Height float64 `json:"height"`
}

// Options configures one pipeline invocation. All fields are comparable
// so Options can participate in the Reducer cache key.
type Options struct {
	// TimeRange selects the trailing window (stage 1).
	TimeRange TimeRange

	// IntervalMs is the aggregation window width (stage 2). 0 means no
	// aggregation.
	IntervalMs int64

	// MaxPoints is the soft point budget for adaptive sampling. The
	// output may overshoot slightly due to the importance top-up.
	MaxPoints int

	// AdaptiveSampling enables stage 3.
	AdaptiveSampling bool

	// AverageOverlay enables stage 4.
	AverageOverlay bool
}

// DefaultOptions returns the options used by the dashboard's default view.
func DefaultOptions() Options {
	return Options{
		TimeRange:        RangeAll,
		IntervalMs:       0,
		MaxPoints:        1000,
		AdaptiveSampling: true,
		AverageOverlay:   false,
	}
}

// Result is the chart-ready output of one pipeline invocation.
type Result struct {
	Points       []ReducedPoint       `json:"points"`
	Distribution []DistributionBucket `json:"distribution"`
}
