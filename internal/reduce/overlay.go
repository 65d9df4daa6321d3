package reduce

import "math"

// WithAverage returns a copy of points with AverageResponseTime set on
// every element to the arithmetic mean of the series' response times,
// rounded to 3 decimal places. The value is identical on every point:
// it renders as a flat reference line, not a moving average. An empty
// series is returned as-is.
func WithAverage(points []ReducedPoint) []ReducedPoint {
	if len(points) == 0 {
		return points
	}

	sum := 0.0
	for _, p := range points {
		sum += p.ResponseTimeMs
	}
	avg := math.Round(sum/float64(len(points))*1000) / 1000

	out := make([]ReducedPoint, len(points))
	copy(out, points)
	for i := range out {
		v := avg
		out[i].AverageResponseTime = &v
	}
	return out
}
