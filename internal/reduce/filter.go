package reduce

// FilterRange restricts samples to the trailing window selected by r.
// The window is anchored on the data's own maximum timestamp, not the
// wall clock, so the filter is meaningful for completed historical runs.
// When the data span is shorter than the window the input is returned
// unchanged: a short test must never look like it went offline.
func FilterRange(samples []Sample, r TimeRange) []Sample {
	window := r.WindowMs()
	if window <= 0 || len(samples) == 0 {
		return samples
	}

	minTS, maxTS := timestampSpan(samples)
	if maxTS-minTS <= window {
		return samples
	}

	cutoff := maxTS - window
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.TimestampMs >= cutoff {
			out = append(out, s)
		}
	}
	return out
}

// timestampSpan scans for the minimum and maximum timestamps. A full
// scan instead of first/last keeps the stages correct for out-of-order
// input. samples must be non-empty.
func timestampSpan(samples []Sample) (minTS, maxTS int64) {
	minTS = samples[0].TimestampMs
	maxTS = samples[0].TimestampMs
	for _, s := range samples[1:] {
		if s.TimestampMs < minTS {
			minTS = s.TimestampMs
		}
		if s.TimestampMs > maxTS {
			maxTS = s.TimestampMs
		}
	}
	return minTS, maxTS
}
