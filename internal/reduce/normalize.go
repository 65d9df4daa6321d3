package reduce

import (
	"encoding/json"
	"strconv"
)

// SampleRecord is a loosely-typed telemetry record as supplied by an
// external source. Producers disagree on key names (responseTime,
// avgResponseTime, response_time, ...), so the synonyms are resolved
// once here at the pipeline boundary and every downstream stage
// operates on the strict Sample shape.
type SampleRecord map[string]any

// Normalize maps a raw record onto the canonical Sample. Missing or
// malformed numeric fields become 0, negative metrics clamp to 0, and
// the error rate clamps to [0, 100]. Normalize never fails.
func Normalize(rec SampleRecord) Sample {
	errorRate := numField(rec, "error_rate", "errorRate")
	if errorRate < 0 {
		errorRate = 0
	} else if errorRate > 100 {
		errorRate = 100
	}

	return Sample{
		TimestampMs:    int64(numField(rec, "timestamp_ms", "timestampMs", "timestamp", "time", "ts")),
		ResponseTimeMs: nonNegative(numField(rec, "response_time_ms", "responseTime", "response_time", "avgResponseTime", "latency_ms")),
		Throughput:     nonNegative(numField(rec, "throughput", "tps", "requests_per_second", "requestsPerSecond")),
		ActiveUsers:    int(nonNegative(numField(rec, "active_users", "activeUsers", "users", "vus"))),
		ErrorRate:      errorRate,
		StatusCode:     int(numField(rec, "status_code", "statusCode", "status")),
		Phase:          strField(rec, "phase", "stage", "label"),
		Success:        boolField(rec, "success", "ok"),
	}
}

// NormalizeAll maps a batch of raw records onto canonical Samples.
func NormalizeAll(recs []SampleRecord) []Sample {
	out := make([]Sample, len(recs))
	for i, rec := range recs {
		out[i] = Normalize(rec)
	}
	return out
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// numField returns the first key present in rec coerced to a float64.
// JSON decoding yields float64 for numbers, but integer and string
// forms show up from non-JSON producers and are accepted too.
func numField(rec SampleRecord, keys ...string) float64 {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func strField(rec SampleRecord, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k].(string); ok {
			return v
		}
	}
	return ""
}

func boolField(rec SampleRecord, keys ...string) bool {
	for _, k := range keys {
		if v, ok := rec[k].(bool); ok {
			return v
		}
	}
	return false
}
