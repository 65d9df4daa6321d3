// Package store provides in-memory storage of raw test-run telemetry.
// Runs are ephemeral: reduced series are recomputed from the raw
// samples on demand, so only the raw samples and a little metadata are
// kept here.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sitelens/sitelens/internal/reduce"
)

// Config configures memory limits for the run store.
type Config struct {
	// MaxSamplesPerRun limits samples stored per run. 0 = unlimited.
	MaxSamplesPerRun int
	// MaxRuns limits total runs in memory. 0 = unlimited.
	// When exceeded, oldest runs are evicted.
	MaxRuns int
}

// DefaultConfig returns sensible defaults for the run store.
func DefaultConfig() *Config {
	return &Config{
		MaxSamplesPerRun: 1_000_000, // ~28 hours at 10 samples/sec
		MaxRuns:          100,
	}
}

// RunInfo is the metadata summary of a stored run.
type RunInfo struct {
	RunID       string `json:"run_id"`
	Label       string `json:"label,omitempty"`
	TargetURL   string `json:"target_url,omitempty"`
	StartTimeMs int64  `json:"start_time_ms"`
	EndTimeMs   int64  `json:"end_time_ms"`
	SampleCount int    `json:"sample_count"`
	Revision    uint64 `json:"revision"`
	Truncated   bool   `json:"truncated,omitempty"`
}

type runData struct {
	info    RunInfo
	samples []reduce.Sample
	// sorted tracks whether samples are in ascending timestamp order so
	// appends of already-ordered batches skip the re-sort.
	sorted bool
}

// RunStore holds raw samples per run. Thread-safe. Each mutation
// assigns the run a fresh revision, which downstream reduction caches
// use as part of their key.
type RunStore struct {
	mu     sync.RWMutex
	runs   map[string]*runData
	config *Config
	// runOrder tracks insertion order for LRU eviction.
	runOrder []string
	// revisions is a store-global counter. Revisions are allocated from
	// it rather than per run so a deleted and recreated run never
	// repeats a revision, keeping (run ID, revision) cache keys unique
	// across run lifetimes.
	revisions uint64
}

// NewRunStore creates a RunStore with default limits.
func NewRunStore() *RunStore {
	return NewRunStoreWithConfig(DefaultConfig())
}

// NewRunStoreWithConfig creates a RunStore with the given limits.
func NewRunStoreWithConfig(config *Config) *RunStore {
	if config == nil {
		config = DefaultConfig()
	}
	return &RunStore{
		runs:     make(map[string]*runData),
		config:   config,
		runOrder: make([]string, 0),
	}
}

// CreateRun registers a run with its metadata. Creating an existing run
// updates the metadata without touching samples.
func (rs *RunStore) CreateRun(runID, label, targetURL string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rd := rs.getOrCreateRun(runID)
	if label != "" {
		rd.info.Label = label
	}
	if targetURL != "" {
		rd.info.TargetURL = targetURL
	}
}

// Append adds a batch of samples to a run, creating it if needed. The
// per-run sample cap is enforced with a one-time warning; excess
// samples in the batch are dropped.
func (rs *RunStore) Append(runID string, samples []reduce.Sample) {
	if len(samples) == 0 {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rd := rs.getOrCreateRun(runID)

	for _, s := range samples {
		if rs.config.MaxSamplesPerRun > 0 && len(rd.samples) >= rs.config.MaxSamplesPerRun {
			if !rd.info.Truncated {
				rd.info.Truncated = true
				slog.Warn("run_samples_truncated",
					"run_id", runID,
					"limit", rs.config.MaxSamplesPerRun)
			}
			break
		}

		if rd.info.StartTimeMs == 0 || s.TimestampMs < rd.info.StartTimeMs {
			rd.info.StartTimeMs = s.TimestampMs
		}
		if s.TimestampMs > rd.info.EndTimeMs {
			rd.info.EndTimeMs = s.TimestampMs
		}

		rd.samples = append(rd.samples, s)
		rd.sorted = rd.sorted && (len(rd.samples) < 2 ||
			rd.samples[len(rd.samples)-2].TimestampMs <= s.TimestampMs)
	}

	if !rd.sorted {
		sort.Slice(rd.samples, func(i, j int) bool {
			return rd.samples[i].TimestampMs < rd.samples[j].TimestampMs
		})
		rd.sorted = true
	}

	rd.info.SampleCount = len(rd.samples)
	rs.revisions++
	rd.info.Revision = rs.revisions
}

// Snapshot returns a copy of a run's samples together with the revision
// the copy corresponds to.
func (rs *RunStore) Snapshot(runID string) ([]reduce.Sample, uint64, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	rd, ok := rs.runs[runID]
	if !ok {
		return nil, 0, fmt.Errorf("run not found: %s", runID)
	}

	samples := make([]reduce.Sample, len(rd.samples))
	copy(samples, rd.samples)
	return samples, rd.info.Revision, nil
}

// GetRun returns the metadata for a run.
func (rs *RunStore) GetRun(runID string) (RunInfo, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	rd, ok := rs.runs[runID]
	if !ok {
		return RunInfo{}, fmt.Errorf("run not found: %s", runID)
	}
	return rd.info, nil
}

// HasRun reports whether the run exists.
func (rs *RunStore) HasRun(runID string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	_, ok := rs.runs[runID]
	return ok
}

// ListRuns returns metadata for all stored runs in insertion order.
func (rs *RunStore) ListRuns() []RunInfo {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]RunInfo, 0, len(rs.runs))
	for _, runID := range rs.runOrder {
		if rd, ok := rs.runs[runID]; ok {
			out = append(out, rd.info)
		}
	}
	return out
}

// DeleteRun removes a run and its samples.
func (rs *RunStore) DeleteRun(runID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delete(rs.runs, runID)
	for i, id := range rs.runOrder {
		if id == runID {
			rs.runOrder = append(rs.runOrder[:i], rs.runOrder[i+1:]...)
			break
		}
	}
}

// RunCount returns the number of stored runs.
func (rs *RunStore) RunCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return len(rs.runs)
}

// getOrCreateRun returns the run entry, creating it if needed.
// Must be called with lock held so eviction and run order are consistent.
func (rs *RunStore) getOrCreateRun(runID string) *runData {
	if rd, ok := rs.runs[runID]; ok {
		return rd
	}

	rs.evictIfNeeded()

	rd := &runData{
		info:    RunInfo{RunID: runID},
		samples: make([]reduce.Sample, 0),
		sorted:  true,
	}
	rs.runs[runID] = rd
	rs.runOrder = append(rs.runOrder, runID)
	return rd
}

// evictIfNeeded removes oldest runs if MaxRuns is exceeded.
// Must be called with lock held.
func (rs *RunStore) evictIfNeeded() {
	if rs.config.MaxRuns <= 0 {
		return
	}

	for len(rs.runs) >= rs.config.MaxRuns && len(rs.runOrder) > 0 {
		oldestID := rs.runOrder[0]
		rs.runOrder = rs.runOrder[1:]
		delete(rs.runs, oldestID)
		slog.Info("run_evicted", "run_id", oldestID, "reason", "max_runs_exceeded")
	}
}
