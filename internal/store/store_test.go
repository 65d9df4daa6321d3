package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sitelens/sitelens/internal/reduce"
)

func sampleBatch(startMs int64, n int) []reduce.Sample {
	out := make([]reduce.Sample, n)
	for i := range out {
		out[i] = reduce.Sample{
			TimestampMs:    startMs + int64(i)*1000,
			ResponseTimeMs: 100,
		}
	}
	return out
}

func TestAppendAndSnapshot(t *testing.T) {
	rs := NewRunStore()

	rs.Append("run-1", sampleBatch(0, 10))

	samples, rev, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(samples) != 10 {
		t.Errorf("expected 10 samples, got %d", len(samples))
	}
	if rev != 1 {
		t.Errorf("expected revision 1, got %d", rev)
	}
}

func TestSnapshotUnknownRun(t *testing.T) {
	rs := NewRunStore()

	if _, _, err := rs.Snapshot("missing"); err == nil {
		t.Error("expected error for unknown run")
	}
	if _, err := rs.GetRun("missing"); err == nil {
		t.Error("expected error for unknown run metadata")
	}
}

func TestRevisionBumpsPerAppend(t *testing.T) {
	rs := NewRunStore()

	rs.Append("run-1", sampleBatch(0, 5))
	rs.Append("run-1", sampleBatch(5000, 5))

	_, rev, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if rev != 2 {
		t.Errorf("expected revision 2 after two appends, got %d", rev)
	}
}

func TestAppendSortsOutOfOrderBatches(t *testing.T) {
	rs := NewRunStore()

	rs.Append("run-1", sampleBatch(10_000, 5))
	rs.Append("run-1", sampleBatch(0, 5))

	samples, _, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].TimestampMs < samples[i-1].TimestampMs {
			t.Fatalf("samples not sorted at position %d", i)
		}
	}
}

func TestRunInfoTracksSpan(t *testing.T) {
	rs := NewRunStore()
	rs.CreateRun("run-1", "checkout stress", "https://shop.example.com")
	rs.Append("run-1", sampleBatch(5000, 10))

	info, err := rs.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if info.Label != "checkout stress" {
		t.Errorf("expected label, got %q", info.Label)
	}
	if info.TargetURL != "https://shop.example.com" {
		t.Errorf("expected target URL, got %q", info.TargetURL)
	}
	if info.StartTimeMs != 5000 {
		t.Errorf("expected start 5000, got %d", info.StartTimeMs)
	}
	if info.EndTimeMs != 14_000 {
		t.Errorf("expected end 14000, got %d", info.EndTimeMs)
	}
	if info.SampleCount != 10 {
		t.Errorf("expected 10 samples, got %d", info.SampleCount)
	}
}

func TestSampleLimitTruncates(t *testing.T) {
	rs := NewRunStoreWithConfig(&Config{MaxSamplesPerRun: 5, MaxRuns: 10})

	rs.Append("run-1", sampleBatch(0, 10))

	samples, _, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(samples) != 5 {
		t.Errorf("expected 5 samples after truncation, got %d", len(samples))
	}
	info, _ := rs.GetRun("run-1")
	if !info.Truncated {
		t.Error("expected truncated flag")
	}
}

func TestMaxRunsEvictsOldest(t *testing.T) {
	rs := NewRunStoreWithConfig(&Config{MaxSamplesPerRun: 0, MaxRuns: 3})

	for i := 0; i < 5; i++ {
		rs.Append(fmt.Sprintf("run-%d", i), sampleBatch(0, 1))
	}

	if rs.RunCount() != 3 {
		t.Fatalf("expected 3 runs after eviction, got %d", rs.RunCount())
	}
	if rs.HasRun("run-0") || rs.HasRun("run-1") {
		t.Error("expected oldest runs evicted")
	}
	if !rs.HasRun("run-4") {
		t.Error("expected newest run retained")
	}
}

func TestDeleteRun(t *testing.T) {
	rs := NewRunStore()
	rs.Append("run-1", sampleBatch(0, 1))
	rs.DeleteRun("run-1")

	if rs.HasRun("run-1") {
		t.Error("expected run deleted")
	}
	if rs.RunCount() != 0 {
		t.Errorf("expected 0 runs, got %d", rs.RunCount())
	}
	// Deleting again is a no-op.
	rs.DeleteRun("run-1")
}

func TestRevisionsNotReusedAfterDelete(t *testing.T) {
	rs := NewRunStore()

	rs.Append("run-1", sampleBatch(0, 5))
	_, firstRev, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	rs.DeleteRun("run-1")

	// A recreated run with the same ID must never repeat a revision the
	// old incarnation used, or (run ID, revision) cache keys collide.
	rs.Append("run-1", sampleBatch(0, 5))
	_, secondRev, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if secondRev <= firstRev {
		t.Errorf("expected recreated run revision > %d, got %d", firstRev, secondRev)
	}
}

func TestListRunsInsertionOrder(t *testing.T) {
	rs := NewRunStore()
	rs.Append("run-b", sampleBatch(0, 1))
	rs.Append("run-a", sampleBatch(0, 1))

	infos := rs.ListRuns()
	if len(infos) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(infos))
	}
	if infos[0].RunID != "run-b" || infos[1].RunID != "run-a" {
		t.Errorf("expected insertion order, got %s then %s", infos[0].RunID, infos[1].RunID)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	rs := NewRunStore()
	rs.Append("run-1", sampleBatch(0, 3))

	snap, _, _ := rs.Snapshot("run-1")
	snap[0].ResponseTimeMs = 9999

	again, _, _ := rs.Snapshot("run-1")
	if again[0].ResponseTimeMs == 9999 {
		t.Error("snapshot must not alias internal storage")
	}
}

func TestConcurrentAppend(t *testing.T) {
	rs := NewRunStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(offset int64) {
			defer wg.Done()
			rs.Append("run-1", sampleBatch(offset*10_000, 100))
		}(int64(i))
	}
	wg.Wait()

	samples, rev, err := rs.Snapshot("run-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(samples) != 1000 {
		t.Errorf("expected 1000 samples, got %d", len(samples))
	}
	if rev != 10 {
		t.Errorf("expected revision 10, got %d", rev)
	}
}
