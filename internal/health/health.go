// Package health collects host and process resource metrics for the
// /status endpoint using gopsutil.
package health

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostMetrics describes resource usage of the host machine.
type HostMetrics struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemTotal     uint64  `json:"mem_total"`
	MemUsed      uint64  `json:"mem_used"`
	MemAvailable uint64  `json:"mem_available"`
	SwapUsed     uint64  `json:"swap_used"`
	LoadAvg1     float64 `json:"load_avg_1"`
	LoadAvg5     float64 `json:"load_avg_5"`
	LoadAvg15    float64 `json:"load_avg_15"`
}

// ProcessMetrics describes resource usage of this server process.
type ProcessMetrics struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemRSS     uint64  `json:"mem_rss"`
	MemVMS     uint64  `json:"mem_vms"`
	NumThreads int     `json:"num_threads"`
	NumFDs     int     `json:"num_fds"`
	Goroutines int     `json:"goroutines"`
}

// Snapshot is a point-in-time view of host and process health.
type Snapshot struct {
	TimestampMs int64           `json:"timestamp_ms"`
	Host        *HostMetrics    `json:"host,omitempty"`
	Process     *ProcessMetrics `json:"process,omitempty"`
}

// Monitor periodically collects health snapshots for this process.
type Monitor struct {
	interval time.Duration
	proc     *process.Process

	mu      sync.RWMutex
	last    Snapshot
	hasLast bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor that samples at the given interval.
// A non-positive interval defaults to 10 seconds.
func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	// Process lookup can fail on exotic platforms; host metrics still work.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("process_metrics_unavailable", "error", err)
		proc = nil
	}

	return &Monitor{
		interval: interval,
		proc:     proc,
	}
}

// Start begins periodic collection until the context is cancelled or
// Stop is called. It collects one snapshot immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.store(m.Collect())

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.store(m.Collect())
			}
		}
	}()
}

// Stop halts periodic collection and waits for the loop to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Latest returns the most recent snapshot, if one has been collected.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.hasLast
}

// Collect gathers a snapshot right now, independent of the periodic loop.
func (m *Monitor) Collect() Snapshot {
	snap := Snapshot{
		TimestampMs: time.Now().UnixMilli(),
	}

	cpuPercent, err := cpu.Percent(0, false)
	if err == nil && len(cpuPercent) > 0 {
		snap.Host = &HostMetrics{
			CPUPercent: cpuPercent[0],
		}

		if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
			snap.Host.MemTotal = memInfo.Total
			snap.Host.MemUsed = memInfo.Used
			snap.Host.MemAvailable = memInfo.Available
		}

		if swapInfo, err := mem.SwapMemory(); err == nil && swapInfo != nil {
			snap.Host.SwapUsed = swapInfo.Used
		}

		// Load average is unavailable on Windows; leave it zero there.
		if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
			snap.Host.LoadAvg1 = loadAvg.Load1
			snap.Host.LoadAvg5 = loadAvg.Load5
			snap.Host.LoadAvg15 = loadAvg.Load15
		}
	}

	if m.proc != nil {
		cpuPct, _ := m.proc.CPUPercent()
		numThreads, _ := m.proc.NumThreads()

		snap.Process = &ProcessMetrics{
			PID:        int(m.proc.Pid),
			CPUPercent: cpuPct,
			NumThreads: int(numThreads),
			Goroutines: runtime.NumGoroutine(),
		}

		if memInfo, err := m.proc.MemoryInfo(); err == nil && memInfo != nil {
			snap.Process.MemRSS = memInfo.RSS
			snap.Process.MemVMS = memInfo.VMS
		}

		// File descriptors are Unix only, ignore the error elsewhere.
		if numFDs, err := m.proc.NumFDs(); err == nil {
			snap.Process.NumFDs = int(numFDs)
		}
	}

	return snap
}

func (m *Monitor) store(snap Snapshot) {
	m.mu.Lock()
	m.last = snap
	m.hasLast = true
	m.mu.Unlock()
}
