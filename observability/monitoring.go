package observability

import (
	"chat-room/domain/chat"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is a point-in-time view of the room activity and of the process.
type Stats struct {
	Responses2xx  uint64 `json:"responses_2xx"`
	Responses4xx  uint64 `json:"responses_4xx"`
	Responses5xx  uint64 `json:"responses_5xx"`
	Sweeps        uint64 `json:"sweeps"`
	SweepFailures uint64 `json:"sweep_failures"`
	Evicted       uint64 `json:"evicted"`
	LastSweep     string `json:"last_sweep"`

	RamBytes   uint64  `json:"ram_bytes"`
	CpuPercent float64 `json:"cpu_percent"`
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// Monitoring aggregates counters fed by the HTTP layer and the eviction worker.
type Monitoring struct {
	log *slog.Logger

	responses2xx  uint64
	responses4xx  uint64
	responses5xx  uint64
	sweeps        uint64
	sweepFailures uint64
	evicted       uint64

	mu        sync.RWMutex
	lastSweep time.Time
	process   *process.Process
}

func NewMonitoring(log *slog.Logger) *Monitoring {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	}
	return &Monitoring{log: log, process: p}
}

func (m *Monitoring) RecordResponse(status int) {
	switch {
	case status >= 500:
		atomic.AddUint64(&m.responses5xx, 1)
	case status >= 400:
		atomic.AddUint64(&m.responses4xx, 1)
	default:
		atomic.AddUint64(&m.responses2xx, 1)
	}
}

// RecordSweep counts a run. A failed run still counts the participants it selected.
func (m *Monitoring) RecordSweep(report chat.SweepReport, err error, at time.Time) {
	atomic.AddUint64(&m.sweeps, 1)
	atomic.AddUint64(&m.evicted, uint64(len(report.Evicted)))
	if err != nil {
		atomic.AddUint64(&m.sweepFailures, 1)
	}
	m.mu.Lock()
	m.lastSweep = at
	m.mu.Unlock()
}

func (m *Monitoring) GetLatest() Stats {
	stats := Stats{
		Responses2xx:  atomic.LoadUint64(&m.responses2xx),
		Responses4xx:  atomic.LoadUint64(&m.responses4xx),
		Responses5xx:  atomic.LoadUint64(&m.responses5xx),
		Sweeps:        atomic.LoadUint64(&m.sweeps),
		SweepFailures: atomic.LoadUint64(&m.sweepFailures),
		Evicted:       atomic.LoadUint64(&m.evicted),
		LastSweep:     "--:--:--",
	}

	m.mu.RLock()
	if !m.lastSweep.IsZero() {
		stats.LastSweep = m.lastSweep.Format(chat.TimeLayout)
	}
	m.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if m.process != nil {
		if info, err := m.process.MemoryInfo(); err == nil {
			stats.RamBytes = info.RSS
		}
		if cpu, err := m.process.CPUPercent(); err == nil {
			stats.CpuPercent = cpu
		}
	}
	return stats
}

// Snapshot flattens the latest stats for the debug inspector.
func (m *Monitoring) Snapshot() map[string]any {
	s := m.GetLatest()
	return map[string]any{
		"Responses 2xx":  s.Responses2xx,
		"Responses 4xx":  s.Responses4xx,
		"Responses 5xx":  s.Responses5xx,
		"Sweeps":         s.Sweeps,
		"Sweep failures": s.SweepFailures,
		"Evicted":        s.Evicted,
		"Last sweep":     s.LastSweep,
		"RAM (bytes)":    s.RamBytes,
		"CPU (%)":        s.CpuPercent,
		"Heap (MB)":      s.AllocMemMb,
		"GC cycles":      s.NumGC,
	}
}
