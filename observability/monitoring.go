package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats aggregates broker and process metrics for the stats endpoint.
type Stats struct {
	ConnectedUsers int `json:"connected_users"`
	ActiveRooms    int `json:"active_rooms"`
	QueueDepth     int `json:"queue_depth"`

	Enqueued       uint64 `json:"enqueued"`
	Delivered      uint64 `json:"delivered"`
	Dropped        uint64 `json:"dropped"`
	Failed         uint64 `json:"failed"`
	WorkerRestarts uint64 `json:"worker_restarts"`

	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Uptime     string  `json:"uptime"`
}

// Monitoring counts delivery outcomes. All methods are safe for concurrent use.
type Monitoring struct {
	log       *slog.Logger
	startedAt time.Time
	self      *process.Process

	enqueued       atomic.Uint64
	delivered      atomic.Uint64
	dropped        atomic.Uint64
	failed         atomic.Uint64
	workerRestarts atomic.Uint64
}

func NewMonitoring(log *slog.Logger) *Monitoring {
	m := &Monitoring{log: log, startedAt: time.Now()}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
	} else {
		m.self = p
	}
	return m
}

func (m *Monitoring) IncrEnqueued(n int) { m.enqueued.Add(uint64(n)) }
func (m *Monitoring) IncrDelivered()     { m.delivered.Add(1) }
func (m *Monitoring) IncrDropped()       { m.dropped.Add(1) }
func (m *Monitoring) IncrFailed()        { m.failed.Add(1) }
func (m *Monitoring) IncrRestarts()      { m.workerRestarts.Add(1) }

// Snapshot fills the counters and process metrics into stats, which the
// caller has already populated with broker state.
func (m *Monitoring) Snapshot(stats Stats) Stats {
	stats.Enqueued = m.enqueued.Load()
	stats.Delivered = m.delivered.Load()
	stats.Dropped = m.dropped.Load()
	stats.Failed = m.failed.Load()
	stats.WorkerRestarts = m.workerRestarts.Load()
	stats.Uptime = time.Since(m.startedAt).Truncate(time.Second).String()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if m.self != nil {
		if info, err := m.self.MemoryInfo(); err == nil {
			stats.RSSBytes = info.RSS
		}
		if cpu, err := m.self.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	return stats
}
