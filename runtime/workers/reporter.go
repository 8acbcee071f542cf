package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// StatsSource is anything able to produce a stats snapshot, the broker in practice.
type StatsSource interface {
	Stats() observability.Stats
}

// ReporterWorker logs a stats snapshot every interval, and a last one on shutdown.
type ReporterWorker struct {
	log      *slog.Logger
	source   StatsSource
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, source StatsSource, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, source: source, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	stats := w.source.Stats()
	w.log.Info("📊 Relay stats",
		"connected_users", stats.ConnectedUsers,
		"active_rooms", stats.ActiveRooms,
		"queue_depth", stats.QueueDepth,
		"delivered", stats.Delivered,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
		"worker_restarts", stats.WorkerRestarts,
		"alloc_mem_mb", stats.AllocMemMb,
		"uptime", stats.Uptime,
	)
}
