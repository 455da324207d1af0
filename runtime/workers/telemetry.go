package workers

import (
	"chat-room/observability"
	"context"
	"log/slog"
	"time"
)

// StatsSource is satisfied by *observability.Monitoring.
type StatsSource interface {
	GetLatest() observability.Stats
}

// TelemetryWorker logs the room and process stats every metricInterval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	source         StatsSource
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, source StatsSource) *TelemetryWorker {
	return &TelemetryWorker{log: log, metricInterval: metricInterval, source: source}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *TelemetryWorker) report() {
	stats := w.source.GetLatest()
	w.log.Info("Room telemetry",
		"responses_2xx", stats.Responses2xx,
		"responses_4xx", stats.Responses4xx,
		"responses_5xx", stats.Responses5xx,
		"sweeps", stats.Sweeps,
		"sweep_failures", stats.SweepFailures,
		"evicted", stats.Evicted,
		"last_sweep", stats.LastSweep,
		"rss_bytes", stats.RamBytes,
		"cpu_percent", stats.CpuPercent)
}
