package workers

import (
	"chat-room/contract"
	"chat-room/domain/chat"
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PresenceHealthService is the gRPC health service name reflecting the sweeper state.
const PresenceHealthService = "chat.Presence"

// HealthReporter is satisfied by *health.Server.
type HealthReporter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// SweepRecorder is satisfied by *observability.Monitoring.
type SweepRecorder interface {
	RecordSweep(report chat.SweepReport, err error, at time.Time)
}

// EvictionWorker runs the sweeper on a fixed period until its context is canceled.
// Failures never stop the loop, the next tick is the only retry.
type EvictionWorker struct {
	log      *slog.Logger
	sweeper  contract.ISweeper
	interval time.Duration
	health   HealthReporter
	recorder SweepRecorder
}

// NewEvictionWorker builds the worker. health and recorder may be nil.
func NewEvictionWorker(
	log *slog.Logger,
	sweeper contract.ISweeper,
	interval time.Duration,
	health HealthReporter,
	recorder SweepRecorder,
) *EvictionWorker {
	return &EvictionWorker{
		log:      log,
		sweeper:  sweeper,
		interval: interval,
		health:   health,
		recorder: recorder,
	}
}

func (w *EvictionWorker) Run(ctx context.Context) error {
	w.log.Info("Starting eviction worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping eviction")
			return ctx.Err()
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single eviction pass and reports its outcome.
func (w *EvictionWorker) SweepOnce(ctx context.Context) {
	report, err := w.sweeper.Sweep(ctx)
	if w.recorder != nil {
		w.recorder.RecordSweep(report, err, time.Now())
	}
	switch {
	case err != nil && len(report.Evicted) == 0:
		// Nothing selected on error means the read itself failed
		w.log.Error("Eviction skipped", "error", err)
		w.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	case err != nil:
		w.log.Warn("Eviction partially failed", "evicted", report.Evicted, "deleted", report.Deleted, "error", err)
		w.setStatus(healthpb.HealthCheckResponse_SERVING)
	default:
		if len(report.Evicted) > 0 {
			w.log.Debug("Eviction done", "evicted", report.Evicted, "deleted", report.Deleted)
		}
		w.setStatus(healthpb.HealthCheckResponse_SERVING)
	}
}

func (w *EvictionWorker) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	if w.health != nil {
		w.health.SetServingStatus(PresenceHealthService, status)
	}
}
