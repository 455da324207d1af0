package workers

import (
	"chat-room/contract"
	"chat-room/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Supervisor owns the lifecycle of the background workers.
// Each worker runs in its own goroutine, a panic or an error triggers a
// restart after restartInterval, canceling the parent context or calling
// Stop ends them all. Run waits for every goroutine via the WaitGroup.
type Supervisor struct {
	mu              sync.Mutex
	cancel          context.CancelFunc // Set by Run, guarded by mu
	stopped         bool               // Stop was called, possibly before Run
	wg              *sync.WaitGroup    // Wait for the end of goroutines
	log             *slog.Logger
	restartInterval time.Duration
	workers         []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run starts every added worker and blocks until all of them are done.
// Canceling ctx or calling Stop ends the supervised workers only.
func (s *Supervisor) Run(ctx context.Context) {
	// 1. Local cancellation tied to the parent ctx.
	// If the parent (main) cancels, the workers stop.
	// If Stop is called, only the workers stop.
	supervisedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2. Publish cancel for Stop. A Stop that came first wins.
	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()

	// 3. Start workers, they see the canceled ctx and return at once if stopped
	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision in a dedicated goroutine.
// A worker returning nil is done for good. A failing or panicking one is
// restarted as long as ctx is alive, one worker never takes the others down.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			// 1. Supervision ended while the worker was waiting to restart
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			// 2. Run the worker, a panic becomes an ErrWorkerPanic error
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			// 3. Clean exit, nothing to restart
			if err == nil {
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			// 4. Crash, back off then loop
			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop cancels the supervised workers. It is safe to call from any goroutine,
// before or after Run, and more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}
