package taskdag

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/kliegeois/taskdag/core"
)

// quiescencePollInterval is how often Wait re-samples the quiescence counter.
const quiescencePollInterval = time.Millisecond

// Scheduler pairs a TaskQueue with a fixed pool of worker goroutines that pop
// ready tasks, run their work bodies, and drive them through the completion
// protocol.
type Scheduler struct {
	queue   *TaskQueue
	workers int

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex

	logger       core.Logger
	metrics      core.Metrics
	panicHandler core.PanicHandler
}

// New creates a scheduler and its queue from cfg.
func New(cfg core.Config) *Scheduler {
	cfg = cfg.WithDefaults()
	return &Scheduler{
		queue:        NewTaskQueue(cfg),
		workers:      cfg.Workers,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
	}
}

// Queue returns the underlying task queue.
func (s *Scheduler) Queue() *TaskQueue { return s.queue }

// Convenience pass-throughs so most callers only touch the Scheduler.

func (s *Scheduler) Spawn(work core.Work) *core.Task { return s.queue.Spawn(work) }

func (s *Scheduler) SpawnWithPriority(work core.Work, priority core.Priority) *core.Task {
	return s.queue.SpawnWithPriority(work, priority)
}

func (s *Scheduler) SpawnAfter(pred *core.Task, work core.Work) *core.Task {
	return s.queue.SpawnAfter(pred, work)
}

func (s *Scheduler) WhenAll(deps ...*core.Task) *core.Task { return s.queue.WhenAll(deps...) }

func (s *Scheduler) Release(t *core.Task) { s.queue.Release(t) }

func (s *Scheduler) IsDone() bool { return s.queue.IsDone() }

// Start launches the worker goroutines. A second Start without an intervening
// Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if s.running {
		return // Already running
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(i, s.ctx)
	}
	s.logger.Info("scheduler started", core.F("workers", s.workers))
}

// Stop cancels the workers and waits for them to exit. Tasks still on a ready
// queue stay there; stopping a non-quiescent scheduler and then closing the
// queue will trip the quiescence assertion, which is the intended failure
// mode for leaked work.
func (s *Scheduler) Stop() {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return
	}
	s.runningMu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()

	s.logger.Info("scheduler stopped")
}

// StopGraceful waits up to timeout for quiescence before stopping. Returns an
// error if the graph did not drain in time; the workers are stopped either
// way.
func (s *Scheduler) StopGraceful(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.Wait(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("graceful stop: queue not quiescent after %v", timeout)
	}
	return nil
}

// Wait blocks until the queue reports quiescence or ctx is done. Quiescence
// is momentary: if the caller keeps spawning concurrently, a nil return only
// means the counter was observed at zero once.
func (s *Scheduler) Wait(ctx context.Context) error {
	ticker := time.NewTicker(quiescencePollInterval)
	defer ticker.Stop()

	for {
		if s.queue.IsDone() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsRunning reports whether the worker pool is up.
func (s *Scheduler) IsRunning() bool {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()
	return s.running
}

// WorkerCount returns the size of the worker pool.
func (s *Scheduler) WorkerCount() int { return s.workers }

// Close stops the workers and verifies the queue teardown contract. Callers
// should Wait (and release their handles) first.
func (s *Scheduler) Close() {
	s.Stop()
	s.queue.Close()
}

// workerLoop is the execution loop: pop, run, complete.
func (s *Scheduler) workerLoop(id int, ctx context.Context) {
	defer s.wg.Done()
	stopCh := ctx.Done()

	for {
		t, ok := s.queue.GetWork(stopCh)
		if !ok {
			return
		}
		s.runOne(ctx, id, t)
	}
}

// runOne executes one popped task and completes it. A panicking work body is
// reported and the task is still completed; swallowing the completion would
// wedge every successor in the graph.
func (s *Scheduler) runOne(ctx context.Context, id int, t *core.Task) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.metrics.RecordWorkerPanic()
				s.logger.Error("task panicked", core.F("worker", id), core.F("panic", r))
				s.panicHandler.HandlePanic(ctx, id, r, debug.Stack())
			}
		}()
		t.Run(ctx)
	}()

	s.queue.CompleteRunnable(t)
}
