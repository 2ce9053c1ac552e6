package taskdag

import (
	"github.com/kliegeois/taskdag/core"
)

// TaskQueue is the concrete queue consuming the shared scheduling core: three
// priority ready queues, a backing task pool, and the spawn API. It
// implements core.QueueOps, so the core calls back into it to pick ready
// queues and to return dead tasks to the pool.
type TaskQueue struct {
	common core.Common
	ready  [core.NumPriorities]*readyQueue
	pool   *core.TaskPool
	signal chan struct{}

	metrics core.Metrics
	logger  core.Logger
}

var _ core.QueueOps = (*TaskQueue)(nil)

// NewTaskQueue builds a queue from cfg. Most users want New, which pairs the
// queue with a worker pool; a standalone queue suits callers driving their
// own execution loop.
func NewTaskQueue(cfg core.Config) *TaskQueue {
	cfg = cfg.WithDefaults()

	q := &TaskQueue{
		pool:    core.NewTaskPool(),
		signal:  make(chan struct{}, cfg.Workers*2),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	for i := range q.ready {
		var tasks core.ReadyQueue
		if cfg.FIFOReadyQueues {
			tasks = core.NewFIFOQueue()
		} else {
			tasks = core.NewLIFOQueue()
		}
		q.ready[i] = &readyQueue{tasks: tasks, priority: core.Priority(i), owner: q}
	}
	q.common.Init(q)
	return q
}

// =============================================================================
// core.QueueOps
// =============================================================================

// ScheduleRunnable resolves t's dependency and, if ready, enqueues it to the
// ready queue matching its priority. Called by the core when draining waiter
// lists and on respawn, and by the spawn API below.
func (q *TaskQueue) ScheduleRunnable(t *core.Task) {
	q.common.ScheduleRunnable(t, q.ready[t.Priority()])
}

// Deallocate returns a task whose reference count reached zero to the pool.
func (q *TaskQueue) Deallocate(t *core.Task) {
	q.pool.Deallocate(t)
}

// =============================================================================
// Spawn API
// =============================================================================

// Spawn schedules work as a regular-priority task with no predecessor and
// returns its handle. The handle must be released with Release once the
// caller is done declaring dependencies on it.
func (q *TaskQueue) Spawn(work core.Work) *core.Task {
	return q.SpawnWithPriority(work, core.PriorityRegular)
}

func (q *TaskQueue) SpawnWithPriority(work core.Work, priority core.Priority) *core.Task {
	t := q.pool.AllocateRunnable(work, priority)
	q.ScheduleRunnable(t)
	return t
}

// SpawnAfter schedules work to run only after pred has completed. If pred has
// already completed the task is immediately ready. The caller's handle on
// pred keeps it alive across this call; no extra reference is needed.
func (q *TaskQueue) SpawnAfter(pred *core.Task, work core.Work) *core.Task {
	return q.SpawnAfterWithPriority(pred, work, core.PriorityRegular)
}

func (q *TaskQueue) SpawnAfterWithPriority(pred *core.Task, work core.Work, priority core.Priority) *core.Task {
	t := q.pool.AllocateRunnable(work, priority)
	t.SetPredecessor(pred)
	q.ScheduleRunnable(t)
	return t
}

// WhenAll returns a join task that completes once every dep has completed,
// in any completion order. Use the returned handle as a predecessor to fan
// the join back out.
func (q *TaskQueue) WhenAll(deps ...*core.Task) *core.Task {
	t := q.pool.AllocateAggregate(deps)
	q.common.ScheduleAggregate(t)
	return t
}

// Release drops a handle returned by one of the spawn calls, deallocating the
// task if this was the last reference.
func (q *TaskQueue) Release(t *core.Task) {
	if t.Release() {
		q.pool.Deallocate(t)
	}
}

// =============================================================================
// Execution-loop surface
// =============================================================================

// GetWork pops the next ready task, scanning priorities from high to low, and
// blocks until one is available or stopCh closes.
func (q *TaskQueue) GetWork(stopCh <-chan struct{}) (*core.Task, bool) {
	for {
		for i := 0; i < core.NumPriorities; i++ {
			if t, ok := q.ready[i].Pop(); ok {
				return t, true
			}
		}

		select {
		case <-q.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// CompleteRunnable drives a popped task whose work body has returned through
// the completion protocol. The task must not be touched afterwards; it may
// already be recycled.
func (q *TaskQueue) CompleteRunnable(t *core.Task) {
	// Read before completing; the task may be gone afterwards.
	priority := t.Priority()
	respawned := t.RespawnRequested()

	q.common.CompleteRunnable(t)

	if respawned {
		q.metrics.RecordTaskRespawned()
	} else {
		q.metrics.RecordTaskCompleted(priority)
	}
}

// IsDone reports whether no task is ready, running, or pending respawn at
// this instant. See core.Common.IsDone for the re-check caveat.
func (q *TaskQueue) IsDone() bool {
	return q.common.IsDone()
}

// ReadyCount exposes the quiescence counter. Snapshot only.
func (q *TaskQueue) ReadyCount() int32 {
	return q.common.ReadyCount()
}

// Close verifies the teardown contract: the queue must be quiescent and every
// task handle released. Panics otherwise; outstanding work at destruction is
// a programming error, not a recoverable condition.
func (q *TaskQueue) Close() {
	q.common.AssertQuiescent()
	q.pool.AssertDrained()
	q.logger.Debug("task queue closed")
}

func (q *TaskQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
		// Signal channel full. The task is already queued; a worker's next
		// scan will find it.
	}
}

// =============================================================================
// readyQueue: per-priority storage plus push-side hooks
// =============================================================================

// readyQueue wraps one priority's storage so pushes coming out of the core
// also record metrics and wake a worker.
type readyQueue struct {
	tasks    core.ReadyQueue
	priority core.Priority
	owner    *TaskQueue
}

var _ core.ReadyQueue = (*readyQueue)(nil)

func (r *readyQueue) Push(t *core.Task) {
	r.tasks.Push(t)
	r.owner.metrics.RecordTaskReady(r.priority)
	r.owner.metrics.RecordReadyQueueDepth(r.priority, r.tasks.Len())
	r.owner.wake()
}

func (r *readyQueue) Pop() (*core.Task, bool) { return r.tasks.Pop() }
func (r *readyQueue) Empty() bool             { return r.tasks.Empty() }
func (r *readyQueue) Len() int                { return r.tasks.Len() }
