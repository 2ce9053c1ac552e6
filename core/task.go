package core

import (
	"context"
	"sync/atomic"
)

// Work is the body of a runnable task. It receives the task itself so the
// body can request a respawn (see Task.Respawn / Task.RespawnAfter).
type Work func(ctx context.Context, self *Task)

// =============================================================================
// TaskKind: tagged variant discriminator
// =============================================================================

// TaskKind distinguishes the two task variants sharing one node layout.
// Runnable tasks carry executable work and at most one predecessor; aggregate
// tasks are join points over a fixed set of predecessors and carry no work.
type TaskKind uint8

const (
	KindRunnable TaskKind = iota
	KindAggregate
)

func (k TaskKind) String() string {
	if k == KindRunnable {
		return "runnable"
	}
	return "aggregate"
}

// =============================================================================
// Priority: ready-queue selection for runnable tasks
// =============================================================================

type Priority int

const (
	// PriorityHigh: scheduled before everything else
	PriorityHigh Priority = iota

	// PriorityRegular: default priority
	PriorityRegular

	// PriorityLow: scheduled only when no higher-priority task is ready
	PriorityLow

	// NumPriorities is the number of ready queues a concrete queue keeps.
	NumPriorities = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityRegular:
		return "regular"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// =============================================================================
// Task: shared node for both variants
// =============================================================================

// Task is a node in the dependency graph. A single struct serves both kinds;
// the kind tag decides which fields are meaningful. The waiter list and the
// reference count are the only fields mutated concurrently; everything else
// is owned by whichever scheduling or completion call currently has exclusive
// access to the task.
type Task struct {
	kind     TaskKind
	priority Priority

	// work is the body of a runnable task. Nil for aggregates.
	work Work

	// predecessor is the single declared dependency of a runnable task.
	// The atomic store of nil in scheduling doubles as the fence that orders
	// the clear before the waiter-list registration attempt.
	predecessor atomic.Pointer[Task]

	// respawn is set by the work body (via Respawn/RespawnAfter) and consumed
	// by the next scheduling pass.
	respawn atomic.Bool

	// deps is the fixed dependency sequence of an aggregate. Slots are
	// consumed exactly once, from the highest index down, by the fan-in scan.
	deps []*Task

	// waiters holds successors registered to be notified on completion.
	waiters waitList

	// next is the intrusive link used while this task sits on a waiter list.
	// A task is never on two lists at once.
	next *Task

	refs atomic.Int32
}

func (t *Task) Kind() TaskKind     { return t.kind }
func (t *Task) IsRunnable() bool   { return t.kind == KindRunnable }
func (t *Task) Priority() Priority { return t.priority }

// DependencyCount reports the number of unconsumed declared predecessors.
func (t *Task) DependencyCount() int {
	if t.kind == KindAggregate {
		n := 0
		for _, d := range t.deps {
			if d != nil {
				n++
			}
		}
		return n
	}
	if t.predecessor.Load() != nil {
		return 1
	}
	return 0
}

// Run invokes the work body. Only the execution loop calls this, exactly once
// per ready transition, after popping the task from a ready queue.
func (t *Task) Run(ctx context.Context) {
	t.work(ctx, t)
}

// =============================================================================
// Dependency declaration
// =============================================================================

// SetPredecessor declares pred as the single dependency of a not-yet-scheduled
// runnable task. The caller's own handle on pred must stay live across the
// subsequent schedule call; no structural reference is taken here.
func (t *Task) SetPredecessor(pred *Task) {
	if t.kind != KindRunnable {
		panic("taskdag: SetPredecessor on an aggregate task")
	}
	t.predecessor.Store(pred)
}

// Respawn asks the scheduler to re-enter this task into the graph instead of
// finalizing it when the current execution returns. Valid only from inside
// the task's own work body.
func (t *Task) Respawn() {
	t.respawn.Store(true)
}

// RespawnAfter is Respawn with a new dependency. A reference on pred is taken
// here and released by the scheduling pass once the registration attempt has
// examined pred, so pred stays alive even if it completes first.
func (t *Task) RespawnAfter(pred *Task) {
	pred.Retain()
	t.predecessor.Store(pred)
	t.respawn.Store(true)
}

// RespawnRequested reports whether the work body asked for a respawn.
func (t *Task) RespawnRequested() bool {
	return t.respawn.Load()
}

// =============================================================================
// Reference counting
// =============================================================================

// Retain adds one reference.
func (t *Task) Retain() {
	t.refs.Add(1)
}

// Release drops one reference and reports whether the count reached zero.
// The caller owning the zero transition must hand the task to the deallocator
// exactly once. A negative count is a contract violation.
func (t *Task) Release() bool {
	n := t.refs.Add(-1)
	if n < 0 {
		panic("taskdag: task reference count went negative")
	}
	return n == 0
}

// References returns the current count. Snapshot only; for tests and debug
// logging.
func (t *Task) References() int32 {
	return t.refs.Load()
}
