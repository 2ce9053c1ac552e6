package core

import (
	"fmt"
	"sync/atomic"
)

// QueueOps is the narrow surface a concrete queue supplies to the shared
// scheduling core. ScheduleRunnable lets the consumer pick the ready queue a
// resolved task lands in (by priority, by backend, whatever the queue does);
// Deallocate returns a task whose reference count reached zero to the backing
// pool.
type QueueOps interface {
	ScheduleRunnable(t *Task)
	Deallocate(t *Task)
}

// Common implements the scheduling logic shared by every concrete task queue:
// quiescence tracking, the completion protocol, single-predecessor
// resolution, and aggregate fan-in. A concrete queue embeds it by value and
// binds itself with Init.
//
// Nothing here blocks on a lock. The only retry loops are the CAS loops in
// the waiter list and the ready queues; everything else is a single atomic
// operation.
type Common struct {
	// readyCount counts tasks that are ready, running, or irrevocably about
	// to be re-scheduled. One increment per enqueue, one decrement per
	// completion, no matter how often a task respawns.
	readyCount atomic.Int32

	ops QueueOps
}

// Init binds the concrete queue. Must be called before any scheduling.
func (c *Common) Init(ops QueueOps) {
	c.ops = ops
}

// =============================================================================
// Quiescence tracker
// =============================================================================

// IsDone reports whether no task is currently ready, running, or pending
// respawn. The answer is a momentary snapshot: a concurrent scheduler may
// make the counter nonzero again immediately. Callers needing a stable
// drained signal must quiesce their own producers and re-check.
func (c *Common) IsDone() bool {
	return c.readyCount.Load() == 0
}

// ReadyCount returns the current counter value. Snapshot only; for tests and
// metrics.
func (c *Common) ReadyCount() int32 {
	return c.readyCount.Load()
}

// AssertQuiescent is the destruction-time contract check: tearing down a
// queue with outstanding work means a task leaked an increment somewhere,
// which is irrecoverable.
func (c *Common) AssertQuiescent() {
	if n := c.readyCount.Load(); n != 0 {
		panic(fmt.Sprintf("taskdag: queue closed with %d tasks still outstanding", n))
	}
}

// =============================================================================
// Completion protocol
// =============================================================================

// CompleteRunnable is invoked by the execution loop after a popped task's
// work body has returned. If the body requested a respawn the task re-enters
// scheduling instead of finalizing: its waiters keep waiting and its identity
// persists. Otherwise the waiter list is drained and closed and the queue's
// own reference is released.
//
// The ready count is decremented exactly once either way. If the task
// respawned into a ready queue, that re-enqueue already incremented the
// counter; if it finished, every unblocked waiter was enqueued (and counted)
// during the drain. Either way the decrement here cannot falsely signal
// quiescence.
func (c *Common) CompleteRunnable(t *Task) {
	if t.respawn.Load() {
		c.ops.ScheduleRunnable(t)
	} else {
		c.finish(t)
	}
	c.readyCount.Add(-1)
}

// CompleteAggregate finalizes a join whose last dependency was consumed.
// Aggregates never respawn and never held a ready-count increment, so this is
// drain-and-release only.
func (c *Common) CompleteAggregate(t *Task) {
	c.finish(t)
}

// finish drains and closes t's waiter list, scheduling each drained
// successor, then releases t's own reference.
//
// Draining can cascade: an unblocked aggregate whose remaining dependencies
// all turn out closed completes right here, which drains its waiters in turn.
// Kept as an explicit work list rather than recursion so a deep chain of
// aggregates cannot grow the stack.
func (c *Common) finish(t *Task) {
	pending := []*Task{t}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		cur.waiters.consume(func(w *Task) {
			if w.kind == KindRunnable {
				c.ops.ScheduleRunnable(w)
				return
			}
			if c.consumeDependencies(w) {
				pending = append(pending, w)
			}
		})

		if cur.Release() {
			c.ops.Deallocate(cur)
		}
	}
}

// =============================================================================
// Runnable scheduling / predecessor resolution
// =============================================================================

// ScheduleRunnable resolves a runnable task's single dependency, if any, and
// either registers the task as a waiter or pushes it onto ready.
//
// Exclusive-access precondition: the caller holds the only reference path
// that can touch t's predecessor and respawn fields right now. The
// surrounding task-graph API never violates this.
func (c *Common) ScheduleRunnable(t *Task, ready ReadyQueue) {
	isReady := true

	if pred := t.predecessor.Load(); pred != nil {
		// Clear the predecessor before registering. The atomic store orders
		// the clear ahead of the registration CAS, so a concurrent completer
		// of pred cannot observe a half-scheduled task.
		t.predecessor.Store(nil)

		// Registration succeeding means pred is still open, so t waits; pred
		// completing will redrive t through here. Failing means pred already
		// drained its waiters, so t's dependency is satisfied.
		if pred.waiters.tryAdd(t) {
			isReady = false
		}

		if t.respawn.Load() {
			// RespawnAfter took a reference so pred could not be destroyed
			// before the registration above examined it. Consumed now, on
			// both branches.
			if pred.Release() {
				c.ops.Deallocate(pred)
			}
		}
		// pred may be gone from here on.
	}

	// The respawn, if any, has been handled by this pass.
	t.respawn.Store(false)

	if isReady {
		c.readyCount.Add(1)
		ready.Push(t)
	}
	// Once pushed the task may be popped and run at any moment; it must not
	// be touched again by this call.
}

// =============================================================================
// Aggregate scheduling / chained fan-in
// =============================================================================

// ScheduleAggregate resolves a join task. It is re-entrant over the life of
// one aggregate: each completing predecessor redrives the aggregate out of
// its waiter list and back in here for the next leg of the scan.
func (c *Common) ScheduleAggregate(t *Task) {
	if c.consumeDependencies(t) {
		c.CompleteAggregate(t)
	}
	// t may have been deallocated by the completion above.
}

// consumeDependencies scans t's dependency slots from the highest index down,
// consuming each exactly once, and reports whether every dependency is
// satisfied.
//
// Each slot is taken and nilled before inspection so a later invocation never
// reprocesses it. On the first still-open predecessor the scan registers t as
// a waiter and stops: the aggregate waits on at most one predecessor at a
// time, so at most one completion event can be driving this function for a
// given aggregate and the scan itself needs no extra synchronization. The
// declare-time reference on each consumed predecessor is released after the
// registration attempt regardless of its outcome; a predecessor with an open
// waiter list is kept alive by its own pending completion release.
//
// Dependencies resolve in reverse declaration order rather than completion
// order. That costs a little latency on stragglers and buys the absence of an
// atomic join counter; the outcome never depends on completion order.
func (c *Common) consumeDependencies(t *Task) bool {
	for i := len(t.deps) - 1; i >= 0; i-- {
		pred := t.deps[i]
		t.deps[i] = nil
		if pred == nil {
			// Consumed by an earlier invocation.
			continue
		}

		waiting := pred.waiters.tryAdd(t)
		if pred.Release() {
			c.ops.Deallocate(pred)
		}
		if waiting {
			return false
		}
	}
	return true
}
