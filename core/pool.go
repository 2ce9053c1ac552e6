package core

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// TaskPool is the backing allocator for task nodes. Nodes are recycled
// through a sync.Pool; a node only re-enters the pool once its reference
// count has hit zero, so no live handle can alias a recycled node.
//
// The pool tracks outstanding allocations so queue teardown can verify that
// every task was released: a nonzero count at AssertDrained means a handle
// leaked or a reference pairing went wrong.
type TaskPool struct {
	pool        sync.Pool
	outstanding atomic.Int64
}

func NewTaskPool() *TaskPool {
	p := &TaskPool{}
	p.pool.New = func() any { return new(Task) }
	return p
}

// AllocateRunnable returns a runnable task holding two references: one for
// the queue, released by the completion protocol, and one for the creator's
// handle, released via the owning queue's Release.
func (p *TaskPool) AllocateRunnable(work Work, priority Priority) *Task {
	if work == nil {
		panic("taskdag: runnable task allocated with nil work")
	}
	t := p.get()
	t.kind = KindRunnable
	t.priority = priority
	t.work = work
	return t
}

// AllocateAggregate returns a join task over deps, with the same two
// references as a runnable. Every dependency is retained here: each slot
// holds its predecessor alive until the fan-in scan consumes the slot.
func (p *TaskPool) AllocateAggregate(deps []*Task) *Task {
	t := p.get()
	t.kind = KindAggregate
	t.priority = PriorityRegular
	t.deps = append(t.deps, deps...)
	for _, d := range deps {
		d.Retain()
	}
	return t
}

func (p *TaskPool) get() *Task {
	t := p.pool.Get().(*Task)
	t.refs.Store(2)
	t.waiters.reset()
	p.outstanding.Add(1)
	return t
}

// Deallocate returns a task whose reference count reached zero to the pool.
// Invoked exactly once per task lifetime, by whichever Release observed the
// zero transition.
func (p *TaskPool) Deallocate(t *Task) {
	if n := t.refs.Load(); n != 0 {
		panic(fmt.Sprintf("taskdag: task deallocated with %d live references", n))
	}

	t.work = nil
	t.predecessor.Store(nil)
	t.respawn.Store(false)
	for i := range t.deps {
		t.deps[i] = nil
	}
	t.deps = t.deps[:0]
	t.next = nil

	p.outstanding.Add(-1)
	p.pool.Put(t)
}

// Outstanding returns the number of allocated, not-yet-deallocated tasks.
func (p *TaskPool) Outstanding() int64 {
	return p.outstanding.Load()
}

// AssertDrained is the teardown contract check mirroring Common's quiescence
// assertion: all tasks must have been released before the pool goes away.
func (p *TaskPool) AssertDrained() {
	if n := p.outstanding.Load(); n != 0 {
		panic(fmt.Sprintf("taskdag: pool torn down with %d tasks still allocated", n))
	}
}
