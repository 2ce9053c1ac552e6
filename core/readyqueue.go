package core

import (
	"sync"
	"sync/atomic"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// ReadyQueue holds tasks eligible for execution. Push takes ownership of a
// ready task; the execution loop pops. Both sides may run concurrently with
// any number of callers. No ordering is guaranteed beyond eventual pop
// visibility.
type ReadyQueue interface {
	Push(t *Task)
	Pop() (*Task, bool)
	Empty() bool
	Len() int
}

// =============================================================================
// LIFOQueue: lock-free Treiber stack
// =============================================================================

// lifoNode wraps a task on the stack. Nodes are freshly allocated per push
// and never reused, so the garbage collector rules out ABA on the pop CAS
// even though tasks themselves get recycled through the pool.
type lifoNode struct {
	task *Task
	next *lifoNode
}

// LIFOQueue is the default ready queue: a lock-free stack. LIFO keeps the
// most recently unblocked work hot, which suits dependency graphs where a
// completion immediately frees its successors.
type LIFOQueue struct {
	top  atomic.Pointer[lifoNode]
	size atomic.Int64
}

func NewLIFOQueue() *LIFOQueue {
	return &LIFOQueue{}
}

func (q *LIFOQueue) Push(t *Task) {
	n := &lifoNode{task: t}
	for {
		top := q.top.Load()
		n.next = top
		if q.top.CompareAndSwap(top, n) {
			q.size.Add(1)
			return
		}
	}
}

func (q *LIFOQueue) Pop() (*Task, bool) {
	for {
		top := q.top.Load()
		if top == nil {
			return nil, false
		}
		if q.top.CompareAndSwap(top, top.next) {
			q.size.Add(-1)
			return top.task, true
		}
	}
}

func (q *LIFOQueue) Empty() bool {
	return q.top.Load() == nil
}

// Len is approximate under concurrency; it is only consumed by metrics.
func (q *LIFOQueue) Len() int {
	return int(q.size.Load())
}

// =============================================================================
// FIFOQueue: mutexed slice queue with compaction
// =============================================================================

// FIFOQueue trades the lock-free property for fairness: tasks run in the
// order they became ready. Opt in via Config.FIFOReadyQueues when starvation
// of long-unblocked tasks matters more than cache locality.
type FIFOQueue struct {
	mu    sync.Mutex
	tasks []*Task
}

func NewFIFOQueue() *FIFOQueue {
	return &FIFOQueue{
		tasks: make([]*Task, 0, defaultQueueCap),
	}
}

func (q *FIFOQueue) Push(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

func (q *FIFOQueue) Pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	t := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()

	return t, true
}

func (q *FIFOQueue) Empty() bool {
	return q.Len() == 0
}

func (q *FIFOQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// maybeCompactLocked reallocates the backing array once the live window has
// slid far enough that most of the capacity is unreachable dead prefix.
func (q *FIFOQueue) maybeCompactLocked() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]*Task, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]*Task, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}
