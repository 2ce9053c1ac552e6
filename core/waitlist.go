package core

import "sync/atomic"

// waitList is a lock-free intrusive stack of tasks registered to be notified
// when the owning task completes. It is either open (accepting waiters) or
// closed (the owner finished; every later registration attempt fails and the
// caller must treat the owner as already done).
//
// Tasks link through their intrusive next field, so registration allocates
// nothing. Closing the list and answering "already done" are the same atomic
// swap, which is what keeps a successor from missing a completion.
type waitList struct {
	head atomic.Pointer[Task]
}

// closedTag is the sentinel stored in head once the list is closed. It is
// never linked into a chain: tryAdd refuses to link against it, so nil stays
// the only chain terminator.
var closedTag = new(Task)

// tryAdd appends t if the list is still open and reports whether it did.
// A false return means the owner has completed and its waiters were already
// drained; the caller must schedule t itself.
func (l *waitList) tryAdd(t *Task) bool {
	for {
		head := l.head.Load()
		if head == closedTag {
			return false
		}
		t.next = head
		if l.head.CompareAndSwap(head, t) {
			return true
		}
	}
}

// consume atomically closes the list and hands every drained waiter to visit,
// most recently registered first. Each waiter's intrusive link is detached
// before the callback runs, since visit may immediately push the waiter onto
// a ready queue.
func (l *waitList) consume(visit func(*Task)) {
	head := l.head.Swap(closedTag)
	if head == closedTag {
		panic("taskdag: waiter list consumed twice")
	}
	for t := head; t != nil; {
		next := t.next
		t.next = nil
		visit(t)
		t = next
	}
}

// closed reports whether the list has been drained. Snapshot only.
func (l *waitList) closed() bool {
	return l.head.Load() == closedTag
}

// reset reopens an empty list. Only the allocator calls this, on a task with
// no outstanding references.
func (l *waitList) reset() {
	l.head.Store(nil)
}
