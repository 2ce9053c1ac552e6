package taskdag

import (
	"context"
	"testing"
	"time"
)

// driveOne pops the next ready task from q, runs it, and completes it.
func driveOne(t *testing.T, q *TaskQueue, stopCh <-chan struct{}) *Task {
	t.Helper()
	task, ok := q.GetWork(stopCh)
	if !ok {
		t.Fatal("GetWork returned no task")
	}
	task.Run(context.Background())
	q.CompleteRunnable(task)
	return task
}

// TestTaskQueue_StandaloneDrive verifies a queue without a worker pool
// Given: a bare TaskQueue and a caller running its own execution loop
// When: a two-task chain is spawned and driven by hand
// Then: the tasks come out in dependency order and teardown is clean
func TestTaskQueue_StandaloneDrive(t *testing.T) {
	// Arrange
	q := NewTaskQueue(Config{Workers: 1})
	stop := make(chan struct{})

	ran := make([]string, 0, 2)
	a := q.Spawn(func(ctx context.Context, self *Task) { ran = append(ran, "A") })
	b := q.SpawnAfter(a, func(ctx context.Context, self *Task) { ran = append(ran, "B") })

	// Act
	first := driveOne(t, q, stop)
	second := driveOne(t, q, stop)

	// Assert
	if first != a || second != b {
		t.Fatal("tasks popped out of dependency order")
	}
	if len(ran) != 2 || ran[0] != "A" || ran[1] != "B" {
		t.Fatalf("execution order = %v, want [A B]", ran)
	}
	if !q.IsDone() {
		t.Fatal("IsDone = false after driving both tasks")
	}

	q.Release(a)
	q.Release(b)
	q.Close()
}

// TestTaskQueue_GetWorkPriorityScan verifies the high-to-low pop order
// Given: one ready task per priority
// When: GetWork is called repeatedly
// Then: tasks come out high, regular, low regardless of spawn order
func TestTaskQueue_GetWorkPriorityScan(t *testing.T) {
	// Arrange - spawn in inverted order to rule out FIFO coincidence.
	q := NewTaskQueue(Config{Workers: 1})
	stop := make(chan struct{})

	noop := func(ctx context.Context, self *Task) {}
	low := q.SpawnWithPriority(noop, PriorityLow)
	regular := q.SpawnWithPriority(noop, PriorityRegular)
	high := q.SpawnWithPriority(noop, PriorityHigh)

	// Act & Assert
	want := []*Task{high, regular, low}
	for i, expected := range want {
		got := driveOne(t, q, stop)
		if got != expected {
			t.Fatalf("pop %d returned priority %v, want %v", i, got.Priority(), expected.Priority())
		}
	}

	for _, h := range want {
		q.Release(h)
	}
	q.Close()
}

// TestTaskQueue_GetWorkStops verifies the stop channel unblocks GetWork
func TestTaskQueue_GetWorkStops(t *testing.T) {
	// Arrange - empty queue, so GetWork blocks on the signal channel.
	q := NewTaskQueue(Config{Workers: 1})
	stop := make(chan struct{})

	done := make(chan bool, 1)
	go func() {
		_, ok := q.GetWork(stop)
		done <- ok
	}()

	// Act
	close(stop)

	// Assert
	select {
	case ok := <-done:
		if ok {
			t.Fatal("GetWork returned a task from an empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("GetWork did not return after stop")
	}
	q.Close()
}

// TestTaskQueue_SpawnWakesBlockedGetWork verifies the wake signal
// Given: a caller blocked in GetWork on an empty queue
// When: a task is spawned from another goroutine
// Then: GetWork returns it without the stop channel firing
func TestTaskQueue_SpawnWakesBlockedGetWork(t *testing.T) {
	// Arrange
	q := NewTaskQueue(Config{Workers: 1})
	stop := make(chan struct{})

	got := make(chan *Task, 1)
	go func() {
		task, ok := q.GetWork(stop)
		if ok {
			got <- task
		}
	}()

	// Give the getter a moment to block.
	time.Sleep(10 * time.Millisecond)

	// Act
	h := q.Spawn(func(ctx context.Context, self *Task) {})

	// Assert
	select {
	case task := <-got:
		if task != h {
			t.Fatal("GetWork returned a different task")
		}
	case <-time.After(time.Second):
		t.Fatal("GetWork never woke up after spawn")
	}

	h.Run(context.Background())
	q.CompleteRunnable(h)
	q.Release(h)
	q.Close()
}

// TestTaskQueue_RespawnReentersQueue verifies respawn from a hand-driven loop
func TestTaskQueue_RespawnReentersQueue(t *testing.T) {
	// Arrange
	q := NewTaskQueue(Config{Workers: 1})
	stop := make(chan struct{})

	runs := 0
	h := q.Spawn(func(ctx context.Context, self *Task) {
		runs++
		if runs == 1 {
			self.Respawn()
		}
	})

	// Act
	driveOne(t, q, stop) // first run, respawns
	driveOne(t, q, stop) // second run, finishes

	// Assert
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
	if !q.IsDone() {
		t.Fatal("IsDone = false after final completion")
	}
	q.Release(h)
	q.Close()
}

// TestTaskQueue_CloseWithReadyTaskPanics verifies the teardown contract
// Given: a queue with a task still ready
// When: Close is called
// Then: it panics rather than silently dropping the work
func TestTaskQueue_CloseWithReadyTaskPanics(t *testing.T) {
	q := NewTaskQueue(Config{Workers: 1})
	q.Spawn(func(ctx context.Context, self *Task) {})

	defer func() {
		if recover() == nil {
			t.Fatal("Close did not panic with a ready task outstanding")
		}
	}()
	q.Close()
}

// TestTaskQueue_CloseWithLeakedHandlePanics verifies handle-leak detection
// Given: a drained queue whose caller never released a handle
// When: Close is called
// Then: it panics on the pool drain check
func TestTaskQueue_CloseWithLeakedHandlePanics(t *testing.T) {
	q := NewTaskQueue(Config{Workers: 1})
	stop := make(chan struct{})
	q.Spawn(func(ctx context.Context, self *Task) {})
	driveOne(t, q, stop)

	defer func() {
		if recover() == nil {
			t.Fatal("Close did not panic with a leaked handle")
		}
	}()
	q.Close()
}
