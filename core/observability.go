package core

import (
	"context"
	"fmt"
	"runtime"
)

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduling metrics.
// Implementations can send them to monitoring systems (Prometheus, StatsD,
// etc.).
//
// Methods must be safe for concurrent use and should be non-blocking and fast:
// several of them sit on the scheduling hot path.
type Metrics interface {
	// RecordTaskReady is called each time a task is enqueued to a ready
	// queue, including re-enqueues after a respawn.
	RecordTaskReady(priority Priority)

	// RecordTaskCompleted is called once per finished runnable task, after
	// its final, non-respawning completion.
	RecordTaskCompleted(priority Priority)

	// RecordTaskRespawned is called each time a completing task elected to
	// re-enter the graph instead of finishing.
	RecordTaskRespawned()

	// RecordWorkerPanic is called when a work body panics.
	RecordWorkerPanic()

	// RecordReadyQueueDepth reports the depth of one priority's ready queue
	// after a push. Depth is approximate under concurrency.
	RecordReadyQueueDepth(priority Priority, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskReady(priority Priority)                  {}
func (m *NilMetrics) RecordTaskCompleted(priority Priority)              {}
func (m *NilMetrics) RecordTaskRespawned()                               {}
func (m *NilMetrics) RecordWorkerPanic()                                 {}
func (m *NilMetrics) RecordReadyQueueDepth(priority Priority, depth int) {}

// =============================================================================
// PanicHandler: Interface for handling work-body panics
// =============================================================================

// PanicHandler is called when a work body panics during execution. The task
// is still driven through the completion protocol afterwards; swallowing the
// completion would wedge every successor in the graph.
//
// Implementations must be safe for concurrent use.
type PanicHandler interface {
	// HandlePanic receives the worker's context and id, the recovered panic
	// value, and the stack at the time of the panic.
	HandlePanic(ctx context.Context, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler prints panic information to stdout.
type DefaultPanicHandler struct{}

func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, workerID int, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Worker %d] Panic: %v\nStack trace:\n%s", workerID, panicInfo, stackTrace)
}

// =============================================================================
// Config
// =============================================================================

// Config holds construction options for a scheduler and its queue. All fields
// are optional; zero values pick the defaults below.
type Config struct {
	// Workers is the size of the worker pool. Defaults to GOMAXPROCS.
	Workers int

	// FIFOReadyQueues selects mutexed FIFO ready queues instead of the
	// default lock-free LIFO ones.
	FIFOReadyQueues bool

	// Logger defaults to NoOpLogger.
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler defaults to DefaultPanicHandler.
	PanicHandler PanicHandler
}

// WithDefaults returns the config with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{}
	}
	return c
}
