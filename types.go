package taskdag

import "github.com/kliegeois/taskdag/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskdag package for most use cases.

// Task is a node in the dependency graph.
type Task = core.Task

// Work is the body of a runnable task.
type Work = core.Work

// Priority selects which ready queue a runnable task lands in.
type Priority = core.Priority

// Config holds construction options for a scheduler and its queue.
type Config = core.Config

// Logger is the structured logging interface used by the scheduler.
type Logger = core.Logger

// Metrics is the scheduling metrics interface.
type Metrics = core.Metrics

// Priority constants
const (
	PriorityHigh    Priority = core.PriorityHigh
	PriorityRegular Priority = core.PriorityRegular
	PriorityLow     Priority = core.PriorityLow
)
