// Package taskdag is a concurrent dependency-graph task scheduler.
//
// Tasks are nodes in a graph: a runnable task carries a work body and at most
// one predecessor, and an aggregate task joins a fixed set of predecessors.
// A task runs only after its predecessors have completed; completing a task
// fans its waiting successors back into the ready set. All of the dependency
// bookkeeping is lock-free: atomic counters, CAS-based intrusive waiter
// lists, and reference-counted task lifetimes.
//
// # Quick Start
//
//	s := taskdag.New(core.Config{Workers: 4})
//	s.Start(context.Background())
//	defer s.Close()
//
//	a := s.Spawn(func(ctx context.Context, self *core.Task) {
//		// runs immediately
//	})
//	b := s.SpawnAfter(a, func(ctx context.Context, self *core.Task) {
//		// runs only after a completes
//	})
//	j := s.WhenAll(a, b) // completes once both have completed
//	c := s.SpawnAfter(j, func(ctx context.Context, self *core.Task) {})
//
//	s.Wait(context.Background())
//	for _, t := range []*core.Task{a, b, j, c} {
//		s.Release(t)
//	}
//
// # Handles and lifetime
//
// Every spawn call returns a handle holding one reference on the task.
// Handles may be used as predecessors for later spawns; release them with
// Release once no more dependencies will be declared. A task's storage is
// recycled exactly when its last reference drops, so the pool stays balanced
// and Close can verify that nothing leaked.
//
// # Respawn
//
// A work body may call self.Respawn or self.RespawnAfter(pred) to yield and
// re-enter the graph instead of finishing, typically because it needs the
// result of work it just spawned. This is how unbounded recursion over the
// graph is expressed without blocking a worker.
//
// # Packages
//
// The core package holds the reusable scheduling logic (completion protocol,
// dependency resolution, fan-in joins, quiescence tracking) behind a narrow
// consumer interface; this package supplies the concrete queue, the worker
// pool, and the spawn API. observability/prometheus adapts core.Metrics to
// Prometheus collectors.
package taskdag
