package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/kliegeois/taskdag/core"
)

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskReadyTotal     *prom.CounterVec
	taskCompletedTotal *prom.CounterVec
	taskRespawnTotal   prom.Counter
	workerPanicTotal   prom.Counter
	readyQueueDepth    *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// core.Metrics. Pass a nil Registerer to use the default registry.
func NewMetricsExporter(namespace string, reg prom.Registerer) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskdag"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	readyVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_ready_total",
		Help:      "Total number of ready-queue enqueues, including respawn re-enqueues.",
	}, []string{"priority"})
	completedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_completed_total",
		Help:      "Total number of finished tasks.",
	}, []string{"priority"})
	respawnCounter := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_respawn_total",
		Help:      "Total number of respawns.",
	})
	panicCounter := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "worker_panic_total",
		Help:      "Total number of panics recovered from work bodies.",
	})
	depthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ready_queue_depth",
		Help:      "Ready queue depth by priority, sampled at push.",
	}, []string{"priority"})

	var err error
	if readyVec, err = registerCollector(reg, readyVec); err != nil {
		return nil, err
	}
	if completedVec, err = registerCollector(reg, completedVec); err != nil {
		return nil, err
	}
	if respawnCounter, err = registerCollector(reg, respawnCounter); err != nil {
		return nil, err
	}
	if panicCounter, err = registerCollector(reg, panicCounter); err != nil {
		return nil, err
	}
	if depthVec, err = registerCollector(reg, depthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskReadyTotal:     readyVec,
		taskCompletedTotal: completedVec,
		taskRespawnTotal:   respawnCounter,
		workerPanicTotal:   panicCounter,
		readyQueueDepth:    depthVec,
	}, nil
}

// RecordTaskReady counts a ready-queue enqueue.
func (m *MetricsExporter) RecordTaskReady(priority core.Priority) {
	if m == nil {
		return
	}
	m.taskReadyTotal.WithLabelValues(priority.String()).Inc()
}

// RecordTaskCompleted counts a finished task.
func (m *MetricsExporter) RecordTaskCompleted(priority core.Priority) {
	if m == nil {
		return
	}
	m.taskCompletedTotal.WithLabelValues(priority.String()).Inc()
}

// RecordTaskRespawned counts a respawn.
func (m *MetricsExporter) RecordTaskRespawned() {
	if m == nil {
		return
	}
	m.taskRespawnTotal.Inc()
}

// RecordWorkerPanic counts a recovered work-body panic.
func (m *MetricsExporter) RecordWorkerPanic() {
	if m == nil {
		return
	}
	m.workerPanicTotal.Inc()
}

// RecordReadyQueueDepth samples one priority's queue depth.
func (m *MetricsExporter) RecordReadyQueueDepth(priority core.Priority, depth int) {
	if m == nil {
		return
	}
	m.readyQueueDepth.WithLabelValues(priority.String()).Set(float64(depth))
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
