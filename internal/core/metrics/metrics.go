// Package metrics exposes prometheus collectors for the save pipeline.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "objectsync"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	BatchSize       prometheus.Histogram
	SavedObjects    *prometheus.CounterVec
	MergeBacks      prometheus.Counter
}

// New builds the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "commands_total",
			Help:      "Commands sent to the server.",
		}, []string{"method", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "command_duration_seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "batch_size",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 40, 50},
		}),
		SavedObjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "object",
			Name:      "saved_objects_total",
			Help:      "Objects handed to the server for saving.",
		}, []string{"result"}),
		MergeBacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "object",
			Name:      "merge_backs_total",
			Help:      "Failed operation sets merged into the next pending set.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Commands, err = register(reg, m.Commands); err != nil {
		return nil, err
	}
	if m.CommandDuration, err = register(reg, m.CommandDuration); err != nil {
		return nil, err
	}
	if m.BatchSize, err = register(reg, m.BatchSize); err != nil {
		return nil, err
	}
	if m.SavedObjects, err = register(reg, m.SavedObjects); err != nil {
		return nil, err
	}
	if m.MergeBacks, err = register(reg, m.MergeBacks); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing a collector registered earlier under the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCommand records one command and its latency.
func (m *Metrics) ObserveCommand(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(method, result(err)).Inc()
	m.CommandDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveBatch records the size of one batch request.
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

// ObserveSaved counts one saved or failed object.
func (m *Metrics) ObserveSaved(err error) {
	if m == nil {
		return
	}
	m.SavedObjects.WithLabelValues(result(err)).Inc()
}

// ObserveMergeBack counts a failed save whose edits were merged forward.
func (m *Metrics) ObserveMergeBack() {
	if m == nil {
		return
	}
	m.MergeBacks.Inc()
}
