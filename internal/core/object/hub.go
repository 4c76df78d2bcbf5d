// Package object implements the local object model: pending edits,
// estimated data, per-object ordering and the deep save pipeline.
package object

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/zeusync/objectsync/internal/core/codec"
	"github.com/zeusync/objectsync/internal/core/command"
	"github.com/zeusync/objectsync/internal/core/controller"
	"github.com/zeusync/objectsync/internal/core/metrics"
	"github.com/zeusync/objectsync/internal/core/observability/log"
	"github.com/zeusync/objectsync/internal/core/state"
)

// SessionProvider supplies the session token attached to commands.
type SessionProvider interface {
	SessionToken(ctx context.Context) (string, error)
}

// SessionFunc adapts a function to SessionProvider.
type SessionFunc func(ctx context.Context) (string, error)

// SessionToken calls f.
func (f SessionFunc) SessionToken(ctx context.Context) (string, error) { return f(ctx) }

// Class describes a registered object class.
type Class struct {
	Name string
	// Factory wraps a new *Object in a class-specific type embedding it.
	Factory func(*Object) Entity
	// FieldNames maps property names to field keys.
	FieldNames map[string]string
	// ImmutableKeys can be written only until the object is first saved.
	ImmutableKeys []string
	// Defaults are set on every object created with Hub.New.
	Defaults map[string]any
}

// Config holds hub settings.
type Config struct {
	MaxBatchSize         int
	MaxConcurrentBatches int
	BatchPathPrefix      string
}

// DefaultConfig mirrors controller.DefaultConfig.
func DefaultConfig() Config {
	c := controller.DefaultConfig()
	return Config{
		MaxBatchSize:         c.MaxBatchSize,
		MaxConcurrentBatches: c.MaxConcurrentBatches,
		BatchPathPrefix:      c.BatchPathPrefix,
	}
}

// Hub owns everything objects share: class registry, controller, session
// provider, logger and metrics. One hub is built per client.
type Hub struct {
	classes    *xsync.MapOf[string, *Class]
	controller *controller.Controller
	sessions   SessionProvider
	logger     log.Log
	metrics    *metrics.Metrics
	closed     atomic.Bool
}

// NewHub builds a hub sending commands through runner. logger and m may be
// nil.
func NewHub(runner command.Runner, sessions SessionProvider, config Config, logger log.Log, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = log.NewNop()
	}
	h := &Hub{
		classes:  xsync.NewMapOf[string, *Class](),
		sessions: sessions,
		logger:   logger.With(log.String("component", "hub")),
		metrics:  m,
	}
	h.controller = controller.New(runner, codec.NewDecoder(h), controller.Config{
		MaxBatchSize:         config.MaxBatchSize,
		MaxConcurrentBatches: config.MaxConcurrentBatches,
		BatchPathPrefix:      config.BatchPathPrefix,
	}, logger, m)
	return h
}

func (h *Hub) log() log.Log {
	if h == nil {
		return log.NewNop()
	}
	return h.logger
}

func (h *Hub) metricsOrNil() *metrics.Metrics {
	if h == nil {
		return nil
	}
	return h.metrics
}

// Controller returns the network side of the hub.
func (h *Hub) Controller() *controller.Controller { return h.controller }

// RegisterClass adds or replaces a class definition.
func (h *Hub) RegisterClass(class Class) error {
	if class.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidClass)
	}
	for _, k := range class.ImmutableKeys {
		if _, ok := readOnlyKeys[k]; ok {
			return fmt.Errorf("%w: %s is always read-only", ErrInvalidClass, k)
		}
	}
	c := class
	h.classes.Store(class.Name, &c)
	return nil
}

// Class looks up a registered class.
func (h *Hub) Class(name string) (*Class, bool) {
	return h.classes.Load(name)
}

// New creates an unsaved object of className with the class defaults set.
func (h *Hub) New(className string) (Entity, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	o := newObject(h, className)
	o.dirty = true
	o.available.Store(true)
	if o.class != nil {
		for _, key := range sortedKeys(o.class.Defaults) {
			if err := o.Set(key, o.class.Defaults[key]); err != nil {
				return nil, fmt.Errorf("default %s: %w", key, err)
			}
		}
	}
	return o.self, nil
}

// CreateWithoutData returns a reference to an existing server object. Its
// data is unavailable until fetched.
func (h *Hub) CreateWithoutData(className, objectID string) Entity {
	return h.pointer(className, objectID).self
}

func (h *Hub) pointer(className, objectID string) *Object {
	o := newObject(h, className)
	o.st.Store(o.state().MutatedClone(func(s *state.State) { s.ObjectID = objectID }))
	return o
}

// Pointer implements codec.ObjectFactory.
func (h *Hub) Pointer(className, objectID string) any {
	return h.pointer(className, objectID)
}

// Object implements codec.ObjectFactory for embedded objects.
func (h *Hub) Object(st *state.State) any {
	o := newObject(h, st.ClassName)
	o.mergeFromServer(st)
	return o
}

// FromState builds an object from a known server state.
func (h *Hub) FromState(st *state.State) Entity {
	return h.Object(st).(*Object).self
}

func (h *Hub) sessionToken(ctx context.Context) (string, error) {
	if h.sessions == nil {
		return "", nil
	}
	return h.sessions.SessionToken(ctx)
}

func (h *Hub) checkOpen() error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	return nil
}

// Close stops the hub from issuing further commands.
func (h *Hub) Close() error {
	h.closed.Store(true)
	return nil
}
