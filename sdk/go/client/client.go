// Package client is the public entry point for objectsync: it wires the HTTP
// command runner, the object hub, logging and metrics from one Config.
package client

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/objectsync/internal/core/command"
	"github.com/zeusync/objectsync/internal/core/metrics"
	"github.com/zeusync/objectsync/internal/core/object"
	"github.com/zeusync/objectsync/internal/core/observability/log"
)

const userAgent = "objectsync-go"

// Client represents a configured connection to one application backend
type Client struct {
	hub            *object.Hub
	logger         log.Log
	installationID string
	config         Config
	closed         atomic.Bool
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	runner     command.Runner
	logger     log.Log
	registerer prometheus.Registerer
	sessions   object.SessionProvider
	httpClient *http.Client
}

// WithRunner replaces the HTTP runner, typically with a fake in tests.
func WithRunner(r command.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithLogger sets the logger shared by the client, hub and runner.
func WithLogger(l log.Log) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer enables metrics on the given registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSessionProvider overrides Config.SessionToken.
func WithSessionProvider(p object.SessionProvider) Option {
	return func(o *options) { o.sessions = p }
}

// WithHTTPClient sets the http.Client used by the default runner.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a client from config.
func New(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.New(log.ParseLevel(config.LogLevel))
	}

	var m *metrics.Metrics
	if o.registerer != nil {
		var err error
		if m, err = metrics.New(o.registerer); err != nil {
			return nil, err
		}
	}

	installationID := uuid.NewString()
	runner := o.runner
	if runner == nil {
		headers := make(map[string]string, len(config.Headers)+1)
		for k, v := range config.Headers {
			headers[k] = v
		}
		headers[command.HeaderInstallation] = installationID
		httpRunner, err := command.NewHTTPRunner(command.HTTPConfig{
			ServerURL:     config.ServerURL,
			ApplicationID: config.ApplicationID,
			ClientKey:     config.ClientKey,
			MasterKey:     config.MasterKey,
			Headers:       headers,
			Timeout:       config.RequestTimeout,
			UserAgent:     userAgent,
		}, o.httpClient, logger)
		if err != nil {
			return nil, err
		}
		runner = httpRunner
	}

	sessions := o.sessions
	if sessions == nil {
		var err error
		if sessions, err = sessionFor(config.SessionToken); err != nil {
			return nil, err
		}
	}

	hub := object.NewHub(runner, sessions, object.Config{
		MaxBatchSize:         config.MaxBatchSize,
		MaxConcurrentBatches: config.MaxConcurrentBatches,
		BatchPathPrefix:      config.BatchPathPrefix,
	}, logger, m)

	client := &Client{
		hub:            hub,
		logger:         logger.With(log.String("component", "client")),
		installationID: installationID,
		config:         config,
	}
	client.logger.Info("Client created",
		log.String("server_url", config.ServerURL),
		log.String("installation_id", installationID),
	)
	return client, nil
}

// InstallationID identifies this client instance to the server.
func (c *Client) InstallationID() string { return c.installationID }

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.config }

// Hub exposes the underlying object hub.
func (c *Client) Hub() *object.Hub { return c.hub }

// RegisterClass registers a class on the client's hub.
func (c *Client) RegisterClass(class Class) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.hub.RegisterClass(class)
}

// New creates a new, unsaved object of className.
func (c *Client) New(className string) (Entity, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.hub.New(className)
}

// CreateWithoutData returns a pointer to an existing object without
// fetching it.
func (c *Client) CreateWithoutData(className, objectID string) Entity {
	return c.hub.CreateWithoutData(className, objectID)
}

// SaveAll deep-saves entities and every dirty object reachable from them.
func (c *Client) SaveAll(ctx context.Context, entities ...Entity) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.hub.SaveAll(ctx, entities...)
}

// FetchAll reloads entities from the server in batched round trips.
func (c *Client) FetchAll(ctx context.Context, entities ...Entity) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.hub.FetchAll(ctx, entities...)
}

// FetchAllIfNeeded fetches only entities whose data is not loaded yet.
func (c *Client) FetchAllIfNeeded(ctx context.Context, entities ...Entity) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.hub.FetchAllIfNeeded(ctx, entities...)
}

// DeleteAll deletes saved entities in batched round trips.
func (c *Client) DeleteAll(ctx context.Context, entities ...Entity) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.hub.DeleteAll(ctx, entities...)
}

// Close stops the client. Objects created by it fail further commands.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	c.logger.Info("Client closed")
	if err := c.hub.Close(); err != nil {
		return err
	}
	if s, ok := c.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return nil
}
