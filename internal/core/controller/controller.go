// Package controller turns object-level requests into server commands. It
// owns request shaping, batching and decoding; it never touches local object
// state.
package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeusync/objectsync/internal/core/codec"
	"github.com/zeusync/objectsync/internal/core/command"
	"github.com/zeusync/objectsync/internal/core/metrics"
	"github.com/zeusync/objectsync/internal/core/observability/log"
	"github.com/zeusync/objectsync/internal/core/ops"
	"github.com/zeusync/objectsync/internal/core/state"
	"github.com/zeusync/objectsync/pkg/concurrent"
)

// Config holds batching settings.
type Config struct {
	// MaxBatchSize caps the sub-requests of one batch command.
	MaxBatchSize int
	// MaxConcurrentBatches caps batch commands in flight for one call.
	MaxConcurrentBatches int
	// BatchPath is the endpoint receiving batch commands.
	BatchPath string
	// BatchPathPrefix is prepended to the path of every sub-request.
	BatchPathPrefix string
}

// DefaultConfig returns batches of 50 with up to 4 in flight.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:         50,
		MaxConcurrentBatches: 4,
		BatchPath:            "batch",
		BatchPathPrefix:      "/",
	}
}

// SaveRequest describes one object to persist.
type SaveRequest struct {
	ClassName  string
	ObjectID   string
	Operations map[string]ops.Operation
}

// ObjectRef names a persisted object.
type ObjectRef struct {
	ClassName string
	ObjectID  string
}

// Result is the outcome of one object in a multi-object call.
type Result struct {
	State *state.State
	Err   error
}

// Controller talks to the server on behalf of objects.
type Controller struct {
	runner  command.Runner
	decoder *codec.Decoder
	encoder codec.Encoder
	config  Config
	logger  log.Log
	metrics *metrics.Metrics
}

// New builds a controller. Zero config fields take their defaults.
func New(runner command.Runner, decoder *codec.Decoder, config Config, logger log.Log, m *metrics.Metrics) *Controller {
	defaults := DefaultConfig()
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}
	if config.MaxConcurrentBatches <= 0 {
		config.MaxConcurrentBatches = defaults.MaxConcurrentBatches
	}
	if config.BatchPath == "" {
		config.BatchPath = defaults.BatchPath
	}
	if config.BatchPathPrefix == "" {
		config.BatchPathPrefix = defaults.BatchPathPrefix
	}
	if decoder == nil {
		decoder = codec.NewDecoder(nil)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Controller{
		runner:  runner,
		decoder: decoder,
		config:  config,
		logger:  logger.With(log.String("component", "controller")),
		metrics: m,
	}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.config }

func classPath(className string) string {
	return "classes/" + url.PathEscape(className)
}

func objectPath(className, objectID string) string {
	return classPath(className) + "/" + url.PathEscape(objectID)
}

func (c *Controller) saveCommand(req SaveRequest) (*command.Command, error) {
	body, err := c.encoder.EncodeOperations(req.Operations)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.ClassName, err)
	}
	if req.ObjectID == "" {
		return command.New(http.MethodPost, classPath(req.ClassName), body), nil
	}
	return command.New(http.MethodPut, objectPath(req.ClassName, req.ObjectID), body), nil
}

func (c *Controller) run(ctx context.Context, cmd *command.Command, session string) (*command.Response, error) {
	cmd.SessionToken = session
	started := time.Now()
	resp, err := c.runner.Run(ctx, cmd)
	c.metrics.ObserveCommand(cmd.Method, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", command.ErrInvalidResponse)
	}
	return resp, nil
}

// Save persists one object: POST for new objects, PUT otherwise.
func (c *Controller) Save(ctx context.Context, req SaveRequest, session string) (*state.State, error) {
	cmd, err := c.saveCommand(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.run(ctx, cmd, session)
	if err != nil {
		return nil, err
	}
	st, err := c.decoder.DecodeState(req.ClassName, resp.Body)
	if err != nil {
		return nil, err
	}
	st.IsNew = resp.Created()
	return st, nil
}

// SaveAll persists several objects. A single request uses the plain save
// endpoint, more go through batch commands. Results are positional.
func (c *Controller) SaveAll(ctx context.Context, reqs []SaveRequest, session string) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 1 {
		results[0].State, results[0].Err = c.Save(ctx, reqs[0], session)
		return results
	}

	cmds := make([]*command.Command, 0, len(reqs))
	index := make([]int, 0, len(reqs))
	for i, req := range reqs {
		cmd, err := c.saveCommand(req)
		if err != nil {
			results[i].Err = err
			continue
		}
		cmds = append(cmds, cmd)
		index = append(index, i)
	}

	decoded := c.decodeBatch(c.ExecuteBatch(ctx, cmds, session), func(j int) string {
		return reqs[index[j]].ClassName
	})
	for j, res := range decoded {
		if res.State != nil {
			res.State.IsNew = cmds[j].Method == http.MethodPost && !res.State.CreatedAt.IsZero()
		}
		results[index[j]] = res
	}
	return results
}

// decodeBatch decodes successful batch items into states, spreading the work
// over MaxConcurrentBatches goroutines.
func (c *Controller) decodeBatch(batch []BatchResult, className func(int) string) []Result {
	return concurrent.Map(batch, c.config.MaxConcurrentBatches, func(j int, br BatchResult) Result {
		if br.Err != nil {
			return Result{Err: br.Err}
		}
		st, err := c.decoder.DecodeState(className(j), br.Body)
		return Result{State: st, Err: err}
	})
}

// Fetch loads the full state of one object.
func (c *Controller) Fetch(ctx context.Context, ref ObjectRef, session string) (*state.State, error) {
	if ref.ObjectID == "" {
		return nil, ErrMissingObjectID
	}
	resp, err := c.run(ctx, command.New(http.MethodGet, objectPath(ref.ClassName, ref.ObjectID), nil), session)
	if err != nil {
		return nil, err
	}
	return c.decoder.DecodeState(ref.ClassName, resp.Body)
}

// FetchAll loads several objects through batched GETs.
func (c *Controller) FetchAll(ctx context.Context, refs []ObjectRef, session string) []Result {
	results := make([]Result, len(refs))
	if len(refs) == 1 {
		results[0].State, results[0].Err = c.Fetch(ctx, refs[0], session)
		return results
	}

	cmds, index := c.refCommands(http.MethodGet, refs, func(i int, err error) { results[i].Err = err })
	decoded := c.decodeBatch(c.ExecuteBatch(ctx, cmds, session), func(j int) string {
		return refs[index[j]].ClassName
	})
	for j, res := range decoded {
		results[index[j]] = res
	}
	return results
}

// Delete removes one object on the server.
func (c *Controller) Delete(ctx context.Context, ref ObjectRef, session string) error {
	if ref.ObjectID == "" {
		return ErrMissingObjectID
	}
	_, err := c.run(ctx, command.New(http.MethodDelete, objectPath(ref.ClassName, ref.ObjectID), nil), session)
	return err
}

// DeleteAll removes several objects through batched DELETEs. Errors are
// positional.
func (c *Controller) DeleteAll(ctx context.Context, refs []ObjectRef, session string) []error {
	errs := make([]error, len(refs))
	if len(refs) == 1 {
		errs[0] = c.Delete(ctx, refs[0], session)
		return errs
	}

	cmds, index := c.refCommands(http.MethodDelete, refs, func(i int, err error) { errs[i] = err })
	for j, br := range c.ExecuteBatch(ctx, cmds, session) {
		errs[index[j]] = br.Err
	}
	return errs
}

func (c *Controller) refCommands(method string, refs []ObjectRef, reject func(int, error)) ([]*command.Command, []int) {
	cmds := make([]*command.Command, 0, len(refs))
	index := make([]int, 0, len(refs))
	for i, ref := range refs {
		if ref.ObjectID == "" {
			reject(i, ErrMissingObjectID)
			continue
		}
		cmds = append(cmds, command.New(method, objectPath(ref.ClassName, ref.ObjectID), nil))
		index = append(index, i)
	}
	return cmds, index
}

func (c *Controller) subPath(path string) string {
	return strings.TrimSuffix(c.config.BatchPathPrefix, "/") + "/" + strings.TrimPrefix(path, "/")
}
