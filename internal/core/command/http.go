package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/objectsync/internal/core/codec"
	"github.com/zeusync/objectsync/internal/core/observability/log"
	"github.com/zeusync/objectsync/pkg/generic"
)

var responseBuffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

const (
	HeaderApplicationID = "X-Application-Id"
	HeaderClientKey     = "X-Client-Key"
	HeaderMasterKey     = "X-Master-Key"
	HeaderSessionToken  = "X-Session-Token"
	HeaderRequestID     = "X-Request-Id"
	HeaderInstallation  = "X-Installation-Id"
)

// HTTPConfig configures HTTPRunner.
type HTTPConfig struct {
	ServerURL     string
	ApplicationID string
	ClientKey     string
	MasterKey     string
	Headers       map[string]string
	Timeout       time.Duration
	UserAgent     string
}

// HTTPRunner sends commands as JSON over HTTP.
type HTTPRunner struct {
	base   *url.URL
	config HTTPConfig
	client *http.Client
	logger log.Log
}

// NewHTTPRunner resolves command paths against config.ServerURL. A nil
// client gets one with config.Timeout.
func NewHTTPRunner(config HTTPConfig, client *http.Client, logger log.Log) (*HTTPRunner, error) {
	if config.ServerURL == "" {
		return nil, ErrNoServerURL
	}
	base, err := url.Parse(strings.TrimSuffix(config.ServerURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &HTTPRunner{
		base:   base,
		config: config,
		client: client,
		logger: logger.With(log.String("component", "http_runner")),
	}, nil
}

// Run sends cmd and decodes the JSON reply. Non-2xx replies become *Error.
func (r *HTTPRunner) Run(ctx context.Context, cmd *Command) (*Response, error) {
	target, err := r.base.Parse(strings.TrimPrefix(cmd.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cmd.Path, err)
	}

	var body io.Reader
	if cmd.Body != nil {
		payload, err := json.Marshal(cmd.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cmd.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	requestID, ok := log.RequestID(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	r.setHeaders(req, cmd, requestID)

	logger := r.logger.With(log.String("request_id", requestID))
	started := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		logger.Debug("Command failed",
			log.String("method", cmd.Method),
			log.String("path", cmd.Path),
			log.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Code: CodeConnectionFailed, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	err = responseBuffers.With(func(buf *bytes.Buffer) error {
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		logger.Debug("Command completed",
			log.String("method", cmd.Method),
			log.String("path", cmd.Path),
			log.Int("status", resp.StatusCode),
			log.Duration("elapsed", time.Since(started)))

		if len(bytes.TrimSpace(buf.Bytes())) == 0 {
			return nil
		}
		var err error
		decoded, err = codec.Unmarshal(buf.Bytes())
		if err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		e := ErrorFromBody(decoded, resp.StatusCode)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return nil, e
	}
	return &Response{StatusCode: resp.StatusCode, Body: decoded}, nil
}

func (r *HTTPRunner) setHeaders(req *http.Request, cmd *Command, requestID string) {
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.config.UserAgent != "" {
		req.Header.Set("User-Agent", r.config.UserAgent)
	}
	if r.config.ApplicationID != "" {
		req.Header.Set(HeaderApplicationID, r.config.ApplicationID)
	}
	if r.config.ClientKey != "" {
		req.Header.Set(HeaderClientKey, r.config.ClientKey)
	}
	if r.config.MasterKey != "" {
		req.Header.Set(HeaderMasterKey, r.config.MasterKey)
	}
	if cmd.SessionToken != "" {
		req.Header.Set(HeaderSessionToken, cmd.SessionToken)
	}
	for k, v := range cmd.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(HeaderRequestID, requestID)
}
