// Package command defines the request/response boundary between the object
// pipeline and the server, and an HTTP implementation of it.
package command

import (
	"context"
	"net/http"
	"strings"
)

// Command is one REST request against the server.
type Command struct {
	Method       string
	Path         string
	SessionToken string
	Body         map[string]any
	Headers      map[string]string
}

// New builds a command. A leading slash in path is dropped.
func New(method, path string, body map[string]any) *Command {
	return &Command{Method: method, Path: strings.TrimPrefix(path, "/"), Body: body}
}

// Response is a decoded server reply.
type Response struct {
	StatusCode int
	Body       map[string]any
}

// Created reports whether the server created a new resource.
func (r *Response) Created() bool { return r.StatusCode == http.StatusCreated }

// Runner executes commands. Server-side failures are returned as *Error.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (*Response, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd *Command) (*Response, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd *Command) (*Response, error) {
	return f(ctx, cmd)
}
