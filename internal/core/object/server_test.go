package object

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/objectsync/internal/core/command"
	"github.com/zeusync/objectsync/internal/core/observability/log"
)

// fakeServer answers commands in memory. Objects are created with ids
// obj-1, obj-2, ... in the order the server sees them.
type fakeServer struct {
	mu      sync.Mutex
	cmds    []*command.Command
	nextID  int
	stored  map[string]map[string]any
	failure func(method, path string, body map[string]any) *command.Error
	before  func(cmd *command.Command)
}

func newFakeServer() *fakeServer {
	return &fakeServer{stored: map[string]map[string]any{}}
}

func (s *fakeServer) Run(ctx context.Context, cmd *command.Command) (*command.Response, error) {
	if s.before != nil {
		s.before(cmd)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)

	if cmd.Path == "batch" {
		reqs := cmd.Body["requests"].([]any)
		results := make([]any, len(reqs))
		for i, raw := range reqs {
			req := raw.(map[string]any)
			body, _ := req["body"].(map[string]any)
			_, reply, err := s.handle(req["method"].(string), req["path"].(string), body)
			if err != nil {
				results[i] = map[string]any{"error": map[string]any{"code": int64(err.Code), "error": err.Message}}
				continue
			}
			results[i] = map[string]any{"success": reply}
		}
		return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"results": results}}, nil
	}

	status, reply, err := s.handle(cmd.Method, cmd.Path, cmd.Body)
	if err != nil {
		return nil, err
	}
	return &command.Response{StatusCode: status, Body: reply}, nil
}

func (s *fakeServer) handle(method, path string, body map[string]any) (int, map[string]any, *command.Error) {
	path = strings.TrimPrefix(path, "/")
	if s.failure != nil {
		if err := s.failure(method, path, body); err != nil {
			return 0, nil, err
		}
	}
	switch method {
	case http.MethodPost:
		s.nextID++
		id := fmt.Sprintf("obj-%d", s.nextID)
		s.stored[path+"/"+id] = body
		return http.StatusCreated, map[string]any{"objectId": id, "createdAt": "2024-01-01T00:00:00.000Z"}, nil
	case http.MethodPut:
		return http.StatusOK, map[string]any{"updatedAt": "2024-01-02T00:00:00.000Z"}, nil
	case http.MethodGet:
		data, ok := s.stored[path]
		if !ok {
			return 0, nil, &command.Error{Code: command.CodeObjectNotFound, Message: "object not found"}
		}
		reply := map[string]any{"objectId": path[strings.LastIndex(path, "/")+1:]}
		for k, v := range data {
			reply[k] = v
		}
		return http.StatusOK, reply, nil
	case http.MethodDelete:
		delete(s.stored, path)
		return http.StatusOK, map[string]any{}, nil
	}
	return 0, nil, &command.Error{Code: command.CodeOtherCause, Message: "unsupported"}
}

func (s *fakeServer) commands() []*command.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*command.Command(nil), s.cmds...)
}

func (s *fakeServer) batchSizes() []int {
	var sizes []int
	for _, cmd := range s.commands() {
		if cmd.Path == "batch" {
			sizes = append(sizes, len(cmd.Body["requests"].([]any)))
		}
	}
	return sizes
}

func newTestHub(t *testing.T, runner command.Runner) *Hub {
	t.Helper()
	return NewHub(runner, nil, DefaultConfig(), log.NewNop(), nil)
}

func newTestObject(t *testing.T, h *Hub, className string) *Object {
	t.Helper()
	e, err := h.New(className)
	require.NoError(t, err)
	return Unwrap(e)
}
