package controller

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/objectsync/internal/core/command"
	"github.com/zeusync/objectsync/internal/core/ops"
)

// recorder answers batch commands with one success per sub-request unless
// handler overrides the reply.
type recorder struct {
	mu      sync.Mutex
	cmds    []*command.Command
	handler func(cmd *command.Command) (*command.Response, error)
}

func (r *recorder) Run(_ context.Context, cmd *command.Command) (*command.Response, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
	if r.handler != nil {
		return r.handler(cmd)
	}
	if cmd.Path == "batch" {
		reqs := cmd.Body["requests"].([]any)
		results := make([]any, len(reqs))
		for i := range reqs {
			results[i] = map[string]any{"success": map[string]any{
				"objectId":  fmt.Sprintf("id-%d", i),
				"createdAt": "2024-01-01T00:00:00.000Z",
			}}
		}
		return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"results": results}}, nil
	}
	return &command.Response{StatusCode: http.StatusCreated, Body: map[string]any{
		"objectId":  "single",
		"createdAt": "2024-01-01T00:00:00.000Z",
	}}, nil
}

func (r *recorder) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sizes []int
	for _, cmd := range r.cmds {
		if cmd.Path == "batch" {
			sizes = append(sizes, len(cmd.Body["requests"].([]any)))
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	return sizes
}

func newRequests(n int) []SaveRequest {
	reqs := make([]SaveRequest, n)
	for i := range reqs {
		reqs[i] = SaveRequest{
			ClassName:  "Player",
			Operations: map[string]ops.Operation{"n": ops.NewSet(int64(i))},
		}
	}
	return reqs
}

func TestSaveAllSplitsIntoBatches(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, DefaultConfig(), nil, nil)

	results := c.SaveAll(context.Background(), newRequests(120), "session")

	assert.Equal(t, []int{50, 50, 20}, rec.batchSizes())
	require.Len(t, results, 120)
	for i, res := range results {
		require.NoError(t, res.Err, "result %d", i)
		assert.True(t, res.State.IsNew)
		assert.NotEmpty(t, res.State.ObjectID)
	}
	for _, cmd := range rec.cmds {
		assert.Equal(t, "session", cmd.SessionToken)
	}
}

func TestSaveAllKeepsPositions(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, Config{MaxBatchSize: 2, MaxConcurrentBatches: 3}, nil, nil)
	rec.handler = func(cmd *command.Command) (*command.Response, error) {
		reqs := cmd.Body["requests"].([]any)
		results := make([]any, len(reqs))
		for i, r := range reqs {
			n := r.(map[string]any)["body"].(map[string]any)["n"]
			results[i] = map[string]any{"success": map[string]any{"objectId": fmt.Sprintf("obj-%v", n)}}
		}
		return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"results": results}}, nil
	}

	results := c.SaveAll(context.Background(), newRequests(7), "")
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, fmt.Sprintf("obj-%d", i), res.State.ObjectID)
		assert.False(t, res.State.IsNew)
	}
}

func TestSaveSingleObject(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, DefaultConfig(), nil, nil)

	results := c.SaveAll(context.Background(), newRequests(1), "")
	require.Len(t, rec.cmds, 1)
	assert.Equal(t, http.MethodPost, rec.cmds[0].Method)
	assert.Equal(t, "classes/Player", rec.cmds[0].Path)
	assert.Equal(t, int64(0), rec.cmds[0].Body["n"])

	require.NoError(t, results[0].Err)
	assert.True(t, results[0].State.IsNew)
	assert.Equal(t, "single", results[0].State.ObjectID)

	_, err := c.Save(context.Background(), SaveRequest{ClassName: "Player", ObjectID: "p1"}, "")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.cmds[1].Method)
	assert.Equal(t, "classes/Player/p1", rec.cmds[1].Path)
}

func TestBatchResultMismatchFailsEveryItem(t *testing.T) {
	rec := &recorder{handler: func(*command.Command) (*command.Response, error) {
		return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{
			"results": []any{map[string]any{"success": map[string]any{}}},
		}}, nil
	}}
	c := New(rec, nil, DefaultConfig(), nil, nil)

	results := c.SaveAll(context.Background(), newRequests(3), "")
	for _, res := range results {
		assert.ErrorIs(t, res.Err, ErrBatchResultMismatch)
		assert.Contains(t, res.Err.Error(), "expected 3 but was 1")
	}
}

func TestBatchPerItemErrors(t *testing.T) {
	rec := &recorder{handler: func(*command.Command) (*command.Response, error) {
		return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"results": []any{
			map[string]any{"success": map[string]any{"objectId": "a"}},
			map[string]any{"error": map[string]any{"code": int64(111), "error": "bad type"}},
			map[string]any{"surprise": true},
		}}}, nil
	}}
	c := New(rec, nil, DefaultConfig(), nil, nil)

	results := c.SaveAll(context.Background(), newRequests(3), "")
	require.NoError(t, results[0].Err)
	assert.Equal(t, "a", results[0].State.ObjectID)

	var serverErr *command.Error
	require.ErrorAs(t, results[1].Err, &serverErr)
	assert.Equal(t, command.CodeIncorrectType, serverErr.Code)
	assert.Equal(t, "bad type", serverErr.Message)

	assert.ErrorIs(t, results[2].Err, ErrInvalidBatchResult)
}

func TestBatchTransportErrorFailsChunk(t *testing.T) {
	boom := &command.Error{Code: command.CodeConnectionFailed, Message: "down"}
	rec := &recorder{handler: func(*command.Command) (*command.Response, error) { return nil, boom }}
	c := New(rec, nil, DefaultConfig(), nil, nil)

	for _, res := range c.SaveAll(context.Background(), newRequests(2), "") {
		assert.ErrorIs(t, res.Err, boom)
	}
}

func TestBatchSubRequestShape(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, Config{BatchPathPrefix: "/1/"}, nil, nil)

	reqs := newRequests(2)
	reqs[1].ObjectID = "p9"
	c.SaveAll(context.Background(), reqs, "")

	require.Len(t, rec.cmds, 1)
	sub := rec.cmds[0].Body["requests"].([]any)
	assert.Equal(t, "POST", sub[0].(map[string]any)["method"])
	assert.Equal(t, "/1/classes/Player", sub[0].(map[string]any)["path"])
	assert.Equal(t, "PUT", sub[1].(map[string]any)["method"])
	assert.Equal(t, "/1/classes/Player/p9", sub[1].(map[string]any)["path"])
}

func TestEncodingFailureStaysLocal(t *testing.T) {
	rec := &recorder{}
	c := New(rec, nil, DefaultConfig(), nil, nil)

	reqs := newRequests(3)
	reqs[1].Operations = map[string]ops.Operation{"bad": ops.NewSet(make(chan int))}
	results := c.SaveAll(context.Background(), reqs, "")

	assert.Error(t, results[1].Err)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, []int{2}, rec.batchSizes())
}

func TestFetchAndDelete(t *testing.T) {
	rec := &recorder{handler: func(cmd *command.Command) (*command.Response, error) {
		switch {
		case cmd.Path == "batch":
			reqs := cmd.Body["requests"].([]any)
			results := make([]any, len(reqs))
			for i := range reqs {
				results[i] = map[string]any{"success": map[string]any{"objectId": fmt.Sprintf("p%d", i), "hp": int64(i)}}
			}
			return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"results": results}}, nil
		case cmd.Method == http.MethodGet:
			return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"objectId": "p1", "hp": int64(9)}}, nil
		default:
			return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{}}, nil
		}
	}}
	c := New(rec, nil, DefaultConfig(), nil, nil)
	ctx := context.Background()

	st, err := c.Fetch(ctx, ObjectRef{ClassName: "Player", ObjectID: "p1"}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(9), st.ServerData["hp"])

	_, err = c.Fetch(ctx, ObjectRef{ClassName: "Player"}, "")
	assert.ErrorIs(t, err, ErrMissingObjectID)

	results := c.FetchAll(ctx, []ObjectRef{
		{ClassName: "Player", ObjectID: "p0"},
		{ClassName: "Player"},
		{ClassName: "Player", ObjectID: "p1"},
	}, "")
	require.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrMissingObjectID)
	require.NoError(t, results[2].Err)
	assert.Equal(t, int64(1), results[2].State.ServerData["hp"])

	require.NoError(t, c.Delete(ctx, ObjectRef{ClassName: "Player", ObjectID: "p1"}, ""))
	errs := c.DeleteAll(ctx, []ObjectRef{{ClassName: "Player", ObjectID: "a"}, {ClassName: "Player", ObjectID: "b"}}, "")
	assert.Equal(t, []error{nil, nil}, errs)
}

func TestFetchAllDecodesItemsInPlace(t *testing.T) {
	rec := &recorder{handler: func(cmd *command.Command) (*command.Response, error) {
		reqs := cmd.Body["requests"].([]any)
		results := make([]any, len(reqs))
		for i, raw := range reqs {
			path := raw.(map[string]any)["path"].(string)
			id := path[strings.LastIndex(path, "/")+1:]
			if id == "bad" {
				results[i] = map[string]any{"success": map[string]any{"objectId": int64(7)}}
				continue
			}
			results[i] = map[string]any{"success": map[string]any{"objectId": id, "name": id}}
		}
		return &command.Response{StatusCode: http.StatusOK, Body: map[string]any{"results": results}}, nil
	}}
	c := New(rec, nil, Config{MaxBatchSize: 4, MaxConcurrentBatches: 3}, nil, nil)

	refs := make([]ObjectRef, 10)
	for i := range refs {
		refs[i] = ObjectRef{ClassName: "Player", ObjectID: fmt.Sprintf("p%d", i)}
	}
	refs[6].ObjectID = "bad"

	results := c.FetchAll(context.Background(), refs, "")
	require.Len(t, results, 10)
	for i, res := range results {
		if i == 6 {
			assert.Error(t, res.Err)
			assert.Nil(t, res.State)
			continue
		}
		require.NoError(t, res.Err)
		assert.Equal(t, refs[i].ObjectID, res.State.ObjectID)
		assert.Equal(t, refs[i].ObjectID, res.State.ServerData["name"])
	}
	assert.Equal(t, []int{4, 4, 2}, rec.batchSizes())
}
