package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/objectsync/internal/core/ops"
	"github.com/zeusync/objectsync/internal/core/state"
)

func TestEncodeValue(t *testing.T) {
	enc := Encoder{}
	when := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.FixedZone("X", 3600))

	v, err := enc.EncodeValue(map[string]any{
		"when":  when,
		"bytes": []byte("hi"),
		"ptr":   Pointer{Class: "User", ID: "u1"},
		"list":  []int{1, 2},
		"rel":   ops.Relation{TargetClass: "User"},
	})
	require.NoError(t, err)

	m := v.(map[string]any)
	assert.Equal(t, map[string]any{"__type": "Date", "iso": "2024-05-06T06:08:09.123Z"}, m["when"])
	assert.Equal(t, map[string]any{"__type": "Bytes", "base64": "aGk="}, m["bytes"])
	assert.Equal(t, map[string]any{"__type": "Pointer", "className": "User", "objectId": "u1"}, m["ptr"])
	assert.Equal(t, []any{1, 2}, m["list"])
	assert.Equal(t, map[string]any{"__type": "Relation", "className": "User"}, m["rel"])
}

func TestEncodeValueErrors(t *testing.T) {
	enc := Encoder{}

	_, err := enc.EncodeValue([]any{Pointer{Class: "User"}})
	assert.ErrorIs(t, err, ErrUnsavedPointer)

	_, err = enc.EncodeValue(struct{ A int }{1})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = enc.EncodeValue(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeOperations(t *testing.T) {
	inc, err := ops.NewIncrement(3)
	require.NoError(t, err)
	rel, err := ops.NewRelationAdd(Pointer{Class: "User", ID: "u1"})
	require.NoError(t, err)

	body, err := Encoder{}.EncodeOperations(map[string]ops.Operation{
		"score":   inc,
		"name":    ops.NewSet("ana"),
		"old":     ops.NewDelete(),
		"friends": rel,
	})
	require.NoError(t, err)

	assert.Equal(t, "ana", body["name"])
	assert.Equal(t, map[string]any{"__op": "Increment", "amount": int64(3)}, body["score"])
	assert.Equal(t, map[string]any{"__op": "Delete"}, body["old"])
	assert.Equal(t, map[string]any{
		"__op":    "AddRelation",
		"objects": []any{map[string]any{"__type": "Pointer", "className": "User", "objectId": "u1"}},
	}, body["friends"])

	_, err = json.Marshal(body)
	require.NoError(t, err)
}

type factory struct{}

func (factory) Pointer(className, objectID string) any {
	return &Pointer{Class: className, ID: objectID}
}

func (factory) Object(st *state.State) any { return st }

func TestDecodeState(t *testing.T) {
	raw, err := Unmarshal([]byte(`{
		"objectId": "p1",
		"className": "Player",
		"createdAt": "2024-01-02T03:04:05.678Z",
		"score": 12,
		"ratio": 0.5,
		"owner": {"__type": "Pointer", "className": "User", "objectId": "u1"},
		"when": {"__type": "Date", "iso": "2024-02-03T00:00:00.000Z"},
		"blob": {"__type": "Bytes", "base64": "aGk="},
		"nested": {"__type": "Object", "className": "Item", "objectId": "i1", "n": 1},
		"friends": {"__type": "Relation", "className": "User"},
		"tags": ["a", 2]
	}`))
	require.NoError(t, err)

	st, err := NewDecoder(factory{}).DecodeState("Player", raw)
	require.NoError(t, err)

	created := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	assert.Equal(t, "p1", st.ObjectID)
	assert.True(t, created.Equal(st.CreatedAt))
	assert.True(t, created.Equal(st.UpdatedAt), "updatedAt falls back to createdAt")
	assert.NotContains(t, st.ServerData, "className")
	assert.NotContains(t, st.ServerData, "objectId")

	assert.Equal(t, int64(12), st.ServerData["score"])
	assert.Equal(t, 0.5, st.ServerData["ratio"])
	assert.Equal(t, &Pointer{Class: "User", ID: "u1"}, st.ServerData["owner"])
	assert.Equal(t, []byte("hi"), st.ServerData["blob"])
	assert.Equal(t, ops.Relation{TargetClass: "User"}, st.ServerData["friends"])
	assert.Equal(t, []any{"a", int64(2)}, st.ServerData["tags"])

	nested, ok := st.ServerData["nested"].(*state.State)
	require.True(t, ok)
	assert.Equal(t, "i1", nested.ObjectID)
	assert.Equal(t, int64(1), nested.ServerData["n"])
}

func TestDecodeOperation(t *testing.T) {
	dec := NewDecoder(nil)

	t.Run("roundtrip through encoder", func(t *testing.T) {
		inc, err := ops.NewIncrement(4)
		require.NoError(t, err)
		for _, op := range []ops.Operation{inc, ops.NewDelete(), ops.NewAdd("x"), ops.NewAddUnique(int64(1)), ops.NewRemove("y")} {
			wire, err := op.Encode(Encoder{})
			require.NoError(t, err)
			data, err := json.Marshal(wire)
			require.NoError(t, err)
			m, err := Unmarshal(data)
			require.NoError(t, err)

			got, err := dec.DecodeOperation(m)
			require.NoError(t, err)
			assert.Equal(t, op, got)
		}
	})

	t.Run("batch relation", func(t *testing.T) {
		op := &ops.RelationOp{TargetClass: "User", Adds: []string{"a"}, Removes: []string{"b"}}
		wire, err := op.Encode(Encoder{})
		require.NoError(t, err)
		data, err := json.Marshal(wire)
		require.NoError(t, err)
		m, err := Unmarshal(data)
		require.NoError(t, err)

		got, err := dec.DecodeOperation(m)
		require.NoError(t, err)
		assert.Equal(t, op, got)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := dec.DecodeOperation(map[string]any{"__op": "Explode"})
		assert.ErrorIs(t, err, ErrUnknownOperation)
	})
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", FormatDate(got))

	_, err = ParseDate("yesterday")
	assert.ErrorIs(t, err, ErrMalformedValue)
}
