package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/objectsync/internal/core/codec"
)

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in    string
		key   string
		value any
	}{
		{"name=ada", "name", "ada"},
		{"score=42", "score", int64(42)},
		{"ratio=0.5", "ratio", 0.5},
		{"active=true", "active", true},
		{`tags=["a","b"]`, "tags", []any{"a", "b"}},
		{`quoted="42"`, "quoted", "42"},
		{"expr=a=b", "expr", "a=b"},
		{`owner={"__type":"Pointer","className":"Player","objectId":"p1"}`, "owner", codec.Pointer{Class: "Player", ID: "p1"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, value, err := parseAssignment(nil, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestParseAssignmentRejectsMissingKey(t *testing.T) {
	for _, in := range []string{"novalue", "=1"} {
		_, _, err := parseAssignment(nil, in)
		assert.Error(t, err, in)
	}
}
