package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesTypedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.With(String("component", "hub")).Info("saved",
		Int("objects", 3),
		Strings("classes", []string{"Post", "Comment"}),
		Error(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "saved", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "hub", fields["component"])
	assert.Equal(t, int64(3), fields["objects"])
	assert.Equal(t, "boom", fields["error"])
}

func TestLoggerNilErrorIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Warn("nothing failed", Error(nil))

	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()["error"]
	assert.False(t, ok)
}

func TestLoggerLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.SetLevel(LevelWarn)

	l.Log(LevelInfo, "dropped")
	l.Log(LevelError, "kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, LevelWarn, l.GetLevel())
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Debug("command")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelSilent, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := NewNop()
	l.Error("ignored", Error(errors.New("x")))
	assert.NotNil(t, l.With(String("k", "v")))
}
