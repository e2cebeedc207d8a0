package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew_WritesToConfiguredPath(t *testing.T) {
	path := t.TempDir() + "/out.log"

	l, err := New(Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)
	l.Debug("hello", String("k", "v"))
	_ = l.Sync()
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With(String("run_id", "abc"))

	l.Warn("site failed", Err(errors.New("boom")), Int("attempt", 2))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "abc", ctx["run_id"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, int64(2), ctx["attempt"])
}

func TestNewNop_Discards(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	assert.NotNil(t, l.With(Bool("x", true)))
}
