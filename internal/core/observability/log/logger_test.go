package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core), LevelDebug)

	l.With(String("component", "vehicle")).Info("tick rejected",
		Float64("velocity", 12.5),
		Int("lap", 2),
		Duration("lap_time", 45*time.Second),
		Bool("finished", false),
		Error(errors.New("non-finite")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "vehicle", ctx["component"])
	assert.Equal(t, 12.5, ctx["velocity"])
	assert.EqualValues(t, 2, ctx["lap"])
	assert.Equal(t, 45*time.Second, ctx["lap_time"])
	assert.Equal(t, "non-finite", ctx["error"])
}

func TestLoggerLevelGate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core), LevelWarn)

	l.Log(LevelInfo, "dropped")
	l.Log(LevelWarn, "kept")
	assert.Equal(t, 1, logs.Len())
	assert.False(t, l.Enabled(LevelDebug))

	l.SetLevel(LevelDebug)
	assert.True(t, l.Enabled(LevelDebug))
	assert.Equal(t, LevelDebug, l.GetLevel())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelSilent, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Named("race").Error("ignored", Error(nil))
	})
}
