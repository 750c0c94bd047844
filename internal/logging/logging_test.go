package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		enabled zap.AtomicLevel
	}{
		{level: "debug", enabled: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{level: "info", enabled: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{level: "error", enabled: zap.NewAtomicLevelAt(zap.ErrorLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled.Level()))
			if tt.enabled.Level() > zap.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.enabled.Level()-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud")
	assert.Error(t, err)
}

func TestNew_ExtraSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	logger, err := New("info", nil, core)
	require.NoError(t, err)

	logger.Debug("adding points")
	logger.Info("added points", zap.Int64("userID", 1))
	logger.Warn("missing required fields: userId or points")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "added points", entries[0].Message)
	assert.Equal(t, int64(1), entries[0].ContextMap()["userID"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
