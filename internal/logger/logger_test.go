package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twinsa/internal/config"
)

func resetLogger(t *testing.T) {
	t.Helper()
	prev := Logger
	Logger = nil
	t.Cleanup(func() { Logger = prev })
}

func TestGetFallsBackToNop(t *testing.T) {
	resetLogger(t)
	l := Get()
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.ErrorLevel))
	Sync()
}

func TestInitProduction(t *testing.T) {
	resetLogger(t)
	cfg := config.Default()
	cfg.Env = "production"
	require.NoError(t, Init(&cfg))

	l := Get()
	assert.Same(t, Logger, l)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	Sync()
}

func TestInitDevelopment(t *testing.T) {
	resetLogger(t)
	cfg := config.Default()
	require.NoError(t, Init(&cfg))

	assert.True(t, Get().Core().Enabled(zap.DebugLevel))
	Sync()
}
