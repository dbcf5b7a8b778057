package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/simmonsmd7/inkflow-sub000/config"
)

func TestNew_Level(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "WARN", Format: "json"})

	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})

	assert.Error(t, err)
	assert.Panics(t, func() { Must(config.LoggingConfig{Level: "loud"}) })
}

func TestNew_FileSink(t *testing.T) {
	cfg := config.Defaults().Logging
	cfg.Format = "console"
	cfg.File.Enabled = true
	cfg.File.Path = filepath.Join(t.TempDir(), "inkflow.log")

	logger, err := New(cfg)
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, cfg.File.Path)
}
