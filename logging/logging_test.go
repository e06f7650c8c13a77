package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fuzzyscore/config"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fuzzyscore.log")
	logger, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("batch scored", zap.Int("count", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.Contains(body, `"msg":"batch scored"`), body)
	assert.True(t, strings.Contains(body, `"count":3`), body)
	assert.False(t, strings.Contains(body, "hidden"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
