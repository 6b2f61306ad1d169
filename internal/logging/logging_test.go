package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/engagemate/internal/capability"
	"github.com/2389/engagemate/internal/config"
)

func TestNew_JSONFiltersBelowInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LoggingConfig{Format: "json"}, Level)

	logger.Debug("hidden")
	logger.Info("shown", "component", "test")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "test", rec["component"])
}

func TestNew_TextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LoggingConfig{Format: "text", NoColor: true}, Level)

	logger.With("component", "store").Warn("slow query", "ms", 120)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "WRN slow query")
	assert.Contains(t, out, "component=store")
	assert.Contains(t, out, "ms=120")
	assert.NotContains(t, out, "hidden")
}

func TestNew_NoColorLeavesGlobalSetting(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	New(&buf, config.LoggingConfig{Format: "text", NoColor: true}, Level).Info("plain")

	assert.False(t, color.NoColor)
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "INF plain")
}

func TestColorHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LoggingConfig{Format: "text", NoColor: true}, Level)

	logger.WithGroup("child").Info("spawned", "pid", 42)
	assert.Contains(t, buf.String(), "child.pid=42")
}

func TestCapability_ActivateInstallsLogger(t *testing.T) {
	var buf bytes.Buffer
	env := capability.NewEnv(t.TempDir())
	c := NewCapability(&buf, config.LoggingConfig{Format: "json"}).WithoutDefault()

	require.NoError(t, c.Activate(context.Background(), env))
	assert.True(t, env.LoggerInstalled())

	env.Logger().Info("after activation")
	assert.Contains(t, buf.String(), "after activation")
}

func TestCapability_ActivateTwiceFails(t *testing.T) {
	env := capability.NewEnv(t.TempDir())
	c := NewCapability(&bytes.Buffer{}, config.LoggingConfig{Format: "json"}).WithoutDefault()

	require.NoError(t, c.Activate(context.Background(), env))
	err := c.Activate(context.Background(), env)
	assert.ErrorIs(t, err, capability.ErrLoggerActive)
}

func TestCapability_Name(t *testing.T) {
	assert.Equal(t, "log", NewCapability(&bytes.Buffer{}, config.LoggingConfig{}).Name())
	assert.Equal(t, slog.LevelInfo, Level)
}
