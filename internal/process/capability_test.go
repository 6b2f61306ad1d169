package process

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/engagemate/internal/capability"
)

func newTestCapability(t *testing.T) (*Capability, *[]int) {
	t.Helper()
	var exits []int
	c := NewCapability(nil)
	c.Exit = func(code int) { exits = append(exits, code) }
	require.NoError(t, c.Activate(context.Background(), capability.NewEnv(t.TempDir())))
	return c, &exits
}

func TestCapability_Exit(t *testing.T) {
	c, exits := newTestCapability(t)

	_, err := c.Commands()[CommandExit](context.Background(), json.RawMessage(`{"code":2}`))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, *exits)
}

func TestCapability_ExitBadArgs(t *testing.T) {
	c, exits := newTestCapability(t)

	_, err := c.Commands()[CommandExit](context.Background(), json.RawMessage(`{"code":"x"}`))
	require.Error(t, err)
	assert.Empty(t, *exits)
}

func TestCapability_Restart(t *testing.T) {
	c, exits := newTestCapability(t)
	restarted := false
	c.Restart = func() error { restarted = true; return nil }

	_, err := c.Commands()[CommandRestart](context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, restarted)
	assert.Equal(t, []int{0}, *exits)
}

func TestCapability_RestartFailureDoesNotExit(t *testing.T) {
	c, exits := newTestCapability(t)
	c.Restart = func() error { return errors.New("exec format error") }

	err := c.RestartNow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restarting: exec format error")
	assert.Empty(t, *exits)
}

func TestCapability_DefaultSpawner(t *testing.T) {
	c := NewCapability(nil)
	assert.Equal(t, "process", c.Name())
	assert.IsType(t, ExecSpawner{}, c.Spawner())
}
