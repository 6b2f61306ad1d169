// ABOUTME: Process capability exposing the spawner and exit/restart commands
// ABOUTME: Restart re-executes the current binary with the same arguments

package process

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/2389/engagemate/internal/capability"
	"github.com/2389/engagemate/internal/host"
)

// Command names exposed by the process capability.
const (
	CommandExit    = "plugin:process|exit"
	CommandRestart = "plugin:process|restart"
)

// Capability is the process-spawning capability.
type Capability struct {
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
	// Restart starts a replacement process. Defaults to re-executing
	// os.Executable with the current arguments.
	Restart func() error

	spawner Spawner
	logger  *slog.Logger
}

// NewCapability returns the process capability using spawner for children.
func NewCapability(spawner Spawner) *Capability {
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	return &Capability{
		Exit:    os.Exit,
		Restart: reexec,
		spawner: spawner,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// Name implements capability.Capability.
func (c *Capability) Name() string { return "process" }

// Activate implements capability.Capability.
func (c *Capability) Activate(_ context.Context, env *capability.Env) error {
	c.logger = env.Logger().With("component", "process")
	return nil
}

// Spawner returns the spawner used for child processes.
func (c *Capability) Spawner() Spawner { return c.spawner }

// Commands implements capability.CommandProvider.
func (c *Capability) Commands() map[string]host.Handler {
	return map[string]host.Handler{
		CommandExit:    c.handleExit,
		CommandRestart: c.handleRestart,
	}
}

type exitArgs struct {
	Code int `json:"code"`
}

func (c *Capability) handleExit(_ context.Context, raw json.RawMessage) (any, error) {
	var args exitArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decoding exit args: %w", err)
		}
	}
	c.logger.Info("exiting", "code", args.Code)
	c.Exit(args.Code)
	return nil, nil
}

func (c *Capability) handleRestart(context.Context, json.RawMessage) (any, error) {
	return nil, c.RestartNow()
}

// RestartNow starts a replacement process and exits the current one.
func (c *Capability) RestartNow() error {
	c.logger.Info("restarting")
	if err := c.Restart(); err != nil {
		return fmt.Errorf("restarting: %w", err)
	}
	c.Exit(0)
	return nil
}

func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
