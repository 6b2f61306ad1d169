// ABOUTME: Structured logging capability for development builds
// ABOUTME: Installs a fixed Info-level slog logger into the startup Env exactly once

package logging

import (
	"context"
	"io"
	"log/slog"

	"github.com/2389/engagemate/internal/capability"
	"github.com/2389/engagemate/internal/config"
)

// Level is the fixed minimum severity of the logging capability.
const Level = slog.LevelInfo

// New builds a logger writing to out in the configured format.
func New(out io.Writer, cfg config.LoggingConfig, level slog.Leveler) *slog.Logger {
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newColorHandler(out, level, cfg.NoColor))
}

// Capability activates structured logging at Level.
type Capability struct {
	out        io.Writer
	cfg        config.LoggingConfig
	setDefault bool
}

// NewCapability returns the logging capability writing to out.
func NewCapability(out io.Writer, cfg config.LoggingConfig) *Capability {
	return &Capability{out: out, cfg: cfg, setDefault: true}
}

// WithoutDefault keeps the capability from replacing slog's default logger.
func (c *Capability) WithoutDefault() *Capability {
	c.setDefault = false
	return c
}

// Name implements capability.Capability.
func (c *Capability) Name() string { return "log" }

// Activate installs the logger. Fails with capability.ErrLoggerActive if
// logging is already active.
func (c *Capability) Activate(_ context.Context, env *capability.Env) error {
	logger := New(c.out, c.cfg, Level)
	if err := env.InstallLogger(logger); err != nil {
		return err
	}
	if c.setDefault {
		slog.SetDefault(logger)
	}
	logger.Info("logging active", "level", Level.String(), "format", c.cfg.Format)
	return nil
}
