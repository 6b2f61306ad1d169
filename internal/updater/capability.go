// ABOUTME: Updater capability with scheduled checks and plugin:updater commands
// ABOUTME: Remembers the last check result for status and install requests

package updater

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/2389/engagemate/internal/capability"
	"github.com/2389/engagemate/internal/host"
)

// Command names exposed by the updater capability.
const (
	CommandCheck              = "plugin:updater|check"
	CommandDownloadAndInstall = "plugin:updater|download_and_install"
	CommandStatus             = "plugin:updater|status"
)

var (
	// ErrDisabled is returned by commands when the updater is disabled.
	ErrDisabled = errors.New("updater disabled")

	// ErrNoUpdate is returned when an install is requested but no update
	// is available.
	ErrNoUpdate = errors.New("no update available")
)

// Options configures the updater capability.
type Options struct {
	Config
	Enabled      bool
	InitialDelay time.Duration
	Interval     time.Duration
	Clock        clock.Clock
}

// Status is the result of the most recent check.
type Status struct {
	Enabled   bool       `json:"enabled"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	Update    *Update    `json:"update,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Capability is the self-update-check capability.
type Capability struct {
	opts    Options
	updater *Updater
	logger  *slog.Logger

	mu     sync.Mutex
	status Status
}

// NewCapability returns the updater capability.
func NewCapability(opts Options) *Capability {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Capability{
		opts:   opts,
		logger: slog.New(slog.DiscardHandler),
		status: Status{Enabled: opts.Enabled},
	}
}

// Name implements capability.Capability.
func (c *Capability) Name() string { return "updater" }

// Activate implements capability.Capability. A disabled updater activates
// without contacting anything.
func (c *Capability) Activate(_ context.Context, env *capability.Env) error {
	c.logger = env.Logger().With("component", "updater")
	if !c.opts.Enabled {
		return nil
	}

	cfg := c.opts.Config
	cfg.Logger = env.Logger()
	u, err := New(cfg)
	if err != nil {
		return err
	}
	c.updater = u
	return nil
}

// Check runs an update check and records the result.
func (c *Capability) Check(ctx context.Context) (*Update, error) {
	if c.updater == nil {
		return nil, ErrDisabled
	}

	upd, err := c.updater.Check(ctx)

	now := c.opts.Clock.Now()
	c.mu.Lock()
	c.status.CheckedAt = &now
	c.status.Update = upd
	c.status.Error = ""
	if err != nil {
		c.status.Error = err.Error()
	}
	c.mu.Unlock()

	return upd, err
}

// Status returns the result of the most recent check.
func (c *Capability) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// DownloadAndInstall installs the update found by the last check, checking
// first when there is none. Returns ErrNoUpdate when up to date.
func (c *Capability) DownloadAndInstall(ctx context.Context) (*Update, error) {
	if c.updater == nil {
		return nil, ErrDisabled
	}

	upd := c.Status().Update
	if upd == nil {
		var err error
		if upd, err = c.Check(ctx); err != nil {
			return nil, err
		}
		if upd == nil {
			return nil, ErrNoUpdate
		}
	}

	if err := c.updater.DownloadAndInstall(ctx, upd); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.status.Update = nil
	c.mu.Unlock()
	return upd, nil
}

// Commands implements capability.CommandProvider.
func (c *Capability) Commands() map[string]host.Handler {
	return map[string]host.Handler{
		CommandCheck: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.Check(ctx)
		},
		CommandDownloadAndInstall: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.DownloadAndInstall(ctx)
		},
		CommandStatus: func(context.Context, json.RawMessage) (any, error) {
			return c.Status(), nil
		},
	}
}

// Tasks implements capability.TaskProvider.
func (c *Capability) Tasks() []host.Task {
	if c.updater == nil {
		return nil
	}
	s := &Scheduler{
		Clock:        c.opts.Clock,
		InitialDelay: c.opts.InitialDelay,
		Interval:     c.opts.Interval,
		Check: func(ctx context.Context) {
			if _, err := c.Check(ctx); err != nil {
				c.logger.Warn("scheduled update check failed", "error", err)
			}
		},
	}
	return []host.Task{{Name: "update-check", Run: s.Run}}
}
