// ABOUTME: Capability contract and the explicit startup environment
// ABOUTME: Env is built once and passed by reference to every capability

package capability

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/2389/engagemate/internal/host"
)

// ErrLoggerActive is returned when a second logger is installed.
var ErrLoggerActive = errors.New("logger already active")

// Capability is a pluggable unit of platform functionality activated once
// at startup.
type Capability interface {
	Name() string
	Activate(ctx context.Context, env *Env) error
}

// CommandProvider is implemented by capabilities that expose named commands.
type CommandProvider interface {
	Commands() map[string]host.Handler
}

// TaskProvider is implemented by capabilities that need background work
// while the runtime runs.
type TaskProvider interface {
	Tasks() []host.Task
}

// Env is the startup environment shared by all capabilities.
type Env struct {
	// DataDir is the application data directory.
	DataDir string

	// Metrics collects capability metrics. Never nil.
	Metrics *prometheus.Registry

	mu              sync.Mutex
	logger          *slog.Logger
	loggerInstalled bool
}

// NewEnv returns an Env that logs nowhere until a logger is installed.
func NewEnv(dataDir string) *Env {
	return &Env{
		DataDir: dataDir,
		Metrics: prometheus.NewRegistry(),
		logger:  slog.New(slog.DiscardHandler),
	}
}

// Logger returns the current logger.
func (e *Env) Logger() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logger
}

// InstallLogger makes l the environment logger.
// Returns ErrLoggerActive if a logger was already installed.
func (e *Env) InstallLogger(l *slog.Logger) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loggerInstalled {
		return ErrLoggerActive
	}
	e.logger = l
	e.loggerInstalled = true
	return nil
}

// LoggerInstalled reports whether a logger has been installed.
func (e *Env) LoggerInstalled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loggerInstalled
}
