// ABOUTME: Composition root that builds the shell from configuration
// ABOUTME: Activates capabilities, registers commands and owns the host runtime

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/juju/clock"

	"github.com/2389/engagemate/internal/buildinfo"
	"github.com/2389/engagemate/internal/capability"
	"github.com/2389/engagemate/internal/config"
	"github.com/2389/engagemate/internal/host"
	"github.com/2389/engagemate/internal/logging"
	"github.com/2389/engagemate/internal/migrate"
	"github.com/2389/engagemate/internal/process"
	"github.com/2389/engagemate/internal/store"
	"github.com/2389/engagemate/internal/updater"
)

// Options carries process-level dependencies. The zero value uses the
// real ones.
type Options struct {
	// Dev selects the development capability set. Nil uses the build mode.
	Dev *bool
	// LogOutput receives development logs. Defaults to os.Stderr.
	LogOutput io.Writer
	// SetDefaultLogger makes the development logger slog's default.
	SetDefaultLogger bool

	Spawner process.Spawner
	Clock   clock.Clock
	Exit    func(code int)
	Restart func() error
}

// Shell is the composed application. All fields are set by New.
type Shell struct {
	Config     *config.Config
	Env        *capability.Env
	Registrar  *capability.Registrar
	Dispatcher *host.Dispatcher
	Runtime    *host.Runtime
	Invoker    *migrate.Invoker

	Store   *store.Capability
	Updater *updater.Capability
	Process *process.Capability

	logger *slog.Logger
}

// New builds and activates the shell. Any failure is startup-fatal.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Shell, error) {
	dev := buildinfo.DevBuild
	if opts.Dev != nil {
		dev = *opts.Dev
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	s := &Shell{
		Config:    cfg,
		Env:       capability.NewEnv(cfg.App.DataDir),
		Registrar: capability.NewRegistrar(),
		Store:     store.NewCapability(cfg.DatabaseURL(), cfg.Database.Preload),
		Updater:   updater.NewCapability(updaterOptions(cfg, opts.Clock)),
		Process:   process.NewCapability(opts.Spawner),
	}
	if opts.Exit != nil {
		s.Process.Exit = opts.Exit
	}
	if opts.Restart != nil {
		s.Process.Restart = opts.Restart
	}

	logCap := logging.NewCapability(opts.LogOutput, cfg.Logging)
	if !opts.SetDefaultLogger {
		logCap = logCap.WithoutDefault()
	}
	s.Registrar.AddDev(logCap)
	s.Registrar.Add(s.Store)
	s.Registrar.Add(s.Updater)
	s.Registrar.Add(s.Process)

	if err := s.Registrar.Activate(ctx, s.Env, dev); err != nil {
		return nil, fmt.Errorf("%w: activating capabilities: %w", host.ErrInit, err)
	}
	s.logger = s.Env.Logger()

	if err := s.wire(); err != nil {
		return nil, errors.Join(err, s.Registrar.Close())
	}

	s.logger.Info("shell ready",
		"version", buildinfo.Version,
		"mode", buildinfo.Mode(),
		"capabilities", s.Registrar.Activated(),
		"commands", len(s.Dispatcher.Commands()),
	)
	return s, nil
}

func (s *Shell) wire() error {
	cfg := s.Config

	overlap, err := migrate.ParseOverlap(cfg.Migrations.Overlap)
	if err != nil {
		return err
	}
	collector := migrate.NewCollector()
	if err := s.Env.Metrics.Register(collector); err != nil {
		return fmt.Errorf("registering migrate metrics: %w", err)
	}
	s.Invoker = migrate.New(s.Process.Spawner(), migrate.Options{
		Tool:        cfg.Migrations.Tool,
		Dir:         cfg.Migrations.Dir,
		DatabaseURL: "file:" + cfg.Database.Path,
		Overlap:     overlap,
		Timeout:     cfg.Migrations.Timeout,
		Logger:      s.logger,
		Collector:   collector,
	})

	s.Dispatcher = host.NewDispatcher(s.logger)
	if err := s.Registrar.RegisterCommands(s.Dispatcher); err != nil {
		return err
	}
	for name, h := range s.commands() {
		if err := s.Dispatcher.Register(name, h); err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
	}

	hostCfg := host.Config{
		IPCAddr:  cfg.Host.IPCAddr,
		GRPCAddr: cfg.Host.GRPCAddr,
		Gatherer: s.Env.Metrics,
	}
	if cfg.Host.IPCSecret != "" {
		hostCfg.Secret = []byte(cfg.Host.IPCSecret)
	}
	if cfg.Metrics.Enabled {
		hostCfg.MetricsPath = cfg.Metrics.Path
	}
	s.Runtime = host.New(hostCfg, s.Dispatcher, s.Registrar.Tasks(), s.logger)
	return nil
}

func updaterOptions(cfg *config.Config, clk clock.Clock) updater.Options {
	return updater.Options{
		Config: updater.Config{
			Endpoints:      cfg.Updater.Endpoints,
			PublicKey:      cfg.Updater.PublicKey,
			CurrentVersion: buildinfo.Version,
			InstallPath:    cfg.Updater.InstallPath,
			Timeout:        cfg.Updater.Timeout,
		},
		Enabled:      cfg.Updater.Enabled,
		InitialDelay: cfg.Updater.InitialDelay,
		Interval:     cfg.Updater.Interval,
		Clock:        clk,
	}
}

// Run hands control to the host runtime until ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	return s.Runtime.Run(ctx)
}

// RunMigrations invokes the migration tool directly, bypassing dispatch.
func (s *Shell) RunMigrations(ctx context.Context) migrate.Outcome {
	return s.Invoker.Run(ctx)
}

// Close tears down the capabilities in reverse activation order.
func (s *Shell) Close() error {
	return s.Registrar.Close()
}
