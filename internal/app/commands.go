// ABOUTME: App-level commands registered with the dispatcher
// ABOUTME: run_migrations, apply_update, get_app_version and get_platform

package app

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/2389/engagemate/internal/buildinfo"
	"github.com/2389/engagemate/internal/host"
	"github.com/2389/engagemate/internal/updater"
)

// App command names.
const (
	CommandRunMigrations = "run_migrations"
	CommandApplyUpdate   = "apply_update"
	CommandAppVersion    = "get_app_version"
	CommandPlatform      = "get_platform"
)

// PlatformInfo is returned by get_platform.
type PlatformInfo struct {
	OS     string `json:"os"`
	Arch   string `json:"arch"`
	Target string `json:"target"`
	Mode   string `json:"mode"`
}

// AppliedUpdate is returned by apply_update before the restart.
type AppliedUpdate struct {
	Version    string `json:"version"`
	Migrations string `json:"migrations"`
}

func (s *Shell) commands() map[string]host.Handler {
	return map[string]host.Handler{
		CommandRunMigrations: s.handleRunMigrations,
		CommandApplyUpdate:   s.handleApplyUpdate,
		CommandAppVersion: func(context.Context, json.RawMessage) (any, error) {
			return buildinfo.Version, nil
		},
		CommandPlatform: func(context.Context, json.RawMessage) (any, error) {
			return PlatformInfo{
				OS:     runtime.GOOS,
				Arch:   updater.Arch(runtime.GOARCH),
				Target: updater.Target(runtime.GOOS, runtime.GOARCH),
				Mode:   buildinfo.Mode(),
			}, nil
		},
	}
}

func (s *Shell) handleRunMigrations(ctx context.Context, _ json.RawMessage) (any, error) {
	o := s.Invoker.Run(ctx)
	if !o.OK() {
		return nil, o.Err()
	}
	return o.Text(), nil
}

// handleApplyUpdate downloads and installs the pending update, runs
// migrations against the existing database and restarts. A migration
// failure leaves the new binary installed but does not restart.
func (s *Shell) handleApplyUpdate(ctx context.Context, _ json.RawMessage) (any, error) {
	upd, err := s.Updater.DownloadAndInstall(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("update installed, running migrations", "version", upd.Version)

	o := s.Invoker.Run(ctx)
	if !o.OK() {
		return nil, o.Err()
	}

	if err := s.Process.RestartNow(); err != nil {
		return nil, err
	}
	return AppliedUpdate{Version: upd.Version, Migrations: o.Text()}, nil
}
