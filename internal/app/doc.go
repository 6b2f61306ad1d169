// Package app composes the engagemate shell.
//
// New builds everything from one *config.Config: it activates the
// capability set (logging first in development builds, then storage,
// updater and process), registers capability commands and the app
// commands with the dispatcher, and wires the host runtime.
//
// App commands:
//
//   - run_migrations   apply pending schema changes with the migration tool
//   - apply_update     download and install an update, migrate, restart
//   - get_app_version  the running version
//   - get_platform     os, arch, update target and build mode
package app
