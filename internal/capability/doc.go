// Package capability composes the platform capabilities the shell needs.
//
// # Overview
//
// A capability is a pluggable unit of platform functionality (storage,
// update checks, process spawning, logging) activated once at startup. The
// Registrar holds the fixed, known-in-advance set and activates it in order:
//
//	reg := capability.NewRegistrar()
//	reg.AddDev(logging.NewCapability(os.Stdout, cfg.Logging))
//	reg.Add(store.NewCapability(...))
//	reg.Add(updater.NewCapability(...))
//	reg.Add(process.NewCapability(...))
//	err := reg.Activate(ctx, env, buildinfo.DevBuild)
//
// Development-only capabilities go first so logging is active before any
// other capability emits diagnostics. In release builds they are never
// activated.
//
// # Env
//
// Env replaces ambient registration with one explicit struct built at
// startup and passed by reference: logger slot, metrics registry and data
// directory. The logger slot can be filled once; a second InstallLogger
// fails with ErrLoggerActive.
//
// # Commands and Tasks
//
// After activation the registrar hands each capability's commands to the
// host dispatcher (RegisterCommands) and collects background tasks for the
// runtime (Tasks).
package capability
