// Package host is the runtime the shell hands control to after startup.
//
// # Overview
//
// The runtime owns the process main loop. It does no business logic: it
// dispatches named commands registered by capabilities and the app, and
// carries them over a loopback HTTP IPC endpoint to the UI.
//
// # Dispatch
//
// Every dispatched command runs on its own goroutine, so a long command
// (a migration waiting on its child process) never blocks other commands:
//
//	call := d.Dispatch(ctx, "run_migrations", nil)
//	value, err := call.Wait(ctx)
//
// Handler contexts keep request values but drop cancellation; abandoning a
// Wait never interrupts the handler.
//
// # IPC Endpoint
//
//   - POST /ipc/{command}  - invoke a command, JSON args in the body
//   - GET /ipc             - list registered commands
//   - GET /health          - liveness check
//   - GET /metrics         - Prometheus metrics (optional)
//
// Handler errors are returned as data with status 200:
//
//	{"id":"...","command":"run_migrations","ok":false,"value":null,
//	 "error":"Migration failed: ...","kind":"tool_failed"}
//
// When a secret is configured, /ipc requires an HS256 bearer token.
//
// # gRPC Health
//
// When GRPCAddr is set the standard grpc.health.v1 service reports SERVING
// for "" and HealthService while the runtime runs.
package host
