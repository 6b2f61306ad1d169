// Package migrate runs the external schema-migration tool.
//
// The Invoker spawns
//
//	<tool> prisma db push --accept-data-loss
//
// once per call, waits for it to exit and maps the result to an Outcome:
//
//	exit 0        Success      "Migrations completed successfully"
//	exit != 0     ToolFailed   "Migration failed: <stderr>"
//	spawn error   SpawnFailed  "Failed to run migrations: <error>"
//
// With the default "reject" overlap policy a call made while another
// migration is running returns AlreadyRunning without spawning. A positive
// Timeout kills the child and returns TimedOut. When the caller's context
// ends first the child is killed and the result is Canceled.
//
// Outcome.Err returns a *Failure that matches ErrToolFailed,
// ErrSpawnFailed, ErrAlreadyRunning, ErrTimedOut or ErrCanceled with
// errors.Is.
package migrate
