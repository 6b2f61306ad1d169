// Package dedupe provides a TTL- and size-bounded cache that collapses
// repeated requests for the same key onto the first one's value.
//
// The IPC endpoint uses it for Idempotency-Key headers: a retried request
// attaches to the call already running (or recently finished) instead of
// dispatching the command again.
package dedupe
