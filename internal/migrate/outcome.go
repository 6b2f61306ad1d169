// ABOUTME: Tagged migration outcome with caller-facing text and error classes
// ABOUTME: Failure errors match kind sentinels via errors.Is

package migrate

import (
	"errors"
	"fmt"
	"time"
)

// Caller-facing texts.
const (
	SuccessText        = "Migrations completed successfully"
	toolFailedPrefix   = "Migration failed: "
	spawnFailedPrefix  = "Failed to run migrations: "
	alreadyRunningText = "Migration already running"
	timedOutPrefix     = "Migration timed out after "
	canceledPrefix     = "Migration canceled: "
)

// Error classes. Every non-success Outcome's Err matches exactly one.
var (
	ErrToolFailed     = errors.New("migration tool failed")
	ErrSpawnFailed    = errors.New("migration tool could not be started")
	ErrAlreadyRunning = errors.New("migration already running")
	ErrTimedOut       = errors.New("migration timed out")
	ErrCanceled       = errors.New("migration canceled")
)

// Kind tags an Outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindToolFailed
	KindSpawnFailed
	KindAlreadyRunning
	KindTimedOut
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindToolFailed:
		return "tool_failed"
	case KindSpawnFailed:
		return "spawn_failed"
	case KindAlreadyRunning:
		return "already_running"
	case KindTimedOut:
		return "timed_out"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindToolFailed:
		return ErrToolFailed
	case KindSpawnFailed:
		return ErrSpawnFailed
	case KindAlreadyRunning:
		return ErrAlreadyRunning
	case KindTimedOut:
		return ErrTimedOut
	case KindCanceled:
		return ErrCanceled
	default:
		return nil
	}
}

// Outcome is the result of one migration invocation.
type Outcome struct {
	Kind Kind
	// ExitCode is the child's exit status. Meaningful for Success and
	// ToolFailed only.
	ExitCode int
	// Stderr is the raw diagnostic output of the child.
	Stderr   []byte
	Duration time.Duration

	text  string
	cause error
}

// OK reports whether the migration succeeded.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// Text returns the caller-facing message.
func (o Outcome) Text() string { return o.text }

func (o Outcome) String() string { return o.text }

// Err returns nil on success and a *Failure otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Failure{Kind: o.Kind, Message: o.text, Cause: o.cause}
}

func success(exitCode int, stderr []byte, d time.Duration) Outcome {
	return Outcome{Kind: KindSuccess, ExitCode: exitCode, Stderr: stderr, Duration: d, text: SuccessText}
}

func toolFailed(exitCode int, stderr []byte, d time.Duration) Outcome {
	return Outcome{
		Kind:     KindToolFailed,
		ExitCode: exitCode,
		Stderr:   stderr,
		Duration: d,
		text:     toolFailedPrefix + decodeLossy(stderr),
	}
}

func spawnFailed(err error) Outcome {
	return Outcome{Kind: KindSpawnFailed, ExitCode: -1, text: spawnFailedPrefix + err.Error(), cause: err}
}

func alreadyRunning() Outcome {
	return Outcome{Kind: KindAlreadyRunning, ExitCode: -1, text: alreadyRunningText}
}

func timedOut(after time.Duration, stderr []byte, d time.Duration) Outcome {
	return Outcome{
		Kind:     KindTimedOut,
		ExitCode: -1,
		Stderr:   stderr,
		Duration: d,
		text:     timedOutPrefix + after.String(),
	}
}

func canceled(cause error, stderr []byte, d time.Duration) Outcome {
	return Outcome{
		Kind:     KindCanceled,
		ExitCode: -1,
		Stderr:   stderr,
		Duration: d,
		text:     canceledPrefix + cause.Error(),
		cause:    cause,
	}
}

// Failure is the error form of a non-success Outcome.
type Failure struct {
	Kind    Kind
	Message string
	Cause   error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Cause }

// Is matches the sentinel for f's kind.
func (f *Failure) Is(target error) bool {
	s := f.Kind.sentinel()
	return s != nil && target == s
}

// ErrorKind returns the kind label reported to IPC callers.
func (f *Failure) ErrorKind() string { return f.Kind.String() }
