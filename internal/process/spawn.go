// ABOUTME: Child process spawning backed by os/exec
// ABOUTME: Captures stdout/stderr and separates start failures from exit codes

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Command describes a child process.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the parent environment.
	Env []string
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// Result is the outcome of a child that ran to completion.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Success reports whether the child exited with status 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// StartError is returned when the child could not be started at all,
// for example because the executable was not found.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Spawner runs child processes to completion.
type Spawner interface {
	Spawn(ctx context.Context, cmd Command) (Result, error)
}

// ExecSpawner executes commands on the local host.
type ExecSpawner struct {
	// WaitDelay bounds how long output is drained once ctx has ended and
	// the child was killed. Zero uses a one second default. A child that
	// exits on its own is drained until every writer closes its streams.
	WaitDelay time.Duration
}

// Spawn starts cmd, waits for it to exit and returns its captured output.
// The error is nil for any child that ran, a *StartError when it could not
// start, and the context error when ctx killed the child.
func (s ExecSpawner) Spawn(ctx context.Context, c Command) (Result, error) {
	delay := s.WaitDelay
	if delay == 0 {
		delay = time.Second
	}

	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	stdout, err := newCapture()
	if err != nil {
		return Result{}, &StartError{Name: c.Name, Err: err}
	}
	stderr, err := newCapture()
	if err != nil {
		stdout.discard()
		return Result{}, &StartError{Name: c.Name, Err: err}
	}
	cmd.Stdout = stdout.w
	cmd.Stderr = stderr.w

	if err := ctx.Err(); err != nil {
		stdout.discard()
		stderr.discard()
		return Result{}, &StartError{Name: c.Name, Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		stdout.discard()
		stderr.discard()
		return Result{}, &StartError{Name: c.Name, Err: err}
	}
	stdout.drain()
	stderr.drain()

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
		case <-exited:
		}
	}()
	err = cmd.Wait()
	close(exited)

	stdout.wait(ctx, delay)
	stderr.wait(ctx, delay)

	res := Result{
		Stdout:   stdout.buf.Bytes(),
		Stderr:   stderr.buf.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("waiting for %s: %w", c.Name, err)
}

// capture collects one output stream of a child through an OS pipe. The
// child and anything it forks share the write end, so the stream ends only
// when the last of them exits.
type capture struct {
	r, w *os.File
	buf  bytes.Buffer
	done chan struct{}
}

func newCapture() (*capture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	return &capture{r: r, w: w, done: make(chan struct{})}, nil
}

// drain closes the parent's copy of the write end and copies the stream
// into buf until EOF.
func (c *capture) drain() {
	_ = c.w.Close()
	go func() {
		defer close(c.done)
		_, _ = io.Copy(&c.buf, c.r)
	}()
}

// wait blocks until the stream reaches EOF. Once ctx has ended it gives the
// stream at most delay more before closing the read end.
func (c *capture) wait(ctx context.Context, delay time.Duration) {
	defer c.r.Close()

	select {
	case <-c.done:
		return
	case <-ctx.Done():
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-c.done:
	case <-t.C:
		_ = c.r.Close()
		<-c.done
	}
}

func (c *capture) discard() {
	_ = c.r.Close()
	_ = c.w.Close()
}
