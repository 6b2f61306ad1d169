// ABOUTME: Named-command dispatcher for the host runtime
// ABOUTME: Each dispatched call runs on its own goroutine and completes a Call future

package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownCommand is returned when no handler is registered under a name.
var ErrUnknownCommand = errors.New("unknown command")

// ErrCommandExists is returned when a name is registered twice.
var ErrCommandExists = errors.New("command already registered")

// ErrInvalidCommand is returned for empty or malformed command names.
var ErrInvalidCommand = errors.New("invalid command name")

// Handler executes a named command. The returned value is JSON encoded for
// the caller; a returned error is reported to the caller as data.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Task is a long-running background job owned by the runtime.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Call is the pending result of a dispatched command.
type Call struct {
	ID      string
	Command string

	done  chan struct{}
	value any
	err   error
}

// Done is closed once the handler has returned.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the handler's result. It must only be called after Done is closed.
func (c *Call) Result() (any, error) {
	return c.value, c.err
}

// Wait blocks until the call completes or ctx is done. Abandoning the wait
// does not stop the handler.
func (c *Call) Wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatcher routes named commands to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	inflight sync.WaitGroup
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a handler under name.
// Returns ErrCommandExists if the name is taken.
func (d *Dispatcher) Register(name string, h Handler) error {
	if name == "" || strings.ContainsAny(name, " /\t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidCommand, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	d.handlers[name] = h

	d.logger.Debug("command registered", "command", name)
	return nil
}

// Commands returns the registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch starts the named command on its own goroutine and returns
// immediately. The handler context keeps ctx's values but not its
// cancellation, so a caller going away never interrupts a running command.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) *Call {
	call := &Call{
		ID:      uuid.New().String(),
		Command: name,
		done:    make(chan struct{}),
	}

	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()

	if !ok {
		call.err = fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		close(call.done)
		return call
	}

	logger := d.logger.With("call_id", call.ID, "command", name)
	hctx := context.WithoutCancel(ctx)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer close(call.done)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("command panicked", "panic", r)
				call.value, call.err = nil, fmt.Errorf("command %s panicked: %v", name, r)
			}
		}()

		start := time.Now()
		call.value, call.err = h(hctx, args)
		if call.err != nil {
			logger.Info("command failed", "duration", time.Since(start), "error", call.err)
			return
		}
		logger.Debug("command completed", "duration", time.Since(start))
	}()

	return call
}

// Invoke dispatches the named command and waits for its result.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	return d.Dispatch(ctx, name, args).Wait(ctx)
}

// Wait blocks until every dispatched call has returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}
