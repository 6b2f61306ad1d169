// ABOUTME: Capability Registrar that activates the fixed capability set in order
// ABOUTME: Collects commands and tasks for the host runtime and closes in reverse

package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/2389/engagemate/internal/host"
)

// ErrAlreadyActivated is returned when Activate is called twice.
var ErrAlreadyActivated = errors.New("capabilities already activated")

// ErrDuplicateCapability is returned when two capabilities share a name.
var ErrDuplicateCapability = errors.New("duplicate capability")

// Registrar holds the ordered capability set.
type Registrar struct {
	mu        sync.Mutex
	regular   []Capability
	devOnly   []Capability
	activated []Capability
	done      bool
}

// NewRegistrar creates an empty Registrar.
func NewRegistrar() *Registrar {
	return &Registrar{}
}

// Add appends a capability activated in every build.
func (r *Registrar) Add(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regular = append(r.regular, c)
}

// AddDev appends a capability activated only in development builds.
// Development capabilities are activated before all others.
func (r *Registrar) AddDev(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devOnly = append(r.devOnly, c)
}

// Activate activates the capability set once, in order. When dev is false
// the development-only capabilities are skipped entirely. The first failure
// aborts activation: capabilities activated so far are closed and the error
// is returned wrapped with the failing capability's name.
func (r *Registrar) Activate(ctx context.Context, env *Env, dev bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return ErrAlreadyActivated
	}
	r.done = true

	order := make([]Capability, 0, len(r.devOnly)+len(r.regular))
	if dev {
		order = append(order, r.devOnly...)
	}
	order = append(order, r.regular...)

	seen := make(map[string]bool, len(order))
	for _, c := range order {
		if seen[c.Name()] {
			return fmt.Errorf("%w: %s", ErrDuplicateCapability, c.Name())
		}
		seen[c.Name()] = true
	}

	for _, c := range order {
		if err := c.Activate(ctx, env); err != nil {
			closeErr := r.closeLocked()
			return errors.Join(fmt.Errorf("activating %s capability: %w", c.Name(), err), closeErr)
		}
		r.activated = append(r.activated, c)
		env.Logger().Info("capability activated", "capability", c.Name())
	}

	env.Logger().Info("=== CAPABILITIES READY ===", "count", len(r.activated), "dev", dev)
	return nil
}

// Activated returns the names of activated capabilities in activation order.
func (r *Registrar) Activated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.activated))
	for i, c := range r.activated {
		names[i] = c.Name()
	}
	return names
}

// RegisterCommands registers every command exposed by an activated
// capability with d.
func (r *Registrar) RegisterCommands(d *host.Dispatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.activated {
		provider, ok := c.(CommandProvider)
		if !ok {
			continue
		}
		commands := provider.Commands()
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := d.Register(name, commands[name]); err != nil {
				return fmt.Errorf("registering %s commands: %w", c.Name(), err)
			}
		}
	}
	return nil
}

// Tasks returns background tasks from activated capabilities.
func (r *Registrar) Tasks() []host.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tasks []host.Task
	for _, c := range r.activated {
		if provider, ok := c.(TaskProvider); ok {
			tasks = append(tasks, provider.Tasks()...)
		}
	}
	return tasks
}

// Close closes activated capabilities in reverse activation order.
func (r *Registrar) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Registrar) closeLocked() error {
	var errs []error
	for i := len(r.activated) - 1; i >= 0; i-- {
		closer, ok := r.activated[i].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s capability: %w", r.activated[i].Name(), err))
		}
	}
	r.activated = nil
	return errors.Join(errs...)
}
