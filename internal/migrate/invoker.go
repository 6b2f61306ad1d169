// ABOUTME: Migration Invoker that runs the schema-migration tool as a child process
// ABOUTME: Maps exit status and stderr to a tagged Outcome

package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/2389/engagemate/internal/process"
)

// DefaultTool is the executable used when Options.Tool is empty.
const DefaultTool = "npx"

// toolArgs are fixed; only the tool executable is configurable.
var toolArgs = []string{"prisma", "db", "push", "--accept-data-loss"}

// Overlap decides what happens when a migration is requested while
// another is still running.
type Overlap string

const (
	// OverlapReject returns AlreadyRunning without spawning.
	OverlapReject Overlap = "reject"
	// OverlapAllow spawns concurrent children.
	OverlapAllow Overlap = "allow"
)

// ParseOverlap parses an overlap policy name. Empty means reject.
func ParseOverlap(s string) (Overlap, error) {
	switch Overlap(s) {
	case "", OverlapReject:
		return OverlapReject, nil
	case OverlapAllow:
		return OverlapAllow, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", s)
	}
}

// Options configures an Invoker.
type Options struct {
	// Tool is the migration tool executable. Defaults to DefaultTool.
	Tool string
	// Dir is the working directory of the child.
	Dir string
	// DatabaseURL is passed to the child as DATABASE_URL when set.
	DatabaseURL string
	Overlap     Overlap
	// Timeout kills the child after the given duration. Zero disables it.
	Timeout time.Duration

	Logger    *slog.Logger
	Collector *Collector
}

// Invoker runs the migration tool.
type Invoker struct {
	spawner process.Spawner
	opts    Options
	slot    *semaphore.Weighted
	logger  *slog.Logger
}

// New creates an Invoker that spawns children through spawner.
func New(spawner process.Spawner, opts Options) *Invoker {
	if opts.Tool == "" {
		opts.Tool = DefaultTool
	}
	if opts.Overlap == "" {
		opts.Overlap = OverlapReject
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Invoker{
		spawner: spawner,
		opts:    opts,
		slot:    semaphore.NewWeighted(1),
		logger:  logger.With("component", "migrate"),
	}
}

// Command returns the child process invocation.
func (i *Invoker) Command() process.Command {
	args := make([]string, len(toolArgs))
	copy(args, toolArgs)

	cmd := process.Command{Name: i.opts.Tool, Args: args, Dir: i.opts.Dir}
	if i.opts.DatabaseURL != "" {
		cmd.Env = []string{"DATABASE_URL=" + i.opts.DatabaseURL}
	}
	return cmd
}

// Run invokes the migration tool once and waits for it to exit.
// It never panics and never returns partial progress.
func (i *Invoker) Run(ctx context.Context) Outcome {
	if i.opts.Overlap == OverlapReject {
		if !i.slot.TryAcquire(1) {
			o := alreadyRunning()
			i.logger.Warn("migration rejected", "reason", o.Text())
			i.record(o)
			return o
		}
		defer i.slot.Release(1)
	}

	if c := i.opts.Collector; c != nil {
		c.inflight.Inc()
		defer c.inflight.Dec()
	}

	o := i.run(ctx)
	i.record(o)

	if o.OK() {
		i.logger.Info("migrations applied", "duration", o.Duration)
	} else {
		i.logger.Error("migration failed", "kind", o.Kind.String(), "exit_code", o.ExitCode, "error", o.Text())
	}
	return o
}

func (i *Invoker) run(ctx context.Context) Outcome {
	runCtx := ctx
	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return canceled(err, nil, 0)
	}

	cmd := i.Command()
	i.logger.Info("running migrations", "tool", cmd.Name, "args", cmd.Args, "dir", cmd.Dir)

	res, err := i.spawner.Spawn(runCtx, cmd)
	if err != nil {
		var startErr *process.StartError
		switch {
		case runCtx.Err() != nil && ctx.Err() == nil:
			return timedOut(i.opts.Timeout, res.Stderr, res.Duration)
		case ctx.Err() != nil:
			return canceled(ctx.Err(), res.Stderr, res.Duration)
		case errors.As(err, &startErr):
			return spawnFailed(startErr.Err)
		default:
			return spawnFailed(err)
		}
	}

	if res.Success() {
		return success(res.ExitCode, res.Stderr, res.Duration)
	}
	return toolFailed(res.ExitCode, res.Stderr, res.Duration)
}

func (i *Invoker) record(o Outcome) {
	if i.opts.Collector != nil {
		i.opts.Collector.observe(o)
	}
}
