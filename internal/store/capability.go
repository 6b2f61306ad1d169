// ABOUTME: Storage capability exposing the plugin:sql command set
// ABOUTME: Preloads the main database on activation and closes all connections on shutdown

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/engagemate/internal/capability"
	"github.com/2389/engagemate/internal/host"
)

// Command names exposed by the storage capability.
const (
	CommandLoad    = "plugin:sql|load"
	CommandExecute = "plugin:sql|execute"
	CommandSelect  = "plugin:sql|select"
	CommandClose   = "plugin:sql|close"
)

// ErrMissingDB is returned when a command omits the db argument.
var ErrMissingDB = errors.New("db is required")

// Capability is the storage-access capability.
type Capability struct {
	mainURL string
	preload bool
	manager *Manager
}

// NewCapability returns the storage capability. When preload is true the
// database at mainURL is loaded during activation.
func NewCapability(mainURL string, preload bool) *Capability {
	return &Capability{mainURL: mainURL, preload: preload}
}

// Name implements capability.Capability.
func (c *Capability) Name() string { return "sql" }

// Activate implements capability.Capability.
func (c *Capability) Activate(ctx context.Context, env *capability.Env) error {
	c.manager = NewManager(env.DataDir, env.Logger())
	if c.preload && c.mainURL != "" {
		if err := c.manager.Load(ctx, c.mainURL); err != nil {
			return fmt.Errorf("preloading main database: %w", err)
		}
	}
	return nil
}

// Manager returns the connection manager. Nil before activation.
func (c *Capability) Manager() *Manager { return c.manager }

// Close closes every open database.
func (c *Capability) Close() error {
	if c.manager == nil {
		return nil
	}
	return c.manager.Close("")
}

// Commands implements capability.CommandProvider.
func (c *Capability) Commands() map[string]host.Handler {
	return map[string]host.Handler{
		CommandLoad:    c.handleLoad,
		CommandExecute: c.handleExecute,
		CommandSelect:  c.handleSelect,
		CommandClose:   c.handleClose,
	}
}

type queryArgs struct {
	DB     string `json:"db"`
	Query  string `json:"query"`
	Values []any  `json:"values"`
}

func decodeArgs(raw json.RawMessage, requireDB bool) (queryArgs, error) {
	var args queryArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return args, fmt.Errorf("decoding args: %w", err)
		}
	}
	if requireDB && args.DB == "" {
		return args, ErrMissingDB
	}
	return args, nil
}

func (c *Capability) handleLoad(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw, true)
	if err != nil {
		return nil, err
	}
	if err := c.manager.Load(ctx, args.DB); err != nil {
		return nil, err
	}
	return args.DB, nil
}

func (c *Capability) handleExecute(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw, true)
	if err != nil {
		return nil, err
	}
	return c.manager.Execute(ctx, args.DB, args.Query, args.Values)
}

func (c *Capability) handleSelect(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw, true)
	if err != nil {
		return nil, err
	}
	return c.manager.Select(ctx, args.DB, args.Query, args.Values)
}

func (c *Capability) handleClose(_ context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw, false)
	if err != nil {
		return nil, err
	}
	if err := c.manager.Close(args.DB); err != nil {
		return nil, err
	}
	return true, nil
}
