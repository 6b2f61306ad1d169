// ABOUTME: Host runtime that owns the blocking main loop of the shell
// ABOUTME: Serves the IPC HTTP endpoint, gRPC health, metrics and background tasks

package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/engagemate/internal/dedupe"
)

// ErrInit marks failures that prevent the runtime from starting at all.
var ErrInit = errors.New("host runtime failed to initialize")

// ErrAlreadyStarted is returned, wrapped with ErrInit, when Run is called
// more than once on the same Runtime.
var ErrAlreadyStarted = errors.New("host runtime already started")

// HealthService is the gRPC health service name reported alongside the
// overall server status.
const HealthService = "engagemate.ipc"

const shutdownTimeout = 5 * time.Second

// Idempotency keys are remembered for this long, up to maxReplayKeys.
const (
	replayTTL     = 10 * time.Minute
	maxReplayKeys = 256
)

// Config holds runtime endpoint settings.
type Config struct {
	IPCAddr  string
	GRPCAddr string // empty disables the gRPC health server

	// Secret enables bearer token auth on the IPC endpoint when non-empty.
	Secret []byte

	// MetricsPath enables a metrics endpoint when non-empty.
	MetricsPath string
	Gatherer    prometheus.Gatherer
}

// Runtime owns the dispatcher's transport and the process main loop.
type Runtime struct {
	cfg        Config
	dispatcher *Dispatcher
	tasks      []Task
	logger     *slog.Logger
	calls      *dedupe.Cache[*Call]

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server

	ready    chan struct{}
	mu       sync.Mutex
	started  bool
	ipcAddr  string
	grpcAddr string
}

// New creates a Runtime serving d. Nothing listens until Run is called.
func New(cfg Config, d *Dispatcher, tasks []Task, logger *slog.Logger) *Runtime {
	r := &Runtime{
		cfg:        cfg,
		dispatcher: d,
		tasks:      tasks,
		logger:     logger.With("component", "host"),
		calls:      dedupe.New[*Call](replayTTL, maxReplayKeys, nil),
		ready:      make(chan struct{}),
	}

	r.httpServer = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.GRPCAddr != "" {
		r.grpcServer = grpc.NewServer()
		r.health = health.NewServer()
		healthpb.RegisterHealthServer(r.grpcServer, r.health)
	}

	return r
}

// Ready is closed once the runtime's listeners are bound.
func (r *Runtime) Ready() <-chan struct{} {
	return r.ready
}

// IPCAddr returns the bound IPC address. Valid after Ready is closed.
func (r *Runtime) IPCAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ipcAddr
}

// GRPCAddr returns the bound gRPC health address, or "" when disabled.
func (r *Runtime) GRPCAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grpcAddr
}

// listen binds the configured addresses.
func (r *Runtime) listen() (ipcLn, grpcLn net.Listener, err error) {
	ipcLn, err = net.Listen("tcp", r.cfg.IPCAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on IPC address: %w", err)
	}

	if r.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", r.cfg.GRPCAddr)
		if err != nil {
			_ = ipcLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	r.mu.Lock()
	r.ipcAddr = ipcLn.Addr().String()
	if grpcLn != nil {
		r.grpcAddr = grpcLn.Addr().String()
	}
	r.mu.Unlock()

	return ipcLn, grpcLn, nil
}

// startServers starts the IPC and gRPC servers in goroutines, returning an error channel.
func (r *Runtime) startServers(ipcLn, grpcLn net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		r.logger.Info("IPC server listening", "addr", ipcLn.Addr().String())
		if err := r.httpServer.Serve(ipcLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("IPC server: %w", err)
		}
	}()

	if grpcLn != nil {
		go func() {
			r.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := r.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	return errCh
}

// startTasks runs each background task until ctx is cancelled.
func (r *Runtime) startTasks(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, task := range r.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			r.logger.Debug("background task started", "task", task.Name)
			if err := task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("background task failed", "task", task.Name, "error", err)
			}
		}(task)
	}
	return &wg
}

// Run binds the listeners, starts background tasks and blocks until ctx is
// cancelled or a server fails. Listener failures are wrapped with ErrInit.
// Returns nil on graceful shutdown. A Runtime runs at most once.
func (r *Runtime) Run(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.started = true
	r.mu.Unlock()
	if started {
		return fmt.Errorf("%w: %w", ErrInit, ErrAlreadyStarted)
	}

	ipcLn, grpcLn, err := r.listen()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInit, err)
	}
	if r.health != nil {
		r.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		r.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	}
	close(r.ready)

	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer cancelTasks()

	errCh := r.startServers(ipcLn, grpcLn)
	tasks := r.startTasks(taskCtx)

	var serverErr error
	select {
	case <-ctx.Done():
		r.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		r.logger.Error("server error", "error", serverErr)
	}

	cancelTasks()
	shutdownErr := r.gracefulShutdown()
	tasks.Wait()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown stops the servers with a fresh context and timeout, then
// gives in-flight calls the remaining budget to finish.
func (r *Runtime) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if r.health != nil {
		r.health.Shutdown()
	}

	var shutdownErr error
	if err := r.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("IPC server shutdown: %w", err)
	}

	if r.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			r.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			r.grpcServer.Stop()
		}
	}

	drained := make(chan struct{})
	go func() {
		r.dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		r.logger.Warn("shutdown with commands still running")
	}

	r.logger.Info("host runtime stopped")
	return shutdownErr
}
