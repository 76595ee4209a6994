// Package lifecycle sequences process start-up and shutdown.
//
// The listener is opened first so health checks see the port immediately.
// Storage is initialised in the background; once it is up the prune task
// starts and the service is Ready. SIGINT or SIGTERM closes storage and
// exits 0 without draining requests. Storage failing to initialise exits 1.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aiostreams/pkg/utils"
)

type State int32

const (
	Booting State = iota
	Listening
	Ready
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Listening:
		return "listening"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Storage is the process-wide storage connection.
type Storage interface {
	Initialise(ctx context.Context, uri string) error
	Close() error
}

// Task is a background job started once storage is ready.
type Task interface {
	Run(ctx context.Context)
}

type Orchestrator struct {
	Settings *utils.Settings
	Handler  http.Handler
	Storage  Storage
	Pruner   Task
	Logger   *zap.Logger

	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
	// Signals delivers termination signals. Defaults to SIGINT and SIGTERM.
	Signals <-chan os.Signal

	state atomic.Int32

	mu   sync.Mutex
	addr net.Addr
}

func New(settings *utils.Settings, handler http.Handler, storage Storage, pruner Task, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Settings: settings,
		Handler:  handler,
		Storage:  storage,
		Pruner:   pruner,
		Logger:   logger,
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	o.Logger.Debug("lifecycle transition", zap.Stringer("from", prev), zap.Stringer("to", s))
}

// Addr is the bound listener address, nil until Listening.
func (o *Orchestrator) Addr() net.Addr {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.addr
}

func (o *Orchestrator) exit(code int) {
	if o.Exit != nil {
		o.Exit(code)
		return
	}
	_ = o.Logger.Sync()
	os.Exit(code)
}

// Run drives the process until shutdown and then calls Exit. It only
// returns when Exit does (tests), with a non-nil error for a failed start.
// Once ShuttingDown is entered the service never becomes Ready, even if a
// storage initialisation still in flight completes afterwards.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := o.Signals
	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(o.Settings.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		o.Logger.Error("failed to start server", zap.String("addr", addr), zap.Error(err))
		o.setState(Stopped)
		o.exit(1)
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	o.mu.Lock()
	o.addr = ln.Addr()
	o.mu.Unlock()

	srv := &http.Server{
		Handler:           o.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	o.setState(Listening)
	o.Logger.Info("server running", zap.String("url", "http://"+ln.Addr().String()))

	storageErr := make(chan error, 1)
	go func() {
		if err := o.Storage.Initialise(ctx, o.Settings.DatabaseURI); err != nil {
			storageErr <- err
			return
		}
		// shutdown may have started while storage was initialising
		if !o.state.CompareAndSwap(int32(Listening), int32(Ready)) {
			if err := o.Storage.Close(); err != nil {
				o.Logger.Warn("failed to close database", zap.Error(err))
			}
			return
		}
		o.Logger.Info("database initialised")
		o.Logger.Debug("lifecycle transition", zap.Stringer("from", Listening), zap.Stringer("to", Ready))

		go o.Pruner.Run(ctx)
		LogStartupInfo(o.Logger, o.Settings)
	}()

	select {
	case err := <-storageErr:
		o.Logger.Error("failed to initialise database", zap.Error(err))
		cancel()
		_ = srv.Close()
		o.setState(Stopped)
		o.exit(1)
		return fmt.Errorf("initialise storage: %w", err)

	case err := <-serveErr:
		o.Logger.Error("server stopped unexpectedly", zap.Error(err))
		o.setState(ShuttingDown)
		cancel()
		o.closeStorage()
		o.setState(Stopped)
		o.exit(1)
		return fmt.Errorf("serve: %w", err)

	case sig := <-signals:
		o.Logger.Info("signal received, shutting down", zap.Stringer("signal", sig))

	case <-ctx.Done():
		o.Logger.Info("context cancelled, shutting down")
	}

	o.setState(ShuttingDown)
	cancel()
	o.closeStorage()
	_ = srv.Close()
	o.setState(Stopped)
	o.exit(0)
	return nil
}

// closeStorage failures are logged only; they do not change the exit code.
func (o *Orchestrator) closeStorage() {
	if err := o.Storage.Close(); err != nil {
		o.Logger.Warn("failed to close database", zap.Error(err))
		return
	}
	o.Logger.Info("database closed")
}
