// Package daemon owns the background process lifecycle: the run loop
// executed inside the daemon, and the Controller the CLI uses to start,
// stop, and inspect it.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/control"
	"github.com/tuptime/tuptime/internal/journal"
	"github.com/tuptime/tuptime/internal/prober"
	"github.com/tuptime/tuptime/internal/registry"
	"github.com/tuptime/tuptime/internal/scheduler"
)

// Run is the daemon process body: load the registry, start the scheduler,
// answer control requests, and shut down cleanly on SIGTERM/SIGINT or a
// shutdown request. It blocks until shutdown completes.
func Run(parent context.Context, paths config.Paths, settings *config.Settings, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := registry.Open(paths.Registry())
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}
	// Results from a previous run are stale by definition.
	if err := store.ResetStatuses(); err != nil {
		logger.Error("resetting statuses", "error", err)
	}
	logger.Info("registry loaded", "services", store.Len(), "path", store.Path())

	sched := scheduler.New(store, prober.New, settings.ProbeTimeoutFor, logger)

	// A broken journal costs the transition record, not the monitor.
	jnl, err := journal.Open(paths.Journal())
	if err != nil {
		logger.Error("opening transition journal, continuing without", "error", err)
	} else {
		sched.SetJournal(jnl)
		defer jnl.Close()
		if n, err := jnl.Prune(parent, time.Now().AddDate(0, -3, 0)); err != nil {
			logger.Warn("pruning transition journal", "error", err)
		} else if n > 0 {
			logger.Info("pruned old transitions", "count", n)
		}
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var shutdownOnce sync.Once
	shutdown := func() { shutdownOnce.Do(cancel) }

	srv := control.New(store, sched, time.Now(), shutdown, logger)
	listener, err := control.Listen(paths.Socket())
	if err != nil {
		return fmt.Errorf("opening control socket: %w", err)
	}

	if err := writePidFile(paths.PidFile(), os.Getpid()); err != nil {
		listener.Close()
		return err
	}

	sched.Start(ctx)
	logger.Info("daemon running", "pid", os.Getpid(), "socket", paths.Socket())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("control server failed", "error", err)
		}
		cancel()
	}

	// Graceful stop: no new ticks, in-flight checks conclude against their
	// own timeouts, bounded by the configured grace period.
	listener.Close()
	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(settings.StopGrace.Duration):
		logger.Warn("stop grace period elapsed with checks still in flight")
	}

	removePidFile(paths.PidFile())
	os.Remove(paths.Socket())
	logger.Info("daemon stopped")
	return nil
}
