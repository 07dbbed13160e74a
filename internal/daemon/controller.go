package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/control"
)

var (
	// ErrAlreadyRunning is returned by Start when a live daemon exists.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrNotRunning is returned by Stop when no live daemon exists.
	ErrNotRunning = errors.New("daemon not running")
)

const pollEvery = 100 * time.Millisecond

// Wait bounds; vars so tests can shorten them.
var (
	startWait = 10 * time.Second
	stopWait  = 15 * time.Second
)

// Controller drives the daemon lifecycle from a CLI process. A daemon is
// considered live only when its recorded pid exists and its control socket
// answers; anything less is a crash leftover and gets cleaned up.
type Controller struct {
	paths config.Paths
}

// NewController creates a Controller over the given paths.
func NewController(paths config.Paths) *Controller {
	return &Controller{paths: paths}
}

// Client returns a control client for the daemon socket.
func (c *Controller) Client() *control.Client {
	return control.NewClient(c.paths.Socket())
}

// Info describes the daemon as seen from outside.
type Info struct {
	Running bool
	Pid     int
	Uptime  time.Duration
}

// liveness checks pid file and socket. It reports the recorded pid (0 when
// absent) and whether the daemon is actually serving.
func (c *Controller) liveness(ctx context.Context) (pid int, live bool) {
	pid, err := readPidFile(c.paths.PidFile())
	if err != nil || pid == 0 {
		return pid, false
	}
	if !processAlive(pid) {
		return pid, false
	}
	return pid, c.Client().Reachable(ctx)
}

// Live reports whether a daemon is up and answering.
func (c *Controller) Live(ctx context.Context) bool {
	_, live := c.liveness(ctx)
	return live
}

// cleanupStale removes leftover identity files from a crashed daemon.
func (c *Controller) cleanupStale() {
	removePidFile(c.paths.PidFile())
	os.Remove(c.paths.Socket())
}

// Start spawns the background daemon (re-executing this binary with the
// hidden run command) and waits until it answers on the control socket.
func (c *Controller) Start(ctx context.Context) (int, error) {
	if _, live := c.liveness(ctx); live {
		return 0, ErrAlreadyRunning
	}
	c.cleanupStale()

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolving executable: %w", err)
	}

	cmd := exec.Command(exe, "run")
	cmd.Env = append(os.Environ(), config.EnvDir+"="+c.paths.Dir)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	// Detach from the CLI's session so the daemon survives terminal close.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawning daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The daemon is not our child to reap; let it go.
	if err := cmd.Process.Release(); err != nil {
		return 0, fmt.Errorf("releasing daemon process: %w", err)
	}

	if err := c.awaitReady(ctx, pid); err != nil {
		// Never leave a half-started daemon running untracked.
		if proc, ferr := os.FindProcess(pid); ferr == nil {
			proc.Signal(syscall.SIGTERM)
		}
		c.cleanupStale()
		return 0, err
	}
	return pid, nil
}

// awaitReady polls until the spawned daemon answers on the control socket,
// the process dies, or the start deadline passes.
func (c *Controller) awaitReady(ctx context.Context, pid int) error {
	deadline := time.Now().Add(startWait)
	for time.Now().Before(deadline) {
		if c.Client().Reachable(ctx) {
			return nil
		}
		if !processAlive(pid) {
			return fmt.Errorf("daemon exited during startup; see %s", c.paths.LogFile())
		}
		time.Sleep(pollEvery)
	}
	return fmt.Errorf("daemon did not become ready within %s", startWait)
}

// Stop asks a live daemon to shut down and waits, escalating from the
// control channel to SIGTERM to SIGKILL after the grace period.
func (c *Controller) Stop(ctx context.Context) error {
	pid, live := c.liveness(ctx)
	if !live {
		c.cleanupStale()
		return ErrNotRunning
	}

	if err := c.Client().Shutdown(ctx); err != nil {
		// Channel gone or wedged; fall back to the signal.
		if proc, ferr := os.FindProcess(pid); ferr == nil {
			proc.Signal(syscall.SIGTERM)
		}
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			c.cleanupStale()
			return nil
		}
		time.Sleep(pollEvery)
	}

	if proc, err := os.FindProcess(pid); err == nil {
		proc.Signal(syscall.SIGKILL)
	}
	c.cleanupStale()
	return fmt.Errorf("daemon (pid %d) did not stop within %s; killed", pid, stopWait)
}

// Status reports whether the daemon is running without ever blocking on a
// dead process. Stale identity files are cleaned up on the way.
func (c *Controller) Status(ctx context.Context) (Info, error) {
	pid, live := c.liveness(ctx)
	if !live {
		if pid != 0 {
			c.cleanupStale()
		}
		return Info{}, nil
	}

	st, err := c.Client().Status(ctx)
	if err != nil {
		return Info{Running: true, Pid: pid}, nil
	}
	return Info{Running: true, Pid: st.Pid, Uptime: st.Uptime()}, nil
}
