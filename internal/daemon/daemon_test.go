package daemon_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/daemon"
	"github.com/tuptime/tuptime/internal/registry"
)

// shortDirPaths returns Paths in a freshly created short directory, keeping
// the unix socket path under the system limit.
func shortDirPaths(t *testing.T) config.Paths {
	t.Helper()
	dir, err := os.MkdirTemp("", "tup")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return config.Paths{Dir: dir}
}

func testSettings(t *testing.T, paths config.Paths) *config.Settings {
	t.Helper()
	s, err := config.LoadSettings(paths.Settings(), paths)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestController_StatusNotRunning(t *testing.T) {
	ctrl := daemon.NewController(shortDirPaths(t))

	info, err := ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.Running {
		t.Error("expected not running with no daemon state")
	}
}

func TestController_StatusCleansStaleState(t *testing.T) {
	paths := shortDirPaths(t)
	// Simulate a crash: pid file for a process that cannot exist, plus a
	// dead socket file.
	if err := os.WriteFile(paths.PidFile(), []byte("134217727"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.Socket(), []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}

	ctrl := daemon.NewController(paths)
	info, err := ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.Running {
		t.Error("crashed daemon reported as running")
	}
	if _, err := os.Stat(paths.PidFile()); !os.IsNotExist(err) {
		t.Error("stale pid file not cleaned up")
	}
	if _, err := os.Stat(paths.Socket()); !os.IsNotExist(err) {
		t.Error("stale socket not cleaned up")
	}
}

func TestController_StopNotRunning(t *testing.T) {
	ctrl := daemon.NewController(shortDirPaths(t))
	err := ctrl.Stop(context.Background())
	if !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestController_LiveFalseWithStalePid(t *testing.T) {
	paths := shortDirPaths(t)
	if err := os.WriteFile(paths.PidFile(), []byte("134217727"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctrl := daemon.NewController(paths)
	if ctrl.Live(context.Background()) {
		t.Error("stale pid reported live")
	}
}

// TestRun_InProcess drives the full daemon body without spawning a child
// process: it must come up, answer on the socket, and clean up on cancel.
func TestRun_InProcess(t *testing.T) {
	paths := shortDirPaths(t)
	settings := testSettings(t, paths)

	// One service so the scheduler has something to drive. The check will
	// fail fast against a closed loopback port; that is fine.
	store, err := registry.Open(paths.Registry())
	if err != nil {
		t.Fatal(err)
	}
	svc := registry.Service{Name: "web", Protocol: registry.HTTP, Target: "127.0.0.1", Port: 9, Interval: 3600}
	if err := store.Add(svc); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- daemon.Run(ctx, paths, settings, nil)
	}()

	ctrl := daemon.NewController(paths)
	client := ctrl.Client()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if client.Reachable(ctx) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !client.Reachable(ctx) {
		cancel()
		t.Fatal("daemon never became reachable")
	}

	st, err := client.Status(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Status: %v", err)
	}
	if st.Pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), st.Pid)
	}
	if len(st.Services) != 1 {
		t.Errorf("expected 1 service in snapshot, got %d", len(st.Services))
	}

	// Pid file present while running.
	if _, err := os.Stat(paths.PidFile()); err != nil {
		t.Errorf("pid file missing while running: %v", err)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(settings.StopGrace.Duration + 10*time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Identity removed on clean shutdown.
	if _, err := os.Stat(paths.PidFile()); !os.IsNotExist(err) {
		t.Error("pid file left behind after clean shutdown")
	}
	if _, err := os.Stat(paths.Socket()); !os.IsNotExist(err) {
		t.Error("socket left behind after clean shutdown")
	}
}
