package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPidFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	if err := writePidFile(path, 12345); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}
	pid, err := readPidFile(path)
	if err != nil {
		t.Fatalf("readPidFile: %v", err)
	}
	if pid != 12345 {
		t.Errorf("expected pid 12345, got %d", pid)
	}

	removePidFile(path)
	pid, err = readPidFile(path)
	if err != nil {
		t.Fatalf("readPidFile after remove: %v", err)
	}
	if pid != 0 {
		t.Errorf("expected 0 after remove, got %d", pid)
	}
}

func TestReadPidFile_Missing(t *testing.T) {
	pid, err := readPidFile(filepath.Join(t.TempDir(), "absent.pid"))
	if err != nil {
		t.Fatalf("missing pid file must not error: %v", err)
	}
	if pid != 0 {
		t.Errorf("expected 0, got %d", pid)
	}
}

func TestReadPidFile_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readPidFile(path); err == nil {
		t.Error("expected error for garbage pid file")
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("our own pid must be alive")
	}
	if processAlive(0) {
		t.Error("pid 0 must not be considered alive")
	}
	// A pid far beyond pid_max cannot exist.
	if processAlive(1 << 27) {
		t.Error("implausible pid reported alive")
	}
}
