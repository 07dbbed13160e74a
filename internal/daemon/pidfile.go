package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

func writePidFile(path string, pid int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// readPidFile returns the recorded pid, or 0 when no pid file exists.
func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %q: %w", path, err)
	}
	return pid, nil
}

func removePidFile(path string) {
	os.Remove(path)
}

// processAlive checks pid existence with signal 0. EPERM means the process
// exists but belongs to someone else; still alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err != syscall.ESRCH && !strings.Contains(err.Error(), "process already finished")
}
