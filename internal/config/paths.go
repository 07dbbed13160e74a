package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvDir overrides the application data directory when set. Used by tests
// and by users who want the state somewhere other than the default.
const EnvDir = "TUPTIME_DIR"

// Paths resolves the per-user locations of all persisted state. Everything
// lives under one directory: the user config dir (~/.config/tuptime on
// Linux, %APPDATA%\tuptime on Windows, Library/Application Support/tuptime
// on macOS).
type Paths struct {
	Dir string
}

// DefaultPaths resolves the application directory, creating it if needed.
func DefaultPaths() (Paths, error) {
	dir := os.Getenv(EnvDir)
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolving user config dir: %w", err)
		}
		dir = filepath.Join(base, "tuptime")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Paths{}, fmt.Errorf("creating data dir %q: %w", dir, err)
	}
	return Paths{Dir: dir}, nil
}

// Registry is the service registry file (definitions plus last status).
func (p Paths) Registry() string { return filepath.Join(p.Dir, "config.json") }

// Settings is the optional daemon settings file.
func (p Paths) Settings() string { return filepath.Join(p.Dir, "settings.yml") }

// PidFile records the running daemon's pid.
func (p Paths) PidFile() string { return filepath.Join(p.Dir, "daemon.pid") }

// Socket is the unix socket the daemon answers CLI requests on.
func (p Paths) Socket() string { return filepath.Join(p.Dir, "daemon.sock") }

// Journal is the SQLite file recording state transitions.
func (p Paths) Journal() string { return filepath.Join(p.Dir, "journal.db") }

// LogFile is the daemon's rotating log file.
func (p Paths) LogFile() string { return filepath.Join(p.Dir, "tuptime.log") }
