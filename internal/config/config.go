package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Settings holds the optional daemon tuning knobs loaded from settings.yml.
// The registry of monitored services lives in its own file; these are only
// the knobs that rarely change.
type Settings struct {
	ProbeTimeout Duration `yaml:"probe_timeout"`
	StopGrace    Duration `yaml:"stop_grace"`
	LogLevel     string   `yaml:"log_level"`
	LogFile      string   `yaml:"log_file"`
	LogMaxSizeMB int      `yaml:"log_max_size_mb"`
}

const (
	// DefaultProbeTimeoutCap bounds a single check when no explicit
	// probe_timeout is configured; the effective timeout per service is
	// min(interval, this cap).
	DefaultProbeTimeoutCap = 10 * time.Second

	defaultStopGrace    = 15 * time.Second
	defaultLogMaxSizeMB = 10
)

// LoadSettings reads settings from path. A missing file is not an error;
// defaults are returned.
func LoadSettings(path string, paths Paths) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
	} else if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	if s.StopGrace.Duration <= 0 {
		s.StopGrace = Duration{defaultStopGrace}
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFile == "" {
		s.LogFile = paths.LogFile()
	}
	if s.LogMaxSizeMB <= 0 {
		s.LogMaxSizeMB = defaultLogMaxSizeMB
	}
	return s, nil
}

// ProbeTimeoutFor returns the check timeout for a service probed every
// interval: the configured probe_timeout if set, otherwise
// min(interval, DefaultProbeTimeoutCap).
func (s *Settings) ProbeTimeoutFor(interval time.Duration) time.Duration {
	if s.ProbeTimeout.Duration > 0 {
		return s.ProbeTimeout.Duration
	}
	if interval < DefaultProbeTimeoutCap {
		return interval
	}
	return DefaultProbeTimeoutCap
}
