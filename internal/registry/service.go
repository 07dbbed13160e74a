package registry

import (
	"fmt"
	"strings"
	"time"
)

// Protocol identifies how a service is probed.
type Protocol string

const (
	ICMP Protocol = "icmp"
	HTTP Protocol = "http"
	SMB  Protocol = "smb"
	FTP  Protocol = "ftp"
	SSH  Protocol = "ssh"
)

// ParseProtocol maps user input (any case) to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(s)); p {
	case ICMP, HTTP, SMB, FTP, SSH:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown protocol %q (must be ICMP, HTTP, SMB, FTP, or SSH)", ErrInvalid, s)
	}
}

// DefaultPort returns the conventional port for the protocol, or 0 when the
// protocol has none (ICMP).
func (p Protocol) DefaultPort() int {
	switch p {
	case HTTP:
		return 80
	case FTP:
		return 21
	case SSH:
		return 22
	case SMB:
		return 445
	default:
		return 0
	}
}

// UsesCredentials reports whether username/password make sense for p.
func (p Protocol) UsesCredentials() bool {
	return p == SMB || p == FTP || p == SSH
}

// DefaultInterval is the check cadence used when the user does not specify one.
const DefaultInterval = 60

// Service is one monitored service definition. The name is the identity;
// the protocol is immutable after creation (remove and re-add to change it).
type Service struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	Target   string   `json:"target"`
	Port     int      `json:"port,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	Interval int      `json:"interval"` // seconds
}

// EffectivePort is the configured port, falling back to the protocol default.
func (s Service) EffectivePort() int {
	if s.Port != 0 {
		return s.Port
	}
	return s.Protocol.DefaultPort()
}

// IntervalDuration returns the check cadence as a time.Duration.
func (s Service) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// Validate checks the definition fields. All violations report ErrInvalid.
func (s Service) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.Target == "" {
		return fmt.Errorf("%w: target is required", ErrInvalid)
	}
	if _, err := ParseProtocol(string(s.Protocol)); err != nil {
		return err
	}
	if s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be greater than zero, got %d", ErrInvalid, s.Interval)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, s.Port)
	}
	return nil
}
