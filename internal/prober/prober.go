// Package prober performs single reachability checks against monitored
// services. One Prober per protocol; every failure mode maps to a typed
// Down reason, never a panic or an unbounded block.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tuptime/tuptime/internal/registry"
)

// Reason classifies why a check concluded Down.
type Reason string

const (
	ReasonTimeout          Reason = "timeout"
	ReasonUnreachable      Reason = "unreachable"
	ReasonAuthFailed       Reason = "auth_failed"
	ReasonConnectionFailed Reason = "connection_failed"
	ReasonHTTPStatus       Reason = "http_status"
)

// Outcome is the result of one probe.
type Outcome struct {
	Up      bool
	Latency time.Duration
	Reason  Reason // set when !Up
	Detail  string // human-readable cause, set when !Up
}

// Result maps the outcome onto the registry's result domain.
func (o Outcome) Result() registry.Result {
	if o.Up {
		return registry.Up
	}
	return registry.Down
}

// Failure renders the reason and detail for status display; empty when Up.
func (o Outcome) Failure() string {
	if o.Up {
		return ""
	}
	if o.Detail == "" {
		return string(o.Reason)
	}
	return fmt.Sprintf("%s: %s", o.Reason, o.Detail)
}

func up(latency time.Duration) Outcome {
	return Outcome{Up: true, Latency: latency}
}

func down(reason Reason, detail string) Outcome {
	return Outcome{Reason: reason, Detail: detail}
}

// Prober performs one reachability check. Implementations must respect ctx
// and their configured timeout strictly.
type Prober interface {
	Probe(ctx context.Context) Outcome
}

// New returns the Prober for the service's protocol.
func New(svc registry.Service, timeout time.Duration) (Prober, error) {
	switch svc.Protocol {
	case registry.ICMP:
		return newICMPProber(svc, timeout), nil
	case registry.HTTP:
		return newHTTPProber(svc, timeout), nil
	case registry.FTP:
		return newFTPProber(svc, timeout), nil
	case registry.SSH:
		return newSSHProber(svc, timeout), nil
	case registry.SMB:
		return newSMBProber(svc, timeout), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", svc.Protocol)
	}
}

// hostPort joins the service target with its effective port.
func hostPort(svc registry.Service) string {
	return net.JoinHostPort(svc.Target, fmt.Sprintf("%d", svc.EffectivePort()))
}

// classifyNetErr distinguishes a timeout from a refused or failed
// connection attempt.
func classifyNetErr(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	return ReasonConnectionFailed
}

// dialTCP opens a TCP connection bounded by both ctx and timeout, and sets
// an absolute deadline on the returned conn so the protocol handshake that
// follows cannot outlive the check.
func dialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
