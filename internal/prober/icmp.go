package prober

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/tuptime/tuptime/internal/registry"
)

// icmpProber sends one echo request by shelling out to the system ping
// binary. Raw ICMP sockets need elevated privileges; ping is setuid (or
// capability-granted) everywhere we care about.
type icmpProber struct {
	svc      registry.Service
	timeout  time.Duration
	executor CommandExecutor
}

func newICMPProber(svc registry.Service, timeout time.Duration) *icmpProber {
	return &icmpProber{svc: svc, timeout: timeout, executor: &osExecutor{}}
}

// NewICMPProberWithExecutor creates an ICMP prober with a custom executor
// (for testing).
func NewICMPProberWithExecutor(svc registry.Service, timeout time.Duration, exec CommandExecutor) Prober {
	return &icmpProber{svc: svc, timeout: timeout, executor: exec}
}

var rttRegex = regexp.MustCompile(`time=(\d+\.?\d*)\s*ms`)

func (p *icmpProber) Probe(ctx context.Context) Outcome {
	timeoutSec := int(math.Ceil(p.timeout.Seconds()))
	if timeoutSec < 1 {
		timeoutSec = 1
	}

	var args []string
	if runtime.GOOS == "darwin" {
		args = []string{"-c", "1", "-t", strconv.Itoa(timeoutSec), p.svc.Target}
	} else {
		args = []string{"-c", "1", "-W", strconv.Itoa(timeoutSec), p.svc.Target}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := p.executor.Run(ctx, "ping", args...)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return down(ReasonTimeout, fmt.Sprintf("no reply from %s within %s", p.svc.Target, p.timeout))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// ping exits 1 when the host did not answer, 2 on resolution
			// or network errors.
			if exitErr.ExitCode() == 1 {
				return down(ReasonTimeout, fmt.Sprintf("no reply from %s within %s", p.svc.Target, p.timeout))
			}
			detail := string(stderr)
			if detail == "" {
				detail = err.Error()
			}
			return down(ReasonUnreachable, detail)
		}
		return down(ReasonUnreachable, err.Error())
	}

	matches := rttRegex.FindSubmatch(stdout)
	if matches == nil {
		// Reply received but RTT not parseable; fall back to wall time.
		return up(elapsed)
	}
	ms, err := strconv.ParseFloat(string(matches[1]), 64)
	if err != nil {
		return up(elapsed)
	}
	return up(time.Duration(ms * float64(time.Millisecond)))
}
