package prober

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/tuptime/tuptime/internal/registry"
)

type sshProber struct {
	svc     registry.Service
	timeout time.Duration
}

func newSSHProber(svc registry.Service, timeout time.Duration) *sshProber {
	return &sshProber{svc: svc, timeout: timeout}
}

func (p *sshProber) Probe(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cfg := &ssh.ClientConfig{
		User: p.svc.Username,
		// Reachability check, not a trust decision.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.timeout,
	}
	if p.svc.Username != "" {
		cfg.Auth = []ssh.AuthMethod{ssh.Password(p.svc.Password)}
	} else {
		cfg.User = "tuptime"
	}

	start := time.Now()
	conn, err := dialTCP(ctx, hostPort(p.svc), p.timeout)
	if err != nil {
		return down(classifyNetErr(err), err.Error())
	}
	defer conn.Close()

	c, chans, reqs, err := ssh.NewClientConn(conn, hostPort(p.svc), cfg)
	latency := time.Since(start)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			// The handshake completed and the server rejected our auth.
			// Without credentials that is the expected outcome and the
			// server is demonstrably up.
			if p.svc.Username == "" {
				return up(latency)
			}
			return down(ReasonAuthFailed, err.Error())
		}
		return down(classifyNetErr(err), err.Error())
	}

	client := ssh.NewClient(c, chans, reqs)
	client.Close()
	return up(latency)
}
