package prober

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tuptime/tuptime/internal/registry"
)

type ftpProber struct {
	svc     registry.Service
	timeout time.Duration
}

func newFTPProber(svc registry.Service, timeout time.Duration) *ftpProber {
	return &ftpProber{svc: svc, timeout: timeout}
}

func (p *ftpProber) Probe(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	// Dial through dialTCP so the greeting and login reads sit behind an
	// absolute deadline; the library's dial timeout alone would not bound
	// a server that accepts and then goes silent.
	conn, err := ftp.Dial(hostPort(p.svc),
		ftp.DialWithContext(ctx),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return dialTCP(ctx, address, p.timeout)
		}),
	)
	if err != nil {
		return down(classifyNetErr(err), err.Error())
	}
	defer conn.Quit()

	// Without credentials the 220 greeting already proves the server is
	// alive; don't fail the check on a refused anonymous login.
	if p.svc.Username == "" {
		return up(time.Since(start))
	}

	if err := conn.Login(p.svc.Username, p.svc.Password); err != nil {
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusNotLoggedIn {
			return down(ReasonAuthFailed, err.Error())
		}
		return down(classifyNetErr(err), err.Error())
	}
	return up(time.Since(start))
}
