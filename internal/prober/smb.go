package prober

import (
	"context"
	"errors"
	"time"

	smb2 "github.com/hirochachacha/go-smb2"

	"github.com/tuptime/tuptime/internal/registry"
)

// NT status codes the server answers a rejected session setup with.
const (
	ntStatusAccessDenied    = 0xC0000022
	ntStatusLogonFailure    = 0xC000006D
	ntStatusAccountDisabled = 0xC0000072
)

type smbProber struct {
	svc     registry.Service
	timeout time.Duration
}

func newSMBProber(svc registry.Service, timeout time.Duration) *smbProber {
	return &smbProber{svc: svc, timeout: timeout}
}

func (p *smbProber) Probe(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := dialTCP(ctx, hostPort(p.svc), p.timeout)
	if err != nil {
		return down(classifyNetErr(err), err.Error())
	}
	defer conn.Close()

	// go-smb2 rejects a truly anonymous NTLM session before touching the
	// wire, so a credential-less probe negotiates as the guest account.
	user := p.svc.Username
	if user == "" {
		user = "Guest"
	}
	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     user,
			Password: p.svc.Password,
		},
	}

	session, err := dialer.DialContext(ctx, conn)
	latency := time.Since(start)
	if err != nil {
		if smbAuthRejected(err) {
			// The server completed the SMB negotiate and refused the
			// session. Without configured credentials that still proves
			// the server is up.
			if p.svc.Username == "" {
				return up(latency)
			}
			return down(ReasonAuthFailed, err.Error())
		}
		return down(classifyNetErr(err), err.Error())
	}
	session.Logoff()
	return up(latency)
}

// smbAuthRejected reports whether err is the server refusing the session
// credentials after a completed negotiate.
func smbAuthRejected(err error) bool {
	var re *smb2.ResponseError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Code {
	case ntStatusAccessDenied, ntStatusLogonFailure, ntStatusAccountDisabled:
		return true
	}
	return false
}
