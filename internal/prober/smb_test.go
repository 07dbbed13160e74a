package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	smb2 "github.com/hirochachacha/go-smb2"

	"github.com/tuptime/tuptime/internal/registry"
)

// A credential-less probe must negotiate on the wire as the guest account,
// not fail inside the client library before any bytes are sent.
func TestSMBProbe_AnonymousReachesTheWire(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept and count received bytes; never answer.
	var received int64
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					atomic.AddInt64(&received, int64(n))
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	svc := registry.Service{Name: "share", Protocol: registry.SMB, Target: host, Port: port, Interval: 60}
	p := newSMBProber(svc, 300*time.Millisecond)

	o := p.Probe(context.Background())
	if o.Up {
		t.Fatal("expected Down against a server that never answers")
	}
	if o.Reason != ReasonTimeout {
		t.Errorf("expected timeout, got %q: %s", o.Reason, o.Detail)
	}
	if atomic.LoadInt64(&received) == 0 {
		t.Error("no negotiate request reached the server; probe failed before the network")
	}
}

func TestSMBAuthRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"logon failure", &smb2.ResponseError{Code: ntStatusLogonFailure}, true},
		{"account disabled", &smb2.ResponseError{Code: ntStatusAccountDisabled}, true},
		{"access denied", &smb2.ResponseError{Code: ntStatusAccessDenied}, true},
		{"wrapped logon failure", fmt.Errorf("session setup: %w", &smb2.ResponseError{Code: ntStatusLogonFailure}), true},
		{"other nt status", &smb2.ResponseError{Code: 0xC0000001}, false},
		{"plain error", errors.New("broken pipe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := smbAuthRejected(tt.err); got != tt.want {
				t.Errorf("smbAuthRejected(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
