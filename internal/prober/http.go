package prober

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tuptime/tuptime/internal/registry"
)

type httpProber struct {
	svc     registry.Service
	timeout time.Duration
	client  *http.Client
}

func newHTTPProber(svc registry.Service, timeout time.Duration) *httpProber {
	return &httpProber{
		svc:     svc,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// url builds the request URL. A target that already carries a scheme is
// used as-is; a bare host is combined with the effective port.
func (p *httpProber) url() string {
	if strings.Contains(p.svc.Target, "://") {
		return p.svc.Target
	}
	return fmt.Sprintf("http://%s/", hostPort(p.svc))
}

func (p *httpProber) Probe(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(), nil)
	if err != nil {
		return down(ReasonConnectionFailed, fmt.Sprintf("creating request: %v", err))
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return down(classifyNetErr(err), err.Error())
	}
	resp.Body.Close()

	// Anything below 500 proves the server is alive and answering; 5xx
	// means the service itself is failing.
	if resp.StatusCode >= http.StatusInternalServerError {
		return down(ReasonHTTPStatus, fmt.Sprintf("status %d", resp.StatusCode))
	}
	return up(latency)
}
