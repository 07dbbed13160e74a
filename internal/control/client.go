package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tuptime/tuptime/internal/registry"
)

// Client talks to a running daemon over its unix socket. Safe for use from
// a single short-lived CLI invocation; it holds no state beyond the socket
// path.
type Client struct {
	http *http.Client
}

const clientTimeout = 5 * time.Second

// NewClient returns a Client for the daemon socket at path.
func NewClient(path string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: clientTimeout},
	}
}

// Reachable reports whether a daemon answers on the socket. Used as the
// liveness half of crashed-daemon detection; it never blocks past its own
// short timeout.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := c.Status(ctx)
	return err == nil
}

// Status fetches the daemon's identity and live registry snapshot.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddService registers a service in the running daemon.
func (c *Client) AddService(ctx context.Context, svc registry.Service) error {
	return c.do(ctx, http.MethodPost, "/v1/services", svc, nil)
}

// RemoveService removes a service from the running daemon.
func (c *Client) RemoveService(ctx context.Context, name string) error {
	// Names are free-form; escape so slashes and metacharacters survive
	// the path round-trip.
	return c.do(ctx, http.MethodDelete, "/v1/services/"+url.PathEscape(name), nil, nil)
}

// Shutdown asks the daemon to stop gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/shutdown", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	// The host is ignored; the transport always dials the socket.
	req, err := http.NewRequestWithContext(ctx, method, "http://tuptime"+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon: %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

// remoteError carries the daemon's message while still matching the
// registry sentinels under errors.Is, so CLI error handling is identical
// with and without a running daemon.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }

func statusError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusConflict:
		return &remoteError{sentinel: registry.ErrDuplicate, msg: msg}
	case http.StatusNotFound:
		return &remoteError{sentinel: registry.ErrNotFound, msg: msg}
	case http.StatusBadRequest:
		return &remoteError{sentinel: registry.ErrInvalid, msg: msg}
	default:
		return fmt.Errorf("daemon error: %s", msg)
	}
}
