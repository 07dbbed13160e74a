// Package control implements the local channel between short-lived CLI
// invocations and the running daemon: a JSON API served on a unix socket,
// one request/response pair per invocation. Nothing here is ever exposed
// on the network.
package control

import (
	"time"

	"github.com/tuptime/tuptime/internal/registry"
)

// StatusResponse is the daemon's answer to a status query: its identity
// plus the live registry snapshot.
type StatusResponse struct {
	Pid       int              `json:"pid"`
	Version   string           `json:"version"`
	StartedAt time.Time        `json:"started_at"`
	Services  []registry.Entry `json:"services"`
}

// Uptime is how long the daemon has been running.
func (r StatusResponse) Uptime() time.Duration {
	return time.Since(r.StartedAt)
}
