package registry

import "time"

// Result is the last observed health of a service.
type Result string

const (
	Up      Result = "up"
	Down    Result = "down"
	Unknown Result = "unknown"
)

// Status is the mutable state attached to a service definition. While the
// daemon runs only the scheduler writes it; everyone else sees snapshots.
type Status struct {
	Result              Result    `json:"result"`
	LastCheck           time.Time `json:"last_check"`
	LatencyMs           int64     `json:"latency_ms"`
	Error               string    `json:"error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Entry pairs a definition with its latest status, as persisted and as
// returned by snapshots.
type Entry struct {
	Service
	Status Status `json:"status"`
}
