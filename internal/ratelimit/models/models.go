package models

import (
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassWrite: certificate registration (ledger writes and file uploads).
	ClassWrite EndpointClass = "write"
	// ClassAdmin: authority administration endpoints.
	ClassAdmin EndpointClass = "admin"
	// ClassRead: certificate lookups.
	ClassRead EndpointClass = "read"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassWrite, ClassAdmin, ClassRead:
		return true
	}
	return false
}

// Limit is a fixed-window quota.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set when the in-memory fallback answered instead of the shared store.
	Degraded bool `json:"-"`
}
