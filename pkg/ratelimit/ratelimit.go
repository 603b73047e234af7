// Package ratelimit implements sliding-window admission control.
//
// A key (for example "login:203.0.113.7") owns the timestamps of its admitted
// requests. Before every decision the timestamps whose age has reached the
// window are pruned; the request is admitted when fewer than limit remain.
//
// Two backends share the same semantics: Memory for a single process and
// Redis for a fleet of processes sharing one budget per key.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidWindow is returned for a non-positive window.
var ErrInvalidWindow = errors.New("ratelimit: window must be positive")

// Info describes the state of a key after a decision.
type Info struct {
	Limit     int
	Remaining int
	// ResetTime is when the oldest in-window request ages out.
	ResetTime time.Time
}

// Limiter decides whether one more request for key fits within limit
// requests per window. An admitted request is recorded; a rejected one is not.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, Info, error)
}

// Rule is a per-operation threshold.
type Rule struct {
	Requests int
	Window   time.Duration
}

// Rules holds the thresholds of every throttled operation.
type Rules struct {
	Login    Rule
	Register Rule
	Reset    Rule
	Refresh  Rule
	Verify   Rule
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		Login:    Rule{Requests: 10, Window: 5 * time.Minute},
		Register: Rule{Requests: 5, Window: time.Hour},
		Reset:    Rule{Requests: 3, Window: time.Hour},
		Refresh:  Rule{Requests: 30, Window: time.Minute},
		Verify:   Rule{Requests: 10, Window: time.Hour},
	}
}

// Key joins an operation name and a client identity the way every caller
// builds bucket keys.
func Key(op, client string) string { return op + ":" + client }

func denied(limit int, reset time.Time) Info {
	return Info{Limit: limit, Remaining: 0, ResetTime: reset}
}
