// Package models holds the rate limiting value types shared by stores and middleware.
package models

import (
	"math"
	"strings"
	"time"
)

// Scope names what a key counts requests against.
type Scope string

const (
	ScopeIP    Scope = "ip"
	ScopeEmail Scope = "email"
)

// Limit is a request budget per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of a single check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}

// Key builds the storage key for a scope and identifier. Emails are lowercased so
// case variants share a budget.
func Key(scope Scope, identifier string) string {
	if scope == ScopeEmail {
		identifier = strings.ToLower(strings.TrimSpace(identifier))
	}
	return "rl:" + string(scope) + ":" + identifier
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
