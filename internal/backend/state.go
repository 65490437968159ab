package backend

import (
	"time"

	"github.com/dshills/lexbridge/internal/token"
)

// State is the availability state of a native backend.
type State uint8

const (
	// StateUnprobed means no probe has been attempted yet.
	StateUnprobed State = iota
	// StateProbing means entry points are being resolved.
	StateProbing
	// StateAvailable means every required entry point resolved.
	StateAvailable
	// StateUnavailable means at least one entry point is missing. Permanent.
	StateUnavailable
	// StateFailed means an invocation failed. Permanent; the backend is
	// never invoked again.
	StateFailed
)

var stateNames = [...]string{
	StateUnprobed:    "unprobed",
	StateProbing:     "probing",
	StateAvailable:   "available",
	StateUnavailable: "unavailable",
	StateFailed:      "failed",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Settled reports whether probing has finished.
func (s State) Settled() bool {
	return s >= StateAvailable
}

// canTransition reports whether from -> to is a legal lifecycle step.
func canTransition(from, to State) bool {
	switch from {
	case StateUnprobed:
		return to == StateProbing
	case StateProbing:
		return to == StateAvailable || to == StateUnavailable
	case StateAvailable:
		return to == StateFailed
	}
	return false
}

// StateChange is published for every backend state transition.
type StateChange struct {
	Backend   string
	Languages []token.Language
	From      State
	To        State
	At        time.Time

	// Err is the probe or invocation error behind an Unavailable or Failed
	// transition, if any.
	Err error
}
