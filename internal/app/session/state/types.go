// Package state holds the mutable state of an interactive session.
package state

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseActive  Phase = iota // Accepting commands
	PhaseClosing              // bye received, shutting down
	PhaseClosed               // Everything released
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}
