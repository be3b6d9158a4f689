// Package playback drives the audio output from a queue with a single
// cancellable worker.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Nothing playing
	StateLoading              // Resolving or downloading the current track
	StatePlaying              // Audio is playing
	StatePaused               // Audio is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Active reports whether a worker owns the output.
func (s State) Active() bool {
	return s != StateIdle
}
