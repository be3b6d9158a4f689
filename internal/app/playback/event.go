package playback

import "github.com/osa030/melody/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackLoading  EventType = iota // Track is being resolved to a file
	EventTrackStarted                   // Audio started
	EventTrackEnded                     // Track played to the end
	EventTrackStopped                   // Playback stopped by the user
	EventStateChanged                   // Pause/resume or autoplay toggled
	EventQueueRefilled                  // Related tracks were added
	EventQueueEnded                     // Autoplay found nothing to play next
	EventError                          // A track could not be played
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackLoading:
		return "track_loading"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackStopped:
		return "track_stopped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueRefilled:
		return "queue_refilled"
	case EventQueueEnded:
		return "queue_ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Track    *track.QueuedTrack // Current track (nil for some events)
	State    State              // Playback state after the event
	Position int                // 1-based queue position, 0 when empty
	Cached   bool               // track_started: file came from the cache
	Added    int                // queue_refilled: number of tracks added
	Err      error              // error: what went wrong
}
