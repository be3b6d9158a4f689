// Package queue provides the ordered playback queue with a position pointer.
package queue

import (
	"errors"

	"github.com/osa030/melody/internal/domain/track"
)

var (
	ErrEmpty      = errors.New("queue is empty")
	ErrNoNext     = errors.New("no next track")
	ErrNoPrevious = errors.New("no previous songs")
	ErrOutOfRange = errors.New("index out of range")
)

// Queue is an ordered track list with a current position.
// When the queue is non-empty the position is always within [0, Len).
// Not safe for concurrent use; the playback controller guards it.
type Queue struct {
	tracks []track.QueuedTrack
	pos    int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{tracks: make([]track.QueuedTrack, 0)}
}

// Replace swaps the contents and resets the position to 0.
func (q *Queue) Replace(tracks []track.QueuedTrack) {
	q.tracks = append(make([]track.QueuedTrack, 0, len(tracks)), tracks...)
	q.pos = 0
}

// Append adds tracks after the last entry.
func (q *Queue) Append(tracks ...track.QueuedTrack) {
	q.tracks = append(q.tracks, tracks...)
}

// Len returns the number of tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Position returns the current position (0-based).
func (q *Queue) Position() int {
	return q.pos
}

// Current returns the track at the current position.
func (q *Queue) Current() (track.QueuedTrack, error) {
	if len(q.tracks) == 0 {
		return track.QueuedTrack{}, ErrEmpty
	}
	return q.tracks[q.pos], nil
}

// Peek returns the track after the current one, if any.
func (q *Queue) Peek() (track.QueuedTrack, bool) {
	if !q.HasNext() {
		return track.QueuedTrack{}, false
	}
	return q.tracks[q.pos+1], true
}

// HasNext reports whether Advance would succeed.
func (q *Queue) HasNext() bool {
	return q.pos+1 < len(q.tracks)
}

// HasPrevious reports whether Back would succeed.
func (q *Queue) HasPrevious() bool {
	return len(q.tracks) > 0 && q.pos > 0
}

// Advance moves to the next track.
func (q *Queue) Advance() (track.QueuedTrack, error) {
	if len(q.tracks) == 0 {
		return track.QueuedTrack{}, ErrEmpty
	}
	if !q.HasNext() {
		return track.QueuedTrack{}, ErrNoNext
	}
	q.pos++
	return q.tracks[q.pos], nil
}

// Back moves to the previous track.
func (q *Queue) Back() (track.QueuedTrack, error) {
	if !q.HasPrevious() {
		return track.QueuedTrack{}, ErrNoPrevious
	}
	q.pos--
	return q.tracks[q.pos], nil
}

// Jump moves to the 1-based index n.
func (q *Queue) Jump(n int) (track.QueuedTrack, error) {
	if n < 1 || n > len(q.tracks) {
		return track.QueuedTrack{}, ErrOutOfRange
	}
	q.pos = n - 1
	return q.tracks[q.pos], nil
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []track.QueuedTrack {
	result := make([]track.QueuedTrack, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Contains reports whether a track ID is queued.
func (q *Queue) Contains(trackID string) bool {
	for _, qt := range q.tracks {
		if qt.Track.ID == trackID {
			return true
		}
	}
	return false
}
