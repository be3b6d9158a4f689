// Package results provides the indexed search result set.
package results

import (
	"errors"

	"github.com/osa030/melody/internal/domain/track"
)

// ErrInvalidIndex is returned when an index does not address a result.
var ErrInvalidIndex = errors.New("invalid index or no search results available")

// Results is the outcome of one catalog search.
// Indices are 1-based and valid until the next search replaces the set.
type Results struct {
	Query  string        // Query that produced the results
	Tracks []track.Track // Results in catalog order
}

// New creates a result set.
func New(query string, tracks []track.Track) *Results {
	if tracks == nil {
		tracks = []track.Track{}
	}
	return &Results{Query: query, Tracks: tracks}
}

// Len returns the number of results.
func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Tracks)
}

// Get returns the n-th result (1-based).
func (r *Results) Get(n int) (track.Track, error) {
	if r == nil || n < 1 || n > len(r.Tracks) {
		return track.Track{}, ErrInvalidIndex
	}
	return r.Tracks[n-1], nil
}
