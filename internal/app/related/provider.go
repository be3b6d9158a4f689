// Package related finds tracks to queue after a seed track.
package related

import (
	"context"

	"github.com/osa030/melody/internal/domain/track"
)

// Provider is the interface for related-track providers.
// Implementations differ in where the suggestions come from
// (a YouTube mix, Last.fm similarity, ...).
type Provider interface {
	// GetCandidates retrieves related track candidates.
	// count: the number of candidates to retrieve
	// seed: the track the suggestions should follow
	// excludeIDs: tracks already queued (for duplicate avoidance)
	GetCandidates(ctx context.Context, count int, seed track.Track, excludeIDs map[string]bool) ([]track.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// Searcher resolves free-text queries to playable tracks.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// Mixer returns the tracks of a YouTube mix seeded by a video.
type Mixer interface {
	Mix(ctx context.Context, videoID string, limit int) ([]track.Track, error)
}

// searchQuery builds the query used to find a track by name.
func searchQuery(title, artist string) string {
	if artist == "" {
		return title
	}
	return artist + " - " + title
}
