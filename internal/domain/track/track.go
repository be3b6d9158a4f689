// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the catalog a track was found in.
type Source string

const (
	SourceYouTube Source = "youtube"
	SourceSpotify Source = "spotify"
)

// Track represents a playable catalog item.
type Track struct {
	ID       string        // Catalog track ID (also the cache key)
	Title    string        // Track title
	Artists  []string      // Artist names
	Album    string        // Album name
	Duration time.Duration // Track duration (zero if unknown)
	URL      string        // Catalog URL
	Source   Source        // Catalog the track came from
}

// Origin represents why a track entered the queue.
type Origin string

const (
	OriginSearch  Origin = "SEARCH"  // Picked from search results
	OriginRelated Origin = "RELATED" // Added by a related-track refill
)

// QueuedTrack represents a track in the playback queue.
type QueuedTrack struct {
	Track   Track     // Track info
	Origin  Origin    // Why it was queued
	AddedAt time.Time // Time when added to queue
}

// NewQueued wraps a track for the queue.
func NewQueued(t Track, origin Origin) QueuedTrack {
	return QueuedTrack{Track: t, Origin: origin, AddedAt: time.Now()}
}

// ArtistLine returns the artists joined for display.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// DisplayName returns "Title" or "Artist - Title" when artists are known.
func (t *Track) DisplayName() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return t.ArtistLine() + " - " + t.Title
}

// FormatDuration renders the duration as m:ss, or "--:--" when unknown.
func (t *Track) FormatDuration() string {
	return FormatDuration(t.Duration)
}

// FormatDuration renders d as m:ss (h:mm:ss above an hour).
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
