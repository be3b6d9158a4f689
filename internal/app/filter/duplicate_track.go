package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/melody/internal/domain/track"
)

// DuplicateTrackFilter rejects candidates already in the queue.
// Detects:
// - Exact track ID matches
// - Remasters and alternate uploads (normalized title + same artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already queued, including remasters and alternate uploads; covers are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which origins this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(origin track.Origin) bool {
	// The user may pick anything from search results
	return origin == track.OriginRelated
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the candidate duplicates a queued track.
func (f *DuplicateTrackFilter) Check(ctx context.Context, candidate track.Track, queued []track.QueuedTrack) Result {
	for _, q := range queued {
		if q.Track.ID == candidate.ID {
			return Reject("duplicate_track")
		}
		if isRemaster(q.Track, candidate) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song (remaster/different version).
func isRemaster(track1, track2 track.Track) bool {
	if normalizeTrackName(track1) != normalizeTrackName(track2) {
		return false
	}
	// Same normalized name but different artists is a cover
	return isSameArtist(track1, track2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*\blive\b`),         // "- Live"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	uploadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[](official\s+)?(music\s+)?(video|audio|mv|lyric(s)?(\s+video)?|visuali[sz]er)[\)\]]`),
		regexp.MustCompile(`\s*[\(\[](hd|hq|4k)[\)\]]`),
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTrackName lowercases the title and strips remaster, version and
// upload decorations, plus a leading "Artist - " when it matches the artist.
func normalizeTrackName(t track.Track) string {
	normalized := strings.ToLower(t.Title)

	if len(t.Artists) > 0 {
		prefix := strings.ToLower(t.Artists[0]) + " - "
		normalized = strings.TrimPrefix(normalized, prefix)
	}

	for _, group := range [][]*regexp.Regexp{uploadPatterns, remasterPatterns, versionPatterns} {
		for _, pattern := range group {
			normalized = pattern.ReplaceAllString(normalized, "")
		}
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist checks if two tracks have the same main artist.
func isSameArtist(track1, track2 track.Track) bool {
	if len(track1.Artists) == 0 || len(track2.Artists) == 0 {
		return false
	}
	return strings.EqualFold(track1.Artists[0], track2.Artists[0])
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
