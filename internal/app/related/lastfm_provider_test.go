package related

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/lastfm"
)

func testLastFmConfig() *LastFmProviderConfig {
	return &LastFmProviderConfig{
		APIKey:        "key",
		SimilarLimit:  30,
		TagCount:      1,
		TagWeight:     0.4,
		SimilarWeight: 0.6,
		Parallelism:   2,
	}
}

func TestDecodeLastFmConfig(t *testing.T) {
	cfg, err := decodeLastFmConfig(map[string]any{"api_key": "key"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TagCount)
	assert.InDelta(t, 0.6, cfg.SimilarWeight, 1e-9)
	assert.Equal(t, 4, cfg.Parallelism)

	_, err = decodeLastFmConfig(nil)
	assert.Error(t, err)

	_, err = decodeLastFmConfig(map[string]any{"tag_count": 2})
	assert.Error(t, err, "api_key is required")

	_, err = decodeLastFmConfig(map[string]any{"api_key": "key", "tag_weight": 0.5, "similar_weight": 0.6})
	assert.Error(t, err, "weights must sum to 1.0")
}

func TestLastFmProvider_SimilarTracks(t *testing.T) {
	client := &fakeLastFm{
		similar: []lastfm.SimilarTrack{
			{Name: "Blue in Green", Artist: "Miles Davis"},
			{Name: "Missing", Artist: "Nobody"},
			{Name: "Naima", Artist: "John Coltrane"},
		},
	}
	searcher := &fakeSearcher{results: map[string][]track.Track{
		"Miles Davis - Blue in Green": {ytTrack("big", "Blue in Green", "Miles Davis")},
		"John Coltrane - Naima":       {ytTrack("naima", "Naima", "John Coltrane")},
	}}
	p, err := newLastFmProvider(client, searcher, testLastFmConfig())
	require.NoError(t, err)

	seed := ytTrack("seed", "So What", "Miles Davis")
	got, err := p.GetCandidates(context.Background(), 2, seed, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"big", "naima"}, ids(got))
}

func TestLastFmProvider_HybridScoring(t *testing.T) {
	client := &fakeLastFm{
		similar: []lastfm.SimilarTrack{
			{Name: "Only Similar", Artist: "A"},
			{Name: "Both", Artist: "B"},
		},
		tags: []lastfm.Tag{{Name: "jazz"}},
		top: map[string][]lastfm.TopTrack{
			"jazz": {{Name: "Both", Artist: "B"}, {Name: "Only Tag", Artist: "C"}},
		},
	}
	searcher := &fakeSearcher{results: map[string][]track.Track{
		"A - Only Similar": {ytTrack("sim", "Only Similar", "A")},
		"B - Both":         {ytTrack("both", "Both", "B")},
		"C - Only Tag":     {ytTrack("tag", "Only Tag", "C")},
	}}
	p, err := newLastFmProvider(client, searcher, testLastFmConfig())
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 10, ytTrack("seed", "Seed", "Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"both", "sim", "tag"}, ids(got))
}

func TestLastFmProvider_ExcludesIDs(t *testing.T) {
	client := &fakeLastFm{
		similar: []lastfm.SimilarTrack{{Name: "Queued", Artist: "A"}, {Name: "Fresh", Artist: "A"}},
	}
	searcher := &fakeSearcher{results: map[string][]track.Track{
		"A - Queued": {ytTrack("queued", "Queued", "A")},
		"A - Fresh":  {ytTrack("fresh", "Fresh", "A")},
	}}
	p, err := newLastFmProvider(client, searcher, testLastFmConfig())
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 1, ytTrack("seed", "Seed", "A"), map[string]bool{"queued": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids(got))
}

func TestLastFmProvider_CachesResolution(t *testing.T) {
	client := &fakeLastFm{similar: []lastfm.SimilarTrack{{Name: "Song", Artist: "A"}, {Name: "Gone", Artist: "B"}}}
	searcher := &fakeSearcher{results: map[string][]track.Track{
		"A - Song": {ytTrack("song", "Song", "A")},
	}}
	cfg := testLastFmConfig()
	cfg.TagCount = 0
	p, err := newLastFmProvider(client, searcher, cfg)
	require.NoError(t, err)

	seed := ytTrack("seed", "Seed", "A")
	for range 3 {
		got, err := p.GetCandidates(context.Background(), 5, seed, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"song"}, ids(got))
	}
	assert.Equal(t, 2, searcher.count(), "hits and misses are both cached")
}

func TestLastFmProvider_SearchErrorsAreNotCached(t *testing.T) {
	client := &fakeLastFm{similar: []lastfm.SimilarTrack{{Name: "Song", Artist: "A"}}}
	searcher := &fakeSearcher{err: errors.New("offline")}
	cfg := testLastFmConfig()
	cfg.TagCount = 0
	p, err := newLastFmProvider(client, searcher, cfg)
	require.NoError(t, err)

	seed := ytTrack("seed", "Seed", "A")
	got, err := p.GetCandidates(context.Background(), 5, seed, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	searcher.err = nil
	searcher.results = map[string][]track.Track{"A - Song": {ytTrack("song", "Song", "A")}}
	got, err = p.GetCandidates(context.Background(), 5, seed, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"song"}, ids(got))
}

func TestLastFmProvider_ChartFallbackWithoutArtist(t *testing.T) {
	client := &fakeLastFm{chart: []lastfm.TopTrack{{Name: "Hit", Artist: "Pop"}}}
	searcher := &fakeSearcher{results: map[string][]track.Track{
		"Pop - Hit": {ytTrack("hit", "Hit", "Pop")},
	}}
	p, err := newLastFmProvider(client, searcher, testLastFmConfig())
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 5, track.Track{ID: "x", Title: "Untitled"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hit"}, ids(got))
}

func TestLastFmProvider_ZeroCount(t *testing.T) {
	p, err := newLastFmProvider(&fakeLastFm{}, &fakeSearcher{}, testLastFmConfig())
	require.NoError(t, err)

	got, err := p.GetCandidates(context.Background(), 0, ytTrack("seed", "Seed", "A"), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
