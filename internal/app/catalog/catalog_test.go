package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/config"
)

type countingSearcher struct {
	calls  int
	tracks []track.Track
	err    error
}

func (s *countingSearcher) Search(_ context.Context, query string, limit int) ([]track.Track, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tracks, nil
}

func TestCatalog_CachesResults(t *testing.T) {
	searcher := &countingSearcher{tracks: []track.Track{{ID: "a", Title: "A"}}}
	c := New("youtube", searcher, time.Minute)

	for range 3 {
		got, err := c.Search(context.Background(), "  Miles Davis ", 10)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	_, err := c.Search(context.Background(), "miles davis", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.calls)

	_, err = c.Search(context.Background(), "miles davis", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.calls, "limit is part of the key")
}

func TestCatalog_ResultsAreCopies(t *testing.T) {
	searcher := &countingSearcher{tracks: []track.Track{{ID: "a"}, {ID: "b"}}}
	c := New("youtube", searcher, time.Minute)

	got, err := c.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	got[0].ID = "changed"

	again, err := c.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].ID)
}

func TestCatalog_NoCache(t *testing.T) {
	searcher := &countingSearcher{}
	c := New("youtube", searcher, 0)

	for range 2 {
		_, err := c.Search(context.Background(), "q", 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, searcher.calls)
}

func TestCatalog_ErrorsAreNotCached(t *testing.T) {
	searcher := &countingSearcher{err: errors.New("offline")}
	c := New("youtube", searcher, time.Minute)

	_, err := c.Search(context.Background(), "q", 10)
	require.Error(t, err)

	searcher.err = nil
	_, err = c.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.calls)
}

func TestCatalog_BlankQuery(t *testing.T) {
	searcher := &countingSearcher{}
	c := New("youtube", searcher, time.Minute)

	_, err := c.Search(context.Background(), "   ", 10)
	assert.Error(t, err)
	assert.Zero(t, searcher.calls)
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	c, err := NewFromConfig(context.Background(), cfg, &countingSearcher{})
	require.NoError(t, err)
	assert.Equal(t, "youtube", c.Name())

	cfg.Catalog.Provider = "spotify"
	cfg.Spotify.ClientID = "id"
	cfg.Spotify.ClientSecret = "secret"
	c, err = NewFromConfig(context.Background(), cfg, &countingSearcher{})
	require.NoError(t, err)
	assert.Equal(t, "spotify", c.Name())

	cfg.Catalog.Provider = "napster"
	_, err = NewFromConfig(context.Background(), cfg, &countingSearcher{})
	assert.Error(t, err)
}
