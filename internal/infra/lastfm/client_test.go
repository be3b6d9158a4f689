package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetSimilarTracks(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "track.getSimilar", q.Get("method"))
		assert.Equal(t, "Miles Davis", q.Get("artist"))
		assert.Equal(t, "So What", q.Get("track"))
		assert.Equal(t, "test_key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("format"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"similartracks": {
				"track": [
					{"name": "Blue in Green", "match": 1, "duration": 337, "artist": {"name": "Miles Davis"}},
					{"name": "Take Five", "match": "0.52", "duration": "", "artist": {"name": "Dave Brubeck"}}
				]
			}
		}`)
	})

	ctx := context.Background()
	tracks, err := client.GetSimilarTracks(ctx, "So What", "Miles Davis", 10)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Blue in Green", tracks[0].Name)
	assert.Equal(t, 337*time.Second, tracks[0].Duration)
	assert.InDelta(t, 0.52, tracks[1].Match, 1e-9)
	assert.Equal(t, time.Duration(0), tracks[1].Duration)

	cached, err := client.GetSimilarTracks(ctx, "So What", "Miles Davis", 10)
	require.NoError(t, err)
	assert.Equal(t, tracks, cached)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")
}

func TestGetSimilarTracks_RequiresNames(t *testing.T) {
	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)

	_, err = client.GetSimilarTracks(context.Background(), "", "artist", 5)
	assert.Error(t, err)
}

func TestGetTopTags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "track.getTopTags", r.URL.Query().Get("method"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"toptags": {
				"tag": [
					{"name": "jazz", "count": 100},
					{"name": "cool jazz", "count": 80},
					{"name": "trumpet", "count": 12}
				]
			}
		}`)
	})

	tags, err := client.GetTopTags(context.Background(), "So What", "Miles Davis", 2)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "jazz", tags[0].Name)
	assert.Equal(t, 100, tags[0].Count)

	all, err := client.GetTopTags(context.Background(), "So What", "Miles Davis", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "cache keeps the full tag list")
}

func TestGetTopTracks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tag.getTopTracks", r.URL.Query().Get("method"))
		assert.Equal(t, "rock", r.URL.Query().Get("tag"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"tracks": {
				"track": [
					{"name": "Track 1", "artist": {"name": "Artist 1"}, "playcount": "5000"},
					{"name": "Track 2", "artist": {"name": "Artist 2"}, "playcount": "2000"}
				]
			}
		}`)
	})

	tracks, err := client.GetTopTracks(context.Background(), "rock", 5)
	require.NoError(t, err)
	assert.Equal(t, []TopTrack{
		{Name: "Track 1", Artist: "Artist 1"},
		{Name: "Track 2", Artist: "Artist 2"},
	}, tracks)
}

func TestGetChartTopTracks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chart.getTopTracks", r.URL.Query().Get("method"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"tracks": {"track": [{"name": "Hit", "artist": {"name": "Star"}}]}}`)
	})

	tracks, err := client.GetChartTopTracks(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Hit", tracks[0].Name)
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": 10, "message": "Invalid API key"}`)
	})

	_, err := client.GetChartTopTracks(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestHTTPStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetChartTopTracks(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
