package youtube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melody/internal/domain/track"
)

func TestParseSearchOutput(t *testing.T) {
	stdout := `{"_type": "url", "ie_key": "Youtube", "id": "zqNTltOGh5c", "title": "So What", "duration": 565.0, "channel": "Miles Davis - Topic"}
WARNING: ignored line
{"_type": "url", "ie_key": "Youtube", "id": "ylXk1LBvIqU", "title": "Blue in Green", "duration": null, "uploader": "Jazz Archive"}
{"_type": "url", "ie_key": "YoutubeTab", "id": "UC123", "title": "A channel"}
{"_type": "url", "ie_key": "Youtube", "id": "live1", "title": "24/7 radio", "live_status": "is_live"}

`

	tracks, err := parseSearchOutput(stdout)
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, track.Track{
		ID:       "zqNTltOGh5c",
		Title:    "So What",
		Artists:  []string{"Miles Davis"},
		Duration: 565 * time.Second,
		URL:      "https://www.youtube.com/watch?v=zqNTltOGh5c",
		Source:   track.SourceYouTube,
	}, tracks[0])

	assert.Equal(t, "ylXk1LBvIqU", tracks[1].ID)
	assert.Equal(t, []string{"Jazz Archive"}, tracks[1].Artists)
	assert.Equal(t, time.Duration(0), tracks[1].Duration)
}

func TestParseSearchOutput_Empty(t *testing.T) {
	tracks, err := parseSearchOutput("")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestParseSearchOutput_Malformed(t *testing.T) {
	_, err := parseSearchOutput(`{"id": "abc", "title": `)
	assert.Error(t, err)
}

func TestVideoTrack_NoChannel(t *testing.T) {
	tr := videoTrack("abc", "Title", "", 0)
	assert.Nil(t, tr.Artists)
	assert.Equal(t, WatchURL("abc"), tr.URL)
}

func TestClient_InputValidation(t *testing.T) {
	c := New(Config{})

	_, err := c.Search(context.Background(), "   ", 5)
	assert.Error(t, err)

	_, err = c.Mix(context.Background(), "", 5)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, "bestaudio/best", c.cfg.Format)
	assert.Equal(t, "mp3", c.cfg.AudioFormat)
	assert.Equal(t, "192K", c.cfg.AudioQuality)
	assert.Equal(t, 2*time.Second, c.cfg.RetryDelay)
}
