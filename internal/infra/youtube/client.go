// Package youtube wraps yt-dlp for catalog search and audio extraction,
// and reads YouTube mix playlists for related tracks.
package youtube

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"
	ytget "github.com/ytget/ytdlp/v2"

	"github.com/osa030/melody/internal/domain/track"
)

const (
	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
	mixPrefix        = "RD"
	topicSuffix      = " - Topic"
)

// Config holds yt-dlp settings.
type Config struct {
	Executable   string
	AutoInstall  bool
	Format       string
	AudioFormat  string
	AudioQuality string
	Retries      int
	RetryDelay   time.Duration
}

// ProgressFunc receives download progress in [0, 1].
type ProgressFunc func(fraction float64)

// Client runs yt-dlp.
type Client struct {
	cfg Config

	installOnce sync.Once
	installErr  error
}

// New creates a client. Nothing is executed until the first call.
func New(cfg Config) *Client {
	if cfg.Format == "" {
		cfg.Format = "bestaudio/best"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192K"
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Client{cfg: cfg}
}

// WatchURL returns the watch page URL for a video ID.
func WatchURL(videoID string) string {
	return fmt.Sprintf(watchURLTemplate, videoID)
}

// Search runs a yt-dlp "ytsearchN:" query and returns the video hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 10
	}
	if err := c.ensureInstalled(ctx); err != nil {
		return nil, err
	}

	result, err := c.command().
		FlatPlaylist().
		DumpJSON().
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, errors.Wrapf(err, "yt-dlp search failed for %q", query)
	}
	return parseSearchOutput(result.Stdout)
}

// Download extracts the audio of source into outputTemplate.
func (c *Client) Download(ctx context.Context, source, outputTemplate string, progress ProgressFunc) error {
	if err := c.ensureInstalled(ctx); err != nil {
		return err
	}

	dl := c.command().
		Format(c.cfg.Format).
		ExtractAudio().
		AudioFormat(c.cfg.AudioFormat).
		AudioQuality(c.cfg.AudioQuality).
		NoPlaylist().
		Output(outputTemplate)

	if progress != nil {
		dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes > 0 {
				progress(float64(update.DownloadedBytes) / float64(update.TotalBytes))
			}
		})
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			zlog.Info().Msgf("youtube: retrying download of %s, attempt %d", source, attempt+1)
		}

		_, err := dl.Run(ctx, source)
		if err == nil {
			return nil
		}
		lastErr = err
		zlog.Warn().Err(err).Msgf("youtube: download attempt %d failed for %s", attempt+1, source)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Wrapf(lastErr, "failed to download %s", source)
}

// Mix returns the tracks of the YouTube mix seeded by videoID, excluding
// the seed itself.
func (c *Client) Mix(ctx context.Context, videoID string, limit int) ([]track.Track, error) {
	if videoID == "" {
		return nil, errors.New("video id is required")
	}

	items, err := ytget.New().GetPlaylistItemsAll(ctx, mixPrefix+videoID, limit+1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read mix for %s", videoID)
	}

	tracks := make([]track.Track, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" || it.VideoID == videoID {
			continue
		}
		tracks = append(tracks, videoTrack(it.VideoID, it.Title, "", 0))
		if limit > 0 && len(tracks) >= limit {
			break
		}
	}
	return tracks, nil
}

func (c *Client) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if c.cfg.Executable != "" {
		cmd.SetExecutable(c.cfg.Executable)
	}
	return cmd
}

// ensureInstalled downloads a yt-dlp binary once when auto-install is on.
func (c *Client) ensureInstalled(ctx context.Context) error {
	if !c.cfg.AutoInstall || c.cfg.Executable != "" {
		return nil
	}
	c.installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			c.installErr = errors.Wrap(err, "failed to install yt-dlp")
		}
	})
	return c.installErr
}

// searchEntry is one line of yt-dlp --flat-playlist --dump-json output.
type searchEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
	Channel  string   `json:"channel"`
	Uploader string   `json:"uploader"`
	IEKey    string   `json:"ie_key"`
	Live     string   `json:"live_status"`
}

func parseSearchOutput(stdout string) ([]track.Track, error) {
	tracks := make([]track.Track, 0)

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}

		var e searchEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, errors.Wrap(err, "failed to parse yt-dlp output")
		}
		if e.ID == "" || (e.IEKey != "" && e.IEKey != "Youtube") || e.Live == "is_live" {
			continue
		}

		channel := e.Channel
		if channel == "" {
			channel = e.Uploader
		}
		var seconds float64
		if e.Duration != nil {
			seconds = *e.Duration
		}
		tracks = append(tracks, videoTrack(e.ID, e.Title, channel, seconds))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read yt-dlp output")
	}
	return tracks, nil
}

func videoTrack(id, title, channel string, seconds float64) track.Track {
	t := track.Track{
		ID:       id,
		Title:    title,
		Duration: time.Duration(seconds * float64(time.Second)),
		URL:      WatchURL(id),
		Source:   track.SourceYouTube,
	}
	if channel = strings.TrimSuffix(channel, topicSuffix); channel != "" {
		t.Artists = []string{channel}
	}
	return t
}
