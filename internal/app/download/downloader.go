// Package download resolves tracks to local audio files, downloading them
// into the on-disk cache when needed.
package download

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/cache"
	"github.com/osa030/melody/internal/infra/tagger"
	"github.com/osa030/melody/internal/infra/youtube"
)

// Source extracts audio for a yt-dlp source into an output template.
type Source interface {
	Download(ctx context.Context, source, outputTemplate string, progress youtube.ProgressFunc) error
}

// Result is a resolved audio file.
type Result struct {
	Path   string
	Cached bool
}

// CachedFile is a cache entry with its ID3 tags.
type CachedFile struct {
	cache.Entry
	Tags tagger.Tags
}

// Downloader fetches audio into a cache.Store.
type Downloader struct {
	store   *cache.Store
	source  Source
	timeout time.Duration

	group singleflight.Group

	// Downloads outlive the caller that started them so a skipped track
	// still lands in the cache; Close cancels them.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Downloader.
func New(store *cache.Store, source Source, timeout time.Duration) *Downloader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Downloader{
		store:   store,
		source:  source,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Fetch returns the cached file for t, downloading it first on a miss.
// Concurrent fetches of the same track share one download.
func (d *Downloader) Fetch(ctx context.Context, t track.Track) (Result, error) {
	if path, ok := d.store.Lookup(t.ID); ok {
		zlog.Info().Msgf("download: using cached song: %s", path)
		return Result{Path: path, Cached: true}, nil
	}

	ch := d.group.DoChan(t.ID, func() (any, error) {
		return d.download(t)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return Result{Path: res.Val.(string)}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (d *Downloader) download(t track.Track) (string, error) {
	path, err := d.store.Path(t.ID)
	if err != nil {
		return "", err
	}
	tmpl, err := d.store.OutputTemplate(t.ID)
	if err != nil {
		return "", err
	}

	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	source := SourceFor(t)
	zlog.Info().Msgf("download: downloading %s from %s", t.DisplayName(), source)
	started := time.Now()

	err = d.source.Download(ctx, source, tmpl, func(fraction float64) {
		zlog.Debug().Msgf("download: %s %.0f%%", t.ID, fraction*100)
	})
	if err != nil {
		if derr := d.store.Discard(t.ID); derr != nil {
			zlog.Warn().Err(derr).Msgf("download: failed to clean up %s", t.ID)
		}
		return "", errors.Wrapf(err, "failed to download %s", t.DisplayName())
	}

	if _, ok := d.store.Lookup(t.ID); !ok {
		return "", errors.Newf("download of %s produced no audio file", t.DisplayName())
	}
	zlog.Info().Msgf("download: finished %s in %s", t.ID, time.Since(started).Round(time.Millisecond))

	if err := tagger.Write(path, tagger.Tags{
		Title:  t.Title,
		Artist: t.ArtistLine(),
		Album:  t.Album,
	}); err != nil {
		zlog.Warn().Err(err).Msgf("download: failed to tag %s", path)
	}

	if _, err := d.store.Prune(path); err != nil {
		zlog.Warn().Err(err).Msg("download: failed to prune cache")
	}
	return path, nil
}

// SourceFor returns what yt-dlp should download for t. YouTube tracks are
// fetched directly; anything else is matched by a single search hit.
func SourceFor(t track.Track) string {
	if t.Source == track.SourceYouTube {
		return youtube.WatchURL(t.ID)
	}
	return "ytsearch1:" + t.DisplayName()
}

// Files lists cached files, newest first, with their tags.
func (d *Downloader) Files() ([]CachedFile, error) {
	entries, err := d.store.List()
	if err != nil {
		return nil, err
	}
	files := make([]CachedFile, len(entries))
	for i, e := range entries {
		files[i].Entry = e
		tags, err := tagger.Read(e.Path)
		if err != nil {
			zlog.Debug().Err(err).Msgf("download: no tags for %s", e.Path)
			continue
		}
		files[i].Tags = tags
	}
	return files, nil
}

// Close cancels downloads in progress.
func (d *Downloader) Close() {
	d.cancel()
}
