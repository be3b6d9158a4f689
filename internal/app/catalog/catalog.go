// Package catalog searches the configured music catalog.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/patrickmn/go-cache"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/config"
	"github.com/osa030/melody/internal/infra/spotify"
)

// Searcher searches a catalog for tracks.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// Catalog is a named Searcher with memoized results.
type Catalog struct {
	name     string
	searcher Searcher
	cache    *cache.Cache
	group    singleflight.Group
}

// New wraps searcher. A zero ttl disables result caching.
func New(name string, searcher Searcher, ttl time.Duration) *Catalog {
	c := &Catalog{name: name, searcher: searcher}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

// NewFromConfig builds the catalog selected by cfg.Catalog.Provider.
// The YouTube searcher is used for the "youtube" provider.
func NewFromConfig(ctx context.Context, cfg *config.Config, youtube Searcher) (*Catalog, error) {
	switch cfg.Catalog.Provider {
	case "", "youtube":
		return New("youtube", youtube, cfg.SearchCacheTTL()), nil
	case "spotify":
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create spotify client")
		}
		return New("spotify", client, cfg.SearchCacheTTL()), nil
	default:
		return nil, errors.Newf("unknown catalog provider: %s", cfg.Catalog.Provider)
	}
}

// Name returns the catalog name.
func (c *Catalog) Name() string {
	return c.name
}

// Search returns up to limit tracks for query. Blank queries are rejected.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if c.cache == nil {
		return c.searcher.Search(ctx, query, limit)
	}

	key := fmt.Sprintf("%d\x00%s", limit, strings.ToLower(query))
	if v, ok := c.cache.Get(key); ok {
		zlog.Debug().Msgf("catalog: cache hit: query=%q", query)
		return clone(v.([]track.Track)), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		tracks, err := c.searcher.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(key, tracks)
		return tracks, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s search failed", c.name)
	}
	return clone(v.([]track.Track)), nil
}

func clone(tracks []track.Track) []track.Track {
	return append([]track.Track(nil), tracks...)
}
