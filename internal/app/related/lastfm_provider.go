package related

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/patrickmn/go-cache"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

type LastFmProviderConfig struct {
	APIKey        string  `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SimilarLimit  int     `yaml:"similar_limit" mapstructure:"similar_limit" default:"30" validate:"gte=1,lte=100"`
	TagCount      int     `yaml:"tag_count" mapstructure:"tag_count" default:"3" validate:"gte=0"`
	TagWeight     float64 `yaml:"tag_weight" mapstructure:"tag_weight" default:"0.4" validate:"gte=0,lte=1.0"`
	SimilarWeight float64 `yaml:"similar_weight" mapstructure:"similar_weight" default:"0.6" validate:"gte=0,lte=1.0"`
	Parallelism   int     `yaml:"parallelism" mapstructure:"parallelism" default:"4" validate:"gte=1,lte=16"`
}

// LastFmProvider suggests tracks from Last.fm similarity and tag charts,
// resolved to playable tracks through the catalog.
type LastFmProvider struct {
	lastfm   LastFmClient
	searcher Searcher

	// name -> *track.Track (nil when the catalog had no match)
	resolved *cache.Cache

	config *LastFmProviderConfig
}

type scoredTrack struct {
	Track track.Track
	Score float64
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(searcher Searcher, settings map[string]any) (*LastFmProvider, error) {
	config, err := decodeLastFmConfig(settings)
	if err != nil {
		return nil, err
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return newLastFmProvider(client, searcher, config)
}

func newLastFmProvider(client LastFmClient, searcher Searcher, config *LastFmProviderConfig) (*LastFmProvider, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	return &LastFmProvider{
		lastfm:   client,
		searcher: searcher,
		resolved: cache.New(time.Hour, 10*time.Minute),
		config:   config,
	}, nil
}

func decodeLastFmConfig(settings map[string]any) (*LastFmProviderConfig, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if diff := config.TagWeight + config.SimilarWeight - 1.0; diff > 1e-9 || diff < -1e-9 {
		return nil, errors.New("tag weight and similar weight must sum to 1.0")
	}
	return &config, nil
}

// GetCandidates retrieves candidates using hybrid scoring.
func (p *LastFmProvider) GetCandidates(ctx context.Context, count int, seed track.Track, excludeIDs map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	if seed.Title == "" || len(seed.Artists) == 0 {
		// Nothing to be similar to, use global charts as fallback
		return p.getChartBasedCandidates(ctx, count, excludeIDs)
	}

	similar := p.getSimilarBasedCandidates(ctx, seed, excludeIDs)
	var tagged []track.Track
	if p.config.TagCount > 0 && len(similar) < count {
		tagged = p.getTagBasedCandidates(ctx, seed, excludeIDs)
	}

	scored := p.scoreAndMerge(tagged, similar)
	if len(scored) == 0 {
		return []track.Track{}, nil
	}

	// Stable so similarity order survives among equal scores
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	result := make([]track.Track, 0, count)
	for i := 0; i < count && i < len(scored); i++ {
		result = append(result, scored[i].Track)
	}
	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

func (p *LastFmProvider) getSimilarBasedCandidates(ctx context.Context, seed track.Track, excludeIDs map[string]bool) []track.Track {
	similar, err := p.lastfm.GetSimilarTracks(ctx, seed.Title, seed.Artists[0], p.config.SimilarLimit)
	if err != nil {
		zlog.Debug().Msgf("related: last.fm similar lookup failed: %v", err)
		return []track.Track{}
	}

	names := make([]lastfm.TopTrack, len(similar))
	for i, s := range similar {
		names[i] = lastfm.TopTrack{Name: s.Name, Artist: s.Artist}
	}
	return p.resolveAll(ctx, names, excludeIDs)
}

func (p *LastFmProvider) getTagBasedCandidates(ctx context.Context, seed track.Track, excludeIDs map[string]bool) []track.Track {
	tags, err := p.lastfm.GetTopTags(ctx, seed.Title, seed.Artists[0], p.config.TagCount)
	if err != nil || len(tags) == 0 {
		return []track.Track{}
	}

	var names []lastfm.TopTrack
	for _, tag := range tags {
		top, err := p.lastfm.GetTopTracks(ctx, tag.Name, 10)
		if err != nil {
			continue
		}
		names = append(names, top...)
	}
	return p.resolveAll(ctx, names, excludeIDs)
}

// getChartBasedCandidates is the fallback when the seed has no artist.
func (p *LastFmProvider) getChartBasedCandidates(ctx context.Context, count int, excludeIDs map[string]bool) ([]track.Track, error) {
	chart, err := p.lastfm.GetChartTopTracks(ctx, 50)
	if err != nil {
		return []track.Track{}, err
	}

	rand.Shuffle(len(chart), func(i, j int) {
		chart[i], chart[j] = chart[j], chart[i]
	})
	if len(chart) > count*2 {
		chart = chart[:count*2]
	}
	return p.resolveAll(ctx, chart, excludeIDs), nil
}

// scoreAndMerge scores and merges tag-based and similar-based candidates.
func (p *LastFmProvider) scoreAndMerge(tagCandidates, similarCandidates []track.Track) []scoredTrack {
	scoreMap := make(map[string]*scoredTrack)
	order := make([]string, 0, len(tagCandidates)+len(similarCandidates))

	add := func(t track.Track, weight float64) {
		if existing, ok := scoreMap[t.ID]; ok {
			existing.Score += weight
			return
		}
		scoreMap[t.ID] = &scoredTrack{Track: t, Score: weight}
		order = append(order, t.ID)
	}
	for _, t := range similarCandidates {
		add(t, p.config.SimilarWeight)
	}
	for _, t := range tagCandidates {
		add(t, p.config.TagWeight)
	}

	result := make([]scoredTrack, 0, len(order))
	for _, id := range order {
		result = append(result, *scoreMap[id])
	}
	return result
}

// resolveAll matches Last.fm names to catalog tracks with bounded parallelism,
// keeping input order and dropping misses, excluded and repeated IDs.
func (p *LastFmProvider) resolveAll(ctx context.Context, names []lastfm.TopTrack, excludeIDs map[string]bool) []track.Track {
	found := make([]*track.Track, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Parallelism)
	for i, n := range names {
		g.Go(func() error {
			found[i] = p.resolve(gctx, n.Name, n.Artist)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	result := make([]track.Track, 0, len(names))
	for _, t := range found {
		if t == nil || excludeIDs[t.ID] || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, *t)
	}
	return result
}

// resolve searches the catalog for a track with caching, misses included.
func (p *LastFmProvider) resolve(ctx context.Context, name, artist string) *track.Track {
	key := strings.ToLower(artist + "\x00" + name)
	if v, ok := p.resolved.Get(key); ok {
		return v.(*track.Track)
	}

	hits, err := p.searcher.Search(ctx, searchQuery(name, artist), 1)
	if err != nil {
		if ctx.Err() == nil {
			zlog.Debug().Msgf("related: search failed for %s - %s: %v", artist, name, err)
		}
		// Don't cache transient failures
		return nil
	}

	var t *track.Track
	if len(hits) > 0 {
		hit := hits[0]
		t = &hit
	}
	p.resolved.SetDefault(key, t)
	return t
}
