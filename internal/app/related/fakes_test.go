package related

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/lastfm"
)

func ytTrack(id, title, artist string) track.Track {
	return track.Track{ID: id, Title: title, Artists: []string{artist}, Source: track.SourceYouTube}
}

type fakeMixer struct {
	mixes map[string][]track.Track
	calls []string
}

func (m *fakeMixer) Mix(_ context.Context, videoID string, limit int) ([]track.Track, error) {
	m.calls = append(m.calls, videoID)
	mix, ok := m.mixes[videoID]
	if !ok {
		return nil, errors.New("mix unavailable")
	}
	if len(mix) > limit {
		mix = mix[:limit]
	}
	return mix, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]track.Track
	err     error
	queries []string
}

func (s *fakeSearcher) Search(_ context.Context, query string, limit int) ([]track.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	hits := s.results[query]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *fakeSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type fakeProvider struct {
	name       string
	candidates []track.Track
	err        error
	gotExclude map[string]bool
}

func (p *fakeProvider) GetCandidates(_ context.Context, count int, _ track.Track, excludeIDs map[string]bool) ([]track.Track, error) {
	p.gotExclude = excludeIDs
	if p.err != nil {
		return nil, p.err
	}
	if len(p.candidates) > count {
		return p.candidates[:count], nil
	}
	return p.candidates, nil
}

func (p *fakeProvider) Name() string { return p.name }

type fakeLastFm struct {
	similar []lastfm.SimilarTrack
	tags    []lastfm.Tag
	top     map[string][]lastfm.TopTrack
	chart   []lastfm.TopTrack
	err     error
}

func (f *fakeLastFm) GetSimilarTracks(context.Context, string, string, int) ([]lastfm.SimilarTrack, error) {
	return f.similar, f.err
}

func (f *fakeLastFm) GetTopTags(context.Context, string, string, int) ([]lastfm.Tag, error) {
	return f.tags, f.err
}

func (f *fakeLastFm) GetTopTracks(_ context.Context, tag string, _ int) ([]lastfm.TopTrack, error) {
	return f.top[tag], f.err
}

func (f *fakeLastFm) GetChartTopTracks(context.Context, int) ([]lastfm.TopTrack, error) {
	return f.chart, f.err
}
