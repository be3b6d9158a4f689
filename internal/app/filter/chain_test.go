package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/config"
)

type rejectAll struct{ origin track.Origin }

func (r *rejectAll) Name() string                        { return "reject_all" }
func (r *rejectAll) Description() string                 { return "rejects everything" }
func (r *rejectAll) ReturnCodes() []string               { return []string{"rejected"} }
func (r *rejectAll) ValidateConfig(map[string]any) error { return nil }
func (r *rejectAll) AppliesTo(origin track.Origin) bool  { return origin == r.origin }
func (r *rejectAll) Check(context.Context, track.Track, []track.QueuedTrack) Result {
	return Reject("rejected")
}

func TestChain_ExecuteRespectsAppliesTo(t *testing.T) {
	chain := NewChain()
	chain.Add(&rejectAll{origin: track.OriginRelated})

	related := chain.Execute(context.Background(), track.Track{ID: "a"}, track.OriginRelated, nil)
	assert.False(t, related.Accepted)
	assert.Equal(t, "rejected", related.Code)

	search := chain.Execute(context.Background(), track.Track{ID: "a"}, track.OriginSearch, nil)
	assert.True(t, search.Accepted)
}

func TestChain_ApplyDedupesWithinBatch(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())

	queued := queuedOf(track.Track{ID: "seed", Title: "So What", Artists: []string{"Miles Davis"}})
	candidates := []track.Track{
		{ID: "seed", Title: "So What", Artists: []string{"Miles Davis"}},
		{ID: "b", Title: "Blue in Green", Artists: []string{"Miles Davis"}},
		{ID: "c", Title: "Blue in Green (Official Audio)", Artists: []string{"Miles Davis"}},
		{ID: "d", Title: "Take Five", Artists: []string{"Dave Brubeck"}},
	}

	accepted := chain.Apply(context.Background(), candidates, track.OriginRelated, queued)

	ids := make([]string, len(accepted))
	for i, a := range accepted {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"b", "d"}, ids)
}

func TestBuild(t *testing.T) {
	cfg := &config.Config{
		Filters: map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: true},
			"duration_limit_filter": {
				Enabled:  true,
				Settings: map[string]any{"max_duration_sec": 600},
			},
			"no_such_filter": {Enabled: true},
		},
	}

	chain, err := Build(cfg)
	require.NoError(t, err)
	require.Len(t, chain.Filters(), 2)
	assert.Equal(t, "duplicate_track_filter", chain.Filters()[0].Name())
	assert.Equal(t, "duration_limit_filter", chain.Filters()[1].Name())

	result := chain.Execute(context.Background(), track.Track{ID: "x", Duration: time.Hour}, track.OriginRelated, nil)
	assert.Equal(t, "duration_limit_exceeded", result.Code)
}

func TestBuild_InvalidSettings(t *testing.T) {
	cfg := &config.Config{
		Filters: map[string]config.FilterConfig{
			"duration_limit_filter": {
				Enabled:  true,
				Settings: map[string]any{"min_duration_sec": 900, "max_duration_sec": 60},
			},
		},
	}

	_, err := Build(cfg)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"duplicate_track_filter", "duration_limit_filter"}, Names())
}
