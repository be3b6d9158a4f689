package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/domain/track"
	"github.com/osa030/melody/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Build creates a chain of every enabled, registered filter in name order.
func Build(cfg *config.Config) (*Chain, error) {
	chain := NewChain()
	for _, name := range Names() {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(cfg.GetFilterSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Debug().Msgf("filter: enabled %s", name)
	}
	for name, fc := range cfg.Filters {
		if _, ok := registry[name]; !ok && fc.Enabled {
			zlog.Warn().Msgf("filter: unknown filter %q ignored", name)
		}
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the candidate.
// Filters are only applied if they declare they apply to the given origin.
func (c *Chain) Execute(ctx context.Context, t track.Track, origin track.Origin, queued []track.QueuedTrack) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(origin) {
			continue
		}

		result := f.Check(ctx, t, queued)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the accepted candidates in order. Each accepted candidate
// is checked against the queue plus the candidates accepted before it.
func (c *Chain) Apply(ctx context.Context, candidates []track.Track, origin track.Origin, queued []track.QueuedTrack) []track.Track {
	seen := append(make([]track.QueuedTrack, 0, len(queued)+len(candidates)), queued...)
	accepted := make([]track.Track, 0, len(candidates))

	for _, t := range candidates {
		result := c.Execute(ctx, t, origin, seen)
		if !result.Accepted {
			zlog.Debug().Msgf("filter: rejected %s (%s)", t.DisplayName(), result.Code)
			continue
		}
		accepted = append(accepted, t)
		seen = append(seen, track.NewQueued(t, origin))
	}
	return accepted
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
