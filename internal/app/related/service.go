package related

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/app/filter"
	"github.com/osa030/melody/internal/domain/track"
)

// Service produces filtered related tracks for autoplay refills.
type Service struct {
	providers      Provider
	filters        *filter.Chain
	candidateCount int
	limit          int
}

// NewService creates a new Service. candidateCount is how many candidates
// are requested from providers; limit caps the tracks returned.
func NewService(providers Provider, filters *filter.Chain, candidateCount, limit int) *Service {
	if filters == nil {
		filters = filter.NewChain()
	}
	if limit <= 0 {
		limit = candidateCount
	}
	return &Service{
		providers:      providers,
		filters:        filters,
		candidateCount: candidateCount,
		limit:          limit,
	}
}

// Related returns up to limit tracks related to seed that pass the filter
// chain and are not already queued. The seed itself is never returned.
func (s *Service) Related(ctx context.Context, seed track.Track, queued []track.QueuedTrack) ([]track.Track, error) {
	exclude := make(map[string]bool, len(queued)+1)
	exclude[seed.ID] = true
	for _, q := range queued {
		exclude[q.Track.ID] = true
	}

	candidates, err := s.providers.GetCandidates(ctx, s.candidateCount, seed, exclude)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get related tracks for %s", seed.DisplayName())
	}

	// Providers may not honor the exclusion list
	fresh := candidates[:0:0]
	for _, t := range candidates {
		if t.ID == "" || exclude[t.ID] {
			continue
		}
		fresh = append(fresh, t)
	}

	accepted := s.filters.Apply(ctx, fresh, track.OriginRelated, queued)
	if len(accepted) > s.limit {
		accepted = accepted[:s.limit]
	}
	zlog.Debug().Msgf("related: seed=%s candidates=%d accepted=%d", seed.ID, len(candidates), len(accepted))
	return accepted, nil
}
