package related

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain collects candidates from every configured provider.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// GetCandidates retrieves candidates from all providers.
// All providers are tried to maximize the candidate pool for filtering.
func (c *ProviderChain) GetCandidates(ctx context.Context, count int, seed track.Track, excludeIDs map[string]bool) ([]track.Track, error) {
	var allCandidates []track.Track
	currentExcludeIDs := make(map[string]bool, len(excludeIDs))
	for k, v := range excludeIDs {
		currentExcludeIDs[k] = v
	}

	for i, pm := range c.providers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zlog.Debug().Msgf("related: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.GetCandidates(ctx, count, seed, currentExcludeIDs)
		if err != nil {
			zlog.Warn().Msgf("related: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		if len(candidates) == 0 {
			zlog.Debug().Msgf("related: provider returned no candidates: provider=%s", pm.DisplayName)
			continue
		}

		for _, t := range candidates {
			if currentExcludeIDs[t.ID] {
				continue
			}
			allCandidates = append(allCandidates, t)
			// Avoid duplicates from the next provider
			currentExcludeIDs[t.ID] = true
		}

		zlog.Debug().Msgf("related: provider returned candidates: provider=%s count=%d total_so_far=%d",
			pm.DisplayName, len(candidates), len(allCandidates))
	}

	if len(allCandidates) == 0 {
		return nil, errors.New("all providers failed to return candidates")
	}

	return allCandidates, nil
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}
