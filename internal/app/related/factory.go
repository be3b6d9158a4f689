package related

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/melody/internal/infra/config"
)

// NewProviderChainFromConfig builds the provider chain described by config.
// The radio provider needs a YouTube searcher; the Last.fm provider resolves
// names through the active catalog.
func NewProviderChainFromConfig(cfg *config.Config, mixer Mixer, videoSearcher, catalog Searcher) (*ProviderChain, error) {
	if len(cfg.Related.Providers) == 0 {
		return nil, errors.New("no related providers configured")
	}

	providers := make([]ProviderWithMetadata, 0, len(cfg.Related.Providers))
	for i, pc := range cfg.Related.Providers {
		var (
			p   Provider
			err error
		)
		switch pc.Type {
		case "radio":
			p, err = NewRadioProvider(mixer, videoSearcher, pc.Settings)
		case "lastfm":
			p, err = NewLastFmProvider(catalog, pc.Settings)
		default:
			err = errors.Newf("unknown provider type: %s", pc.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "provider[%d] %s", i, pc.DisplayName)
		}
		providers = append(providers, ProviderWithMetadata{Provider: p, DisplayName: pc.DisplayName})
	}
	return NewProviderChain(providers), nil
}
