package related

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/domain/track"
)

type RadioProviderConfig struct {
	MixSize int `yaml:"mix_size" mapstructure:"mix_size" default:"50" validate:"gte=1,lte=200"`
}

// RadioProvider reads the YouTube mix ("radio") of the seed video.
// Seeds from other catalogs are first matched to a video by search.
type RadioProvider struct {
	mixer    Mixer
	searcher Searcher
	config   *RadioProviderConfig
}

// NewRadioProvider creates a new RadioProvider.
func NewRadioProvider(mixer Mixer, searcher Searcher, settings map[string]any) (*RadioProvider, error) {
	if mixer == nil || searcher == nil {
		return nil, errors.New("mixer and searcher are required")
	}

	var config RadioProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &RadioProvider{mixer: mixer, searcher: searcher, config: &config}, nil
}

// GetCandidates returns mix tracks that are not excluded.
func (p *RadioProvider) GetCandidates(ctx context.Context, count int, seed track.Track, excludeIDs map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	videoID, err := p.seedVideoID(ctx, seed)
	if err != nil {
		return nil, err
	}

	mix, err := p.mixer.Mix(ctx, videoID, p.config.MixSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get mix")
	}

	result := make([]track.Track, 0, count)
	for _, t := range mix {
		if excludeIDs[t.ID] || t.ID == videoID {
			continue
		}
		result = append(result, t)
		if len(result) >= count {
			break
		}
	}
	return result, nil
}

func (p *RadioProvider) seedVideoID(ctx context.Context, seed track.Track) (string, error) {
	if seed.Source == track.SourceYouTube {
		return seed.ID, nil
	}

	var artist string
	if len(seed.Artists) > 0 {
		artist = seed.Artists[0]
	}
	hits, err := p.searcher.Search(ctx, searchQuery(seed.Title, artist), 1)
	if err != nil {
		return "", errors.Wrap(err, "failed to match seed to a video")
	}
	if len(hits) == 0 {
		return "", errors.Newf("no video found for %s", seed.DisplayName())
	}
	zlog.Debug().Msgf("related: matched seed %s to video %s", seed.DisplayName(), hits[0].ID)
	return hits[0].ID, nil
}

// Name returns the provider name.
func (p *RadioProvider) Name() string {
	return "radio"
}
