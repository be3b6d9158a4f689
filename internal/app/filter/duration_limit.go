package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinDurationSec int `yaml:"min_duration_sec" mapstructure:"min_duration_sec" default:"30" validate:"gte=0"`
	MaxDurationSec int `yaml:"max_duration_sec" mapstructure:"max_duration_sec" validate:"gte=0"`
}

// DurationLimitFilter keeps hour-long mixes and short clips out of the queue.
// Tracks with unknown duration are accepted.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects related tracks outside min_duration_sec..max_duration_sec"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	// 0 means no upper limit
	if config.MaxDurationSec > 0 && config.MinDurationSec > config.MaxDurationSec {
		return errors.New("min_duration_sec cannot be greater than max_duration_sec")
	}
	f.config = &config
	zlog.Debug().Msgf("duration limit filter config: %+v", config)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(origin track.Origin) bool {
	return origin == track.OriginRelated
}

func (f *DurationLimitFilter) Check(ctx context.Context, t track.Track, queued []track.QueuedTrack) Result {
	if f.config == nil || t.Duration <= 0 {
		return Accept()
	}

	if t.Duration < time.Duration(f.config.MinDurationSec)*time.Second {
		return Reject("duration_limit_exceeded")
	}
	if f.config.MaxDurationSec > 0 && t.Duration > time.Duration(f.config.MaxDurationSec)*time.Second {
		return Reject("duration_limit_exceeded")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
