package session

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melody/internal/app/catalog"
	"github.com/osa030/melody/internal/app/download"
	"github.com/osa030/melody/internal/app/filter"
	"github.com/osa030/melody/internal/app/playback"
	"github.com/osa030/melody/internal/app/related"
	"github.com/osa030/melody/internal/infra/audio"
	"github.com/osa030/melody/internal/infra/cache"
	"github.com/osa030/melody/internal/infra/config"
	"github.com/osa030/melody/internal/infra/youtube"
)

// Build wires a Manager from configuration: yt-dlp for search and
// downloads, the on-disk cache, related-track providers behind the filter
// chain, and the system speaker.
func Build(ctx context.Context, cfg *config.Config) (*Manager, error) {
	yt := youtube.New(youtube.Config{
		Executable:   cfg.Downloader.Executable,
		AutoInstall:  cfg.Downloader.AutoInstall,
		Format:       cfg.Downloader.Format,
		AudioFormat:  cfg.Downloader.AudioFormat,
		AudioQuality: cfg.Downloader.AudioQuality,
		Retries:      cfg.Downloader.Retries,
	})

	cat, err := catalog.NewFromConfig(ctx, cfg, yt)
	if err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cfg.Player.CacheDir, cfg.Downloader.AudioFormat, cfg.Player.CacheMaxFiles)
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("session: audio cache %s (keeping %d files)", store.Dir(), cfg.Player.CacheMaxFiles)
	dl := download.New(store, yt, cfg.DownloadTimeout())

	filters, err := filter.Build(cfg)
	if err != nil {
		dl.Close()
		return nil, errors.Wrap(err, "invalid filter config")
	}
	providers, err := related.NewProviderChainFromConfig(cfg, yt, yt, cat)
	if err != nil {
		dl.Close()
		return nil, errors.Wrap(err, "failed to create related providers")
	}
	refiller := related.NewService(providers, filters, cfg.Related.CandidateCount, cfg.Player.RefillSize)

	speaker, err := audio.NewSpeaker(audio.Config{
		SampleRate: cfg.Audio.SampleRate,
		BufferMs:   cfg.Audio.BufferMs,
		Volume:     cfg.Audio.Volume,
	})
	if err != nil {
		dl.Close()
		return nil, errors.Wrap(err, "failed to open audio output")
	}

	ctrl := playback.NewController(speaker, dl, refiller, playback.Config{
		Autoplay: cfg.AutoplayEnabled(),
		Prefetch: cfg.PrefetchEnabled(),
	})

	return NewManager(Components{
		Catalog:     cat,
		Playback:    ctrl,
		Mixer:       speaker,
		Library:     dl,
		SearchLimit: cfg.Player.SearchLimit,
		Closers:     []func(){dl.Close, speaker.Close},
	})
}
