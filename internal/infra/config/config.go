// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player     PlayerConfig            `yaml:"player"`
	Downloader DownloaderConfig        `yaml:"downloader"`
	Audio      AudioConfig             `yaml:"audio"`
	Catalog    CatalogConfig           `yaml:"catalog"`
	Spotify    SpotifyConfig           `yaml:"spotify"`
	Related    RelatedConfig           `yaml:"related"`
	Filters    map[string]FilterConfig `yaml:"filters"`
	Control    ControlConfig           `yaml:"control"`
	Log        LogConfig               `yaml:"log"`
}

// PlayerConfig represents queue and cache behavior.
type PlayerConfig struct {
	CacheDir      string `yaml:"cache_dir" default:"temp_audio" validate:"required"`
	CacheMaxFiles int    `yaml:"cache_max_files" default:"10" validate:"gte=1,lte=1000"`
	Autoplay      *bool  `yaml:"autoplay" default:"true"`
	SearchLimit   int    `yaml:"search_limit" default:"10" validate:"gte=1,lte=50"`
	RefillSize    int    `yaml:"refill_size" default:"20" validate:"gte=1,lte=100"`
	Prefetch      *bool  `yaml:"prefetch" default:"true"`
}

// DownloaderConfig represents yt-dlp settings.
type DownloaderConfig struct {
	Executable   string `yaml:"executable"`
	AutoInstall  bool   `yaml:"auto_install"`
	Format       string `yaml:"format" default:"bestaudio/best"`
	AudioFormat  string `yaml:"audio_format" default:"mp3" validate:"oneof=mp3"`
	AudioQuality string `yaml:"audio_quality" default:"192K"`
	Retries      int    `yaml:"retries" default:"1" validate:"gte=0,lte=5"`
	TimeoutSec   int    `yaml:"timeout_sec" default:"300" validate:"gte=10"`
}

// AudioConfig represents speaker settings.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	Volume     int `yaml:"volume" default:"80" validate:"gte=0,lte=100"`
}

// CatalogConfig represents the search backend.
type CatalogConfig struct {
	Provider          string `yaml:"provider" default:"youtube" validate:"oneof=youtube spotify"`
	SearchCacheTTLSec int    `yaml:"search_cache_ttl_sec" default:"600" validate:"gte=0"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// RelatedConfig represents related-track refill configuration.
type RelatedConfig struct {
	CandidateCount int              `yaml:"candidate_count" default:"25" validate:"gte=1,lte=200"`
	Providers      []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single related-track provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=radio lastfm"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// ControlConfig represents the remote control server.
type ControlConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:"127.0.0.1:7419" validate:"required"`
	Token   string `yaml:"token"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level string `yaml:"level" default:"warn" validate:"oneof=debug info warn warning error"`
	File  string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults. Environment variables take
// precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	c.applyBuiltins()

	// Override with environment variables
	c.overrideFromEnv()

	if err := defaults.Set(c); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// applyBuiltins fills the collections that struct tags cannot default.
func (c *Config) applyBuiltins() {
	if len(c.Related.Providers) == 0 {
		c.Related.Providers = []ProviderConfig{
			{Type: "radio", DisplayName: "YouTube radio", Settings: map[string]any{}},
		}
	}
	if c.Filters == nil {
		c.Filters = map[string]FilterConfig{
			"duplicate_track_filter": {Enabled: true},
			"duration_limit_filter": {
				Enabled:  true,
				Settings: map[string]any{"max_duration_sec": 900},
			},
		}
	}
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Related.Providers {
			if c.Related.Providers[i].Type == "lastfm" {
				if c.Related.Providers[i].Settings == nil {
					c.Related.Providers[i].Settings = map[string]any{}
				}
				c.Related.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
	if v := os.Getenv("MELODY_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
	if v := os.Getenv("MELODY_CACHE_DIR"); v != "" {
		c.Player.CacheDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Catalog.Provider == "spotify" && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
		return errors.New("spotify catalog requires spotify.client_id and spotify.client_secret")
	}

	return nil
}

// AutoplayEnabled returns the initial autoplay flag.
func (c *Config) AutoplayEnabled() bool {
	return c.Player.Autoplay == nil || *c.Player.Autoplay
}

// PrefetchEnabled reports whether the next queue item is downloaded ahead.
func (c *Config) PrefetchEnabled() bool {
	return c.Player.Prefetch == nil || *c.Player.Prefetch
}

// SearchCacheTTL returns the search cache lifetime.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Catalog.SearchCacheTTLSec) * time.Second
}

// DownloadTimeout returns the per-download timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Downloader.TimeoutSec) * time.Second
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
