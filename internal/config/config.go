package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultListenAddress is where the HTTP API listens.
	DefaultListenAddress = "127.0.0.1:9848"
	// DefaultScrobblePercent is the share of a track to play before scrobbling.
	DefaultScrobblePercent = 50
	// DefaultRequestTimeout bounds a single call to a scrobbling service.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultStageTimeout bounds a single pipeline stage.
	DefaultStageTimeout = 5 * time.Second
	// DefaultCacheSize is the number of enrichment results kept in memory.
	DefaultCacheSize = 512
)

type Config struct {
	Listen ListenConfig `koanf:"listen"`

	// Global scrobbling options
	Options OptionsConfig `koanf:"options"`

	// Per-connector overrides, keyed by connector ID
	ConnectorOptions map[string]ConnectorOverride `koanf:"connector_options"`

	Notifications NotificationsConfig `koanf:"notifications"`

	// Last.fm scrobbling (enables scrobbling when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// ListenBrainz scrobbling
	ListenBrainz ListenBrainzConfig `koanf:"listenbrainz"`

	// MusicBrainz lookups during enrichment
	MusicBrainz MusicBrainzConfig `koanf:"musicbrainz"`

	Services ServicesConfig `koanf:"services"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Log      LogConfig      `koanf:"log"`

	// Extra connectors added to the built-in list
	Connectors         []ConnectorConfig `koanf:"connectors"`
	DisabledConnectors []string          `koanf:"disabled_connectors"`
}

// ListenConfig holds the HTTP API settings.
type ListenConfig struct {
	Address string `koanf:"address"` // e.g., "127.0.0.1:9848"
}

// OptionsConfig holds the options consulted by controllers.
type OptionsConfig struct {
	ScrobblePercent  int   `koanf:"scrobble_percent"`  // 10-100, default: 50
	ScrobblePodcasts *bool `koanf:"scrobble_podcasts"` // default: true
	ForceRecognize   bool  `koanf:"force_recognize"`   // accept songs with only a track and an ID
}

// ConnectorOverride overrides global options for one connector. Unset
// fields fall back to the global value.
type ConnectorOverride struct {
	ScrobblePodcasts          *bool `koanf:"scrobble_podcasts"`
	ForceRecognize            *bool `koanf:"force_recognize"`
	NowPlayingNotifications   *bool `koanf:"now_playing_notifications"`
	UnrecognizedNotifications *bool `koanf:"unrecognized_notifications"`
}

// NotificationsConfig holds desktop notification settings.
type NotificationsConfig struct {
	NowPlaying   *bool `koanf:"now_playing"`  // default: true
	Unrecognized bool  `koanf:"unrecognized"` // default: false
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
	Enrich    *bool  `koanf:"enrich"` // use track.getInfo during processing (default: true)
}

// ListenBrainzConfig holds ListenBrainz configuration.
type ListenBrainzConfig struct {
	Token  string `koanf:"token"`   // optional; `auth listenbrainz` stores one otherwise
	APIURL string `koanf:"api_url"` // custom server, e.g. a self-hosted instance
}

// MusicBrainzConfig holds MusicBrainz-related configuration.
type MusicBrainzConfig struct {
	Enrich *bool `koanf:"enrich"` // search recordings during processing (default: true)
}

// ServicesConfig holds settings shared by every scrobbling service.
type ServicesConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// PipelineConfig holds processing settings.
type PipelineConfig struct {
	StageTimeout time.Duration `koanf:"stage_timeout"`
	CacheSize    int           `koanf:"cache_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error (default: info)
	File  string `koanf:"file"`  // "stderr", a path, or empty for the state dir
}

// ConnectorConfig declares a site to track.
type ConnectorConfig struct {
	ID      string   `koanf:"id"`
	Label   string   `koanf:"label"`
	Matches []string `koanf:"matches"` // e.g., "*://music.example.com/*"
}

// Load reads the config files in order of priority. extra, when not empty,
// is loaded last.
func Load(extra ...string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := append(getConfigPaths(), extra...)

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Expand ~ in log file
	if cfg.Log.File != "" && cfg.Log.File != "stderr" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}

	// Normalize ListenBrainz URL (remove trailing slash)
	cfg.ListenBrainz.APIURL = strings.TrimSuffix(cfg.ListenBrainz.APIURL, "/")

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/scrobbled/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scrobbled", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// LastfmEnrich returns true if Last.fm lookups run during processing.
func (c *Config) LastfmEnrich() bool {
	return c.HasLastfmConfig() && boolOr(c.Lastfm.Enrich, true)
}

// MusicBrainzEnrich returns true if MusicBrainz lookups run during
// processing.
func (c *Config) MusicBrainzEnrich() bool {
	return boolOr(c.MusicBrainz.Enrich, true)
}

// ListenAddress returns the HTTP API address with the default applied.
func (c *Config) ListenAddress() string {
	if c.Listen.Address == "" {
		return DefaultListenAddress
	}
	return c.Listen.Address
}

// GetServicesConfig returns the services configuration with defaults applied.
func (c *Config) GetServicesConfig() ServicesConfig {
	cfg := c.Services
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return cfg
}

// GetPipelineConfig returns the pipeline configuration with defaults applied.
func (c *Config) GetPipelineConfig() PipelineConfig {
	cfg := c.Pipeline
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	return cfg
}

// IsConnectorDisabled returns true if the connector is listed in
// disabled_connectors.
func (c *Config) IsConnectorDisabled(id string) bool {
	for _, d := range c.DisabledConnectors {
		if d == id {
			return true
		}
	}
	return false
}

// ScrobblePercent returns the scrobble percent, clamped to 10-100.
func (c *Config) ScrobblePercent(string) int {
	p := c.Options.ScrobblePercent
	switch {
	case p == 0:
		return DefaultScrobblePercent
	case p < 10:
		return 10
	case p > 100:
		return 100
	}
	return p
}

// ScrobblePodcasts returns true if podcast episodes are scrobbled on the
// connector.
func (c *Config) ScrobblePodcasts(connectorID string) bool {
	global := boolOr(c.Options.ScrobblePodcasts, true)
	return boolOr(c.override(connectorID).ScrobblePodcasts, global)
}

// ForceRecognize returns true if songs without an artist are accepted on
// the connector.
func (c *Config) ForceRecognize(connectorID string) bool {
	return boolOr(c.override(connectorID).ForceRecognize, c.Options.ForceRecognize)
}

// NowPlayingNotifications returns true if a notification is shown when a
// song starts on the connector.
func (c *Config) NowPlayingNotifications(connectorID string) bool {
	global := boolOr(c.Notifications.NowPlaying, true)
	return boolOr(c.override(connectorID).NowPlayingNotifications, global)
}

// UnrecognizedNotifications returns true if a notification is shown when a
// song is not recognized on the connector.
func (c *Config) UnrecognizedNotifications(connectorID string) bool {
	return boolOr(c.override(connectorID).UnrecognizedNotifications, c.Notifications.Unrecognized)
}

func (c *Config) override(connectorID string) ConnectorOverride {
	return c.ConnectorOptions[connectorID]
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
