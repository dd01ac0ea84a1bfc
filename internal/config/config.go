// Package config loads the mediaplug YAML configuration.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chronologos/mediaplug/internal/media"
	"github.com/chronologos/mediaplug/internal/plugin"
	"github.com/chronologos/mediaplug/internal/protocol"
	"github.com/chronologos/mediaplug/internal/transport"
)

// Config is the complete file. Every field has a default, so an empty file
// is valid.
type Config struct {
	Plugin       PluginConfig    `yaml:"plugin"`
	Transport    TransportConfig `yaml:"transport"`
	Media        MediaConfig     `yaml:"media"`
	OpenIDCookie CookieConfig    `yaml:"openid_cookie"`
}

// PluginConfig says how to start the plugin host.
type PluginConfig struct {
	Launcher      string        `yaml:"launcher"` // empty: this executable
	Dir           string        `yaml:"dir"`
	File          string        `yaml:"file"`
	Debug         bool          `yaml:"debug"`
	LaunchTimeout time.Duration `yaml:"launch_timeout"`
	LockupTimeout time.Duration `yaml:"lockup_timeout"`
	ExitTimeout   time.Duration `yaml:"exit_timeout"`
}

type TransportConfig struct {
	Mode  string `yaml:"mode"`  // "quic" or "tcp"
	Codec string `yaml:"codec"` // "msgpack" or "cbor"
}

// MediaConfig holds controller defaults and the initial media settings.
type MediaConfig struct {
	Target               string     `yaml:"target"`
	ZoomFactor           float64    `yaml:"zoom_factor"`
	LowPrioritySizeLimit int        `yaml:"low_priority_size_limit"`
	MaxTextureDimension  int        `yaml:"max_texture_dimension"`
	HiDPI                bool       `yaml:"hidpi"`
	Priority             string     `yaml:"priority"`
	Width                int        `yaml:"width"`
	Height               int        `yaml:"height"`
	AutoScale            bool       `yaml:"auto_scale"`
	Background           [4]float64 `yaml:"background"`
	URI                  string     `yaml:"uri"`
}

type CookieConfig struct {
	URL   string `yaml:"url"`
	Host  string `yaml:"host"`
	Path  string `yaml:"path"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes data strictly, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !isEmpty(err) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration of an empty file.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Plugin.File == "" {
		c.Plugin.File = "testpattern"
	}
	if c.Plugin.LaunchTimeout == 0 {
		c.Plugin.LaunchTimeout = plugin.DefaultLaunchTimeout
	}
	if c.Plugin.LockupTimeout == 0 {
		c.Plugin.LockupTimeout = plugin.DefaultLockupTimeout
	}
	if c.Plugin.ExitTimeout == 0 {
		c.Plugin.ExitTimeout = plugin.DefaultExitTimeout
	}
	if c.Transport.Mode == "" {
		c.Transport.Mode = transport.ModeQUIC.String()
	}
	if c.Transport.Codec == "" {
		c.Transport.Codec = protocol.DefaultCodec
	}
	if c.Media.ZoomFactor == 0 {
		c.Media.ZoomFactor = 1
	}
	if c.Media.LowPrioritySizeLimit == 0 {
		c.Media.LowPrioritySizeLimit = media.DefaultLowPrioritySizeLimit
	}
	if c.Media.MaxTextureDimension == 0 {
		c.Media.MaxTextureDimension = media.DefaultMaxTextureDimension
	}
	if c.Media.Priority == "" {
		c.Media.Priority = media.PriorityNormal.String()
	}
	if c.Media.Background == [4]float64{} {
		c.Media.Background = [4]float64{1, 1, 1, 1}
	}
	if c.OpenIDCookie.URL != "" && c.OpenIDCookie.Path == "" {
		c.OpenIDCookie.Path = "/"
	}
}

// Controller returns the process-wide controller defaults.
func (c *Config) Controller(log *slog.Logger) media.Config {
	ck := c.OpenIDCookie
	return media.Config{
		Logger:               log,
		LowPrioritySizeLimit: c.Media.LowPrioritySizeLimit,
		HiDPI:                c.Media.HiDPI,
		MaxTextureDimension:  c.Media.MaxTextureDimension,
		Target:               c.Media.Target,
		ZoomFactor:           c.Media.ZoomFactor,
		OpenIDCookie: media.OpenIDCookie{
			URL: ck.URL, Host: ck.Host, Path: ck.Path, Name: ck.Name, Value: ck.Value,
		},
	}
}

// LaunchSpec describes the plugin host. self is used when no launcher is
// configured; args go before the connection flags.
func (c *Config) LaunchSpec(self string, args ...string) plugin.LaunchSpec {
	launcher := c.Plugin.Launcher
	if launcher == "" {
		launcher = self
	}
	// Validate has already checked the mode.
	mode, _ := transport.ParseMode(c.Transport.Mode)
	return plugin.LaunchSpec{
		Launcher:      launcher,
		Args:          args,
		Dir:           c.Plugin.Dir,
		File:          c.Plugin.File,
		Debug:         c.Plugin.Debug,
		Mode:          mode,
		Codec:         c.Transport.Codec,
		LaunchTimeout: c.Plugin.LaunchTimeout,
		LockupTimeout: c.Plugin.LockupTimeout,
		ExitTimeout:   c.Plugin.ExitTimeout,
	}
}

// Priority is the configured initial priority.
func (c *Config) Priority() media.Priority {
	p, _ := media.ParsePriority(c.Media.Priority)
	return p
}

// BackgroundColor is the configured texture background.
func (c *Config) BackgroundColor() media.Color {
	b := c.Media.Background
	return media.Color{R: b[0], G: b[1], B: b[2], A: b[3]}
}
