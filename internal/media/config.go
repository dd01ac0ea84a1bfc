package media

import "log/slog"

const (
	DefaultLowPrioritySizeLimit = 256
	DefaultMaxTextureDimension  = 4096
)

// OpenIDCookie is injected into browser plugins by InjectOpenIDCookie.
// Nothing is sent while URL is empty.
type OpenIDCookie struct {
	URL   string
	Host  string
	Path  string
	Name  string
	Value string
}

// Config holds process-wide defaults shared by every controller. It is
// copied at construction and never mutated afterwards.
type Config struct {
	Logger *slog.Logger

	// LowPrioritySizeLimit bounds both texture axes at slideshow and low
	// priority when the plugin allows downsampling.
	LowPrioritySizeLimit int

	// HiDPI lifts the MaxTextureDimension clamp.
	HiDPI               bool
	MaxTextureDimension int

	// Target and ZoomFactor are sent with media/init.
	Target     string
	ZoomFactor float64

	OpenIDCookie OpenIDCookie

	NewAdapter AdapterFactory
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.LowPrioritySizeLimit <= 0 {
		c.LowPrioritySizeLimit = DefaultLowPrioritySizeLimit
	}
	if c.MaxTextureDimension <= 0 {
		c.MaxTextureDimension = DefaultMaxTextureDimension
	}
	if c.ZoomFactor <= 0 {
		c.ZoomFactor = 1
	}
	if c.NewAdapter == nil {
		c.NewAdapter = NewProcessAdapter
	}
	return c
}
