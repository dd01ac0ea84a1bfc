package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/chronologos/mediaplug/internal/media"
	"github.com/chronologos/mediaplug/internal/protocol"
	"github.com/chronologos/mediaplug/internal/transport"
)

// isEmpty reports whether a decode error only means the file had no
// document.
func isEmpty(err error) bool {
	return errors.Is(err, io.EOF)
}

// Validate returns the first out-of-range setting.
func (c *Config) Validate() error {
	if err := c.Plugin.Validate(); err != nil {
		return fmt.Errorf("plugin config: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}
	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media config: %w", err)
	}
	if c.OpenIDCookie.URL != "" && c.OpenIDCookie.Name == "" {
		return fmt.Errorf("openid_cookie config: name is required when url is set")
	}
	return nil
}

func (p *PluginConfig) Validate() error {
	if p.LaunchTimeout < 0 || p.LockupTimeout < 0 || p.ExitTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (t *TransportConfig) Validate() error {
	if _, err := transport.ParseMode(t.Mode); err != nil {
		return err
	}
	if _, err := protocol.CodecByName(t.Codec); err != nil {
		return err
	}
	return nil
}

func (m *MediaConfig) Validate() error {
	if m.ZoomFactor <= 0 {
		return fmt.Errorf("zoom_factor must be positive, got %v", m.ZoomFactor)
	}
	if m.LowPrioritySizeLimit < 1 {
		return fmt.Errorf("low_priority_size_limit must be positive, got %d", m.LowPrioritySizeLimit)
	}
	if m.MaxTextureDimension < 1 {
		return fmt.Errorf("max_texture_dimension must be positive, got %d", m.MaxTextureDimension)
	}
	if _, err := media.ParsePriority(m.Priority); err != nil {
		return err
	}
	if m.Width < 0 || m.Height < 0 {
		return fmt.Errorf("width and height must not be negative, got %dx%d", m.Width, m.Height)
	}
	for i, v := range m.Background {
		if v < 0 || v > 1 {
			return fmt.Errorf("background[%d] must be in [0, 1], got %v", i, v)
		}
	}
	return nil
}
