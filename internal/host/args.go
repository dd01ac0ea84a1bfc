package host

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/chronologos/mediaplug/internal/transport"
)

// Config holds what a plugin host needs to reach its parent.
type Config struct {
	Port      int
	Mode      transport.Mode
	Codec     string
	PluginDir string
	Plugin    string
}

// ParseArgs parses the connection flags a parent passes to its host:
// --port, --mode, --codec, --plugin-dir and --plugin.
func ParseArgs(args []string) (Config, error) {
	var (
		cfg  Config
		mode string
	)
	fs := flag.NewFlagSet("host", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.Port, "port", 0, "parent listener port")
	fs.StringVar(&mode, "mode", "quic", "transport: quic or tcp")
	fs.StringVar(&cfg.Codec, "codec", "", "wire codec: msgpack or cbor")
	fs.StringVar(&cfg.PluginDir, "plugin-dir", "", "plugin directory")
	fs.StringVar(&cfg.Plugin, "plugin", "", "plugin to load")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, errors.New("--port is required")
	}
	m, err := transport.ParseMode(mode)
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = m
	return cfg, nil
}
