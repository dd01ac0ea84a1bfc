package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/chronologos/mediaplug/internal/auth"
	"github.com/chronologos/mediaplug/internal/config"
	"github.com/chronologos/mediaplug/internal/host"
	"github.com/chronologos/mediaplug/internal/media"
	"github.com/chronologos/mediaplug/internal/version"
)

// globalFlags holds double-dash flags parsed from os.Args before dispatch.
// rest contains the remaining arguments with global flags stripped.
type globalFlags struct {
	version bool
	tcp     bool
	debug   bool
	codec   string
	rest    []string
}

// parseGlobalFlags extracts double-dash flags from args. Everything after
// the host subcommand belongs to the host, whose --codec is not ours.
func parseGlobalFlags(args []string) globalFlags {
	var g globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "host" && len(g.rest) == 0:
			g.rest = append(g.rest, args[i:]...)
			return g
		case arg == "--version":
			g.version = true
		case arg == "--tcp":
			g.tcp = true
		case arg == "--debug":
			g.debug = true
		case arg == "--codec" && i+1 < len(args):
			i++
			g.codec = args[i]
		case strings.HasPrefix(arg, "--codec="):
			g.codec, _ = strings.CutPrefix(arg, "--codec=")
		default:
			g.rest = append(g.rest, arg)
		}
	}
	return g
}

func main() {
	gf := parseGlobalFlags(os.Args[1:])

	if gf.version || (len(gf.rest) > 0 && gf.rest[0] == "version") {
		fmt.Printf("mediaplug %s\n", version.String())
		os.Exit(0)
	}

	if len(gf.rest) == 0 {
		usage()
		os.Exit(1)
	}
	switch gf.rest[0] {
	case "host":
		runHost(gf.rest[1:])
	case "play":
		runPlay(gf, gf.rest[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mediaplug [--tcp] [--codec=msgpack|cbor] [--debug] play [--config file] [--uri uri] [--size WxH] [--priority p] [--duration d]")
	fmt.Fprintln(os.Stderr, "       mediaplug host --port <port> [--mode quic|tcp] [--codec c] [--plugin name]")
	fmt.Fprintln(os.Stderr, "       mediaplug version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "flags:")
	fmt.Fprintln(os.Stderr, "  --version        print version and exit")
	fmt.Fprintln(os.Stderr, "  --tcp            use TCP+TLS between parent and plugin instead of QUIC")
	fmt.Fprintln(os.Stderr, "  --codec=<name>   envelope codec: msgpack (default) or cbor")
	fmt.Fprintln(os.Stderr, "  --debug          debug logging")
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// runHost serves a parent as its plugin host. The launch key arrives on
// stdin; the parent relays our stderr into its own log.
func runHost(args []string) {
	cfg, err := host.ParseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	key, err := auth.ReadKey(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading launch key from stdin: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := host.New(cfg, key, log).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "host exited: %v\n", err)
		os.Exit(1)
	}
}

func parseSize(s string) (w, h int, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	if w, err = strconv.Atoi(ws); err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if h, err = strconv.Atoi(hs); err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}

// playOptions are the play flags layered over the config file.
type playOptions struct {
	cfg      *config.Config
	uri      string
	width    int
	height   int
	priority media.Priority
	duration time.Duration
}

func parsePlay(gf globalFlags, args []string) (playOptions, error) {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	uri := fs.String("uri", "", "URI to load (overrides media.uri)")
	size := fs.String("size", "", "media size WxH (overrides media.width/height)")
	prio := fs.String("priority", "", "initial priority (overrides media.priority)")
	duration := fs.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return playOptions{}, err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return playOptions{}, err
		}
	}
	if gf.tcp {
		cfg.Transport.Mode = "tcp"
	}
	if gf.codec != "" {
		cfg.Transport.Codec = gf.codec
	}
	if *uri != "" {
		cfg.Media.URI = *uri
	}
	if *prio != "" {
		cfg.Media.Priority = *prio
	}
	if *size != "" {
		w, h, err := parseSize(*size)
		if err != nil {
			return playOptions{}, err
		}
		cfg.Media.Width, cfg.Media.Height = w, h
	}
	if err := cfg.Validate(); err != nil {
		return playOptions{}, err
	}
	return playOptions{
		cfg:      cfg,
		uri:      cfg.Media.URI,
		width:    cfg.Media.Width,
		height:   cfg.Media.Height,
		priority: cfg.Priority(),
		duration: *duration,
	}, nil
}

func runPlay(gf globalFlags, args []string) {
	opts, err := parsePlay(gf, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log := newLogger(gf.debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if err := play(ctx, opts, log); err != nil {
		log.Error("play failed", "err", err)
		os.Exit(1)
	}
}
