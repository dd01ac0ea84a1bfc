package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chronologos/mediaplug/internal/media"
)

const frameInterval = time.Second / 60

var (
	errLaunchFailed = errors.New("plugin failed to launch")
	errPluginDied   = errors.New("plugin died")
)

// player logs controller events and starts playback once media is loaded.
type player struct {
	log     *slog.Logger
	started bool
	failed  chan error
}

func (p *player) HandleMediaEvent(c *media.Controller, ev media.Event) {
	switch ev {
	case media.EventContentUpdated, media.EventTimeDurationUpdated:
		// Too frequent to log; the frame loop reports damage.
	case media.EventSizeChanged:
		w, h := c.MediaSize()
		p.log.Info("size changed", "width", w, "height", h,
			"texture_width", c.TextureWidth(), "texture_height", c.TextureHeight())
	case media.EventStatusChanged:
		st := c.Status()
		p.log.Info("status", "status", st)
		if st == media.StatusLoaded && !p.started && c.SupportsMediaTime() {
			p.started = true
			c.Start(1)
		}
	case media.EventNavigateComplete:
		b := c.Browser()
		p.log.Info("navigate complete", "uri", b.NavigateURI, "code", b.NavigateResultCode, "result", b.NavigateResultString)
	case media.EventLocationChanged:
		p.log.Info("location", "uri", c.Browser().Location)
	case media.EventNameChanged:
		name, artist := c.MediaName()
		p.log.Info("name", "name", name, "artist", artist)
	case media.EventDebugMessage:
		text, level := c.DebugMessage()
		p.log.Info("plugin debug", "text", text, "level", level)
	case media.EventPluginFailedLaunch:
		p.fail(errLaunchFailed)
	case media.EventPluginFailed:
		p.fail(errPluginDied)
	default:
		p.log.Debug("event", "event", ev)
	}
}

func (p *player) fail(err error) {
	select {
	case p.failed <- err:
	default:
	}
}

// play runs one controller at 60 Hz until ctx is done or the plugin fails.
func play(ctx context.Context, opts playOptions, log *slog.Logger) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	var hostArgs []string
	if opts.cfg.Plugin.Launcher == "" {
		hostArgs = []string{"host"}
	}
	spec := opts.cfg.LaunchSpec(self, hostArgs...)

	p := &player{log: log, failed: make(chan error, 1)}
	c := media.New(p, opts.cfg.Controller(log))
	defer c.Close()

	c.SetPriority(opts.priority)
	c.SetSize(opts.width, opts.height)
	c.SetAutoScale(opts.cfg.Media.AutoScale)
	c.SetBackgroundColor(opts.cfg.BackgroundColor())

	log.Info("launching plugin", "launcher", spec.Launcher, "plugin", spec.File, "mode", spec.Mode, "codec", spec.Codec)
	if err := c.Init(spec); err != nil {
		return err
	}
	c.InjectOpenIDCookie()
	if opts.uri != "" {
		c.LoadURI(opts.uri)
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	stats := time.NewTicker(5 * time.Second)
	defer stats.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping", "frames", frames)
			return nil
		case err := <-p.failed:
			return err
		case <-stats.C:
			tm := c.Timing()
			log.Info("stats", "frames", frames, "cpu", c.CPUUsage(), "queued", c.QueueLen(),
				"time", tm.CurrentTime, "duration", tm.Duration, "status", c.Status())
		case <-ticker.C:
			c.Idle()
			if r, ok := c.Dirty(); ok && c.TextureValid() {
				frames++
				log.Debug("frame", "dirty", r)
				c.ResetDirty()
			}
		}
	}
}
