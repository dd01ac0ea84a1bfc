package media

import "github.com/chronologos/mediaplug/internal/envelope"

func (c *Controller) Stop()  { c.SendMessage(envelope.New(envelope.ClassMediaTime, "stop")) }
func (c *Controller) Pause() { c.SendMessage(envelope.New(envelope.ClassMediaTime, "pause")) }

// Start begins playback at rate, 1 being normal speed.
func (c *Controller) Start(rate float64) {
	c.SendMessage(envelope.New(envelope.ClassMediaTime, "start").SetReal("rate", rate))
}

// Seek moves playback to t seconds.
func (c *Controller) Seek(t float64) {
	c.SendMessage(envelope.New(envelope.ClassMediaTime, "seek").SetReal("time", t))
}

func (c *Controller) SetLoop(loop bool) {
	c.SendMessage(envelope.New(envelope.ClassMediaTime, "set_loop").SetBool("loop", loop))
}

// SetVolume sends set_volume when v differs from the last requested volume.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == c.volume {
		return
	}
	c.volume = v
	c.sendLocked(envelope.New(envelope.ClassMediaTime, "set_volume").SetReal("volume", v))
}

// Volume is the last requested volume.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// CrashPlugin makes the plugin host exit abnormally. For testing failure
// handling.
func (c *Controller) CrashPlugin() {
	c.SendMessage(envelope.New(envelope.ClassInternal, "crash"))
}

// HangPlugin makes the plugin host stop responding.
func (c *Controller) HangPlugin() {
	c.SendMessage(envelope.New(envelope.ClassInternal, "hang"))
}
