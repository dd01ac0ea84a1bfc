// Package coalesce batches frame damage into fewer "updated" messages.
//
// A plugin that redraws on every playback tick would otherwise send one
// message per damaged rectangle. The Coalescer unions rectangles and
// flushes when:
//
//   - the deadline expires (measured from the first rectangle in a batch,
//     NOT reset by later adds: deadline semantics, not debounce)
//   - the union covers the whole frame, so nothing more can be added
//   - Flush() is called explicitly at resize or shutdown boundaries
package coalesce

import (
	"image"
	"time"
)

// DefaultDelay is the coalescing deadline from the first rectangle in a batch.
const DefaultDelay = 16 * time.Millisecond

// Coalescer accumulates dirty rectangles and flushes on deadline or full
// coverage. All methods are used from a single goroutine (the select loop).
type Coalescer struct {
	frame image.Rectangle
	dirty image.Rectangle
	delay time.Duration
	timer *time.Timer
	armed bool // true when timer is running
}

// New creates a Coalescer for a frame of the given bounds. A non-positive
// delay selects DefaultDelay.
func New(frame image.Rectangle, delay time.Duration) *Coalescer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	t := time.NewTimer(0)
	// Drain the initial fire from NewTimer(0) so Timer() starts clean
	if !t.Stop() {
		<-t.C
	}
	return &Coalescer{frame: frame, delay: delay, timer: t}
}

// Add unions r (clipped to the frame) into the pending damage. Returns true
// when the pending damage covers the whole frame and the caller should
// flush immediately.
func (c *Coalescer) Add(r image.Rectangle) bool {
	r = r.Intersect(c.frame)
	if r.Empty() {
		return false
	}

	// Arm timer on first rectangle in batch
	if c.dirty.Empty() && !c.armed {
		c.timer.Reset(c.delay)
		c.armed = true
	}

	c.dirty = c.dirty.Union(r)
	return c.dirty.Eq(c.frame)
}

// Flush returns the pending damage and resets it. ok is false when nothing
// was pending.
func (c *Coalescer) Flush() (r image.Rectangle, ok bool) {
	if c.dirty.Empty() {
		return image.Rectangle{}, false
	}

	// Stop timer (don't leak)
	if c.armed {
		if !c.timer.Stop() {
			// Timer already fired; drain the channel so it doesn't
			// trigger a spurious select case later.
			select {
			case <-c.timer.C:
			default:
			}
		}
		c.armed = false
	}

	r = c.dirty
	c.dirty = image.Rectangle{}
	return r, true
}

// Resize changes the frame bounds and drops pending damage, which referred
// to the old geometry.
func (c *Coalescer) Resize(frame image.Rectangle) {
	c.Flush()
	c.frame = frame
}

// Timer returns the channel that fires when the coalescing deadline expires.
// Use this in a select statement:
//
//	case <-coal.Timer():
//	    r, _ := coal.Flush()
//	    // send updated
//
// Returns a nil channel when no deadline is active (nil channels block forever
// in select, effectively disabling the case).
func (c *Coalescer) Timer() <-chan time.Time {
	if !c.armed {
		return nil
	}
	return c.timer.C
}

// Stop releases the timer. Call in defer when done with the Coalescer.
func (c *Coalescer) Stop() {
	c.timer.Stop()
	c.armed = false
}

// Pending returns the pending damage.
func (c *Coalescer) Pending() image.Rectangle {
	return c.dirty
}
