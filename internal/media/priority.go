package media

import (
	"fmt"
	"time"
)

// Priority is a coarse resource hint that drives both the plugin's poll
// interval and texture downscaling. Values are ordered from least to most
// privileged.
type Priority int

const (
	PriorityUnloaded Priority = iota
	PriorityStopped
	PriorityHidden
	PrioritySlideshow
	PriorityLow
	PriorityNormal
	PriorityHigh
)

var priorityNames = [...]string{
	PriorityUnloaded:  "unloaded",
	PriorityStopped:   "stopped",
	PriorityHidden:    "hidden",
	PrioritySlideshow: "slideshow",
	PriorityLow:       "low",
	PriorityNormal:    "normal",
	PriorityHigh:      "high",
}

// String returns the name sent in set_priority.
func (p Priority) String() string {
	if p >= 0 && int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return "UNKNOWN"
}

// ParsePriority is the inverse of String.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if name == s {
			return Priority(p), nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// PollInterval is the plugin scheduling budget for p.
func (p Priority) PollInterval() time.Duration {
	switch p {
	case PriorityLow:
		return time.Second / 25
	case PriorityNormal:
		return time.Second / 50
	case PriorityHigh:
		return time.Second / 100
	default:
		return time.Second
	}
}

// downsamples reports whether p allows shrinking the texture.
func (p Priority) downsamples() bool {
	return p == PrioritySlideshow || p == PriorityLow
}
