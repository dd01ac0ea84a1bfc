package media

// Status is the last media state reported by the plugin.
type Status int

const (
	StatusNone Status = iota
	StatusLoading
	StatusLoaded
	StatusError
	StatusPlaying
	StatusPaused
	StatusDone
)

var statusNames = [...]string{
	StatusNone:    "none",
	StatusLoading: "loading",
	StatusLoaded:  "loaded",
	StatusError:   "error",
	StatusPlaying: "playing",
	StatusPaused:  "paused",
	StatusDone:    "done",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "none"
}

// ParseStatus maps a media_status payload to a Status. Matching is case
// sensitive; anything unrecognised, including "" and "none", is StatusNone.
func ParseStatus(s string) Status {
	switch s {
	case "loading":
		return StatusLoading
	case "loaded":
		return StatusLoaded
	case "error":
		return StatusError
	case "playing":
		return StatusPlaying
	case "paused":
		return StatusPaused
	case "done":
		return StatusDone
	}
	return StatusNone
}
