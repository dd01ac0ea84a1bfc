package media

// Event is a notification delivered to an EventSink. Details are read back
// from the Controller's getters.
type Event int

const (
	EventContentUpdated Event = iota
	EventTimeDurationUpdated
	EventSizeChanged
	EventCursorChanged
	EventNavigateBegin
	EventNavigateComplete
	EventProgressUpdated
	EventStatusTextChanged
	EventNameChanged
	EventLocationChanged
	EventNavigateErrorPage
	EventClickLinkHref
	EventClickLinkNoFollow
	EventCloseRequest
	EventPickFileRequest
	EventGeometryChange
	EventAuthRequest
	EventLinkHovered
	EventFileDownload
	EventDebugMessage
	EventStatusChanged
	EventPluginFailedLaunch
	EventPluginFailed
)

var eventNames = [...]string{
	EventContentUpdated:      "content_updated",
	EventTimeDurationUpdated: "time_duration_updated",
	EventSizeChanged:         "size_changed",
	EventCursorChanged:       "cursor_changed",
	EventNavigateBegin:       "navigate_begin",
	EventNavigateComplete:    "navigate_complete",
	EventProgressUpdated:     "progress_updated",
	EventStatusTextChanged:   "status_text_changed",
	EventNameChanged:         "name_changed",
	EventLocationChanged:     "location_changed",
	EventNavigateErrorPage:   "navigate_error_page",
	EventClickLinkHref:       "click_link_href",
	EventClickLinkNoFollow:   "click_link_nofollow",
	EventCloseRequest:        "close_request",
	EventPickFileRequest:     "pick_file_request",
	EventGeometryChange:      "geometry_change",
	EventAuthRequest:         "auth_request",
	EventLinkHovered:         "link_hovered",
	EventFileDownload:        "file_download",
	EventDebugMessage:        "debug_message",
	EventStatusChanged:       "status_changed",
	EventPluginFailedLaunch:  "plugin_failed_launch",
	EventPluginFailed:        "plugin_failed",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// EventSink receives controller notifications. It is called without the
// controller lock held, so it may call back into the controller.
type EventSink interface {
	HandleMediaEvent(c *Controller, ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(c *Controller, ev Event)

func (f EventSinkFunc) HandleMediaEvent(c *Controller, ev Event) { f(c, ev) }
