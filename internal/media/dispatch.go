package media

import (
	"image"

	"github.com/google/uuid"

	"github.com/chronologos/mediaplug/internal/envelope"
)

// handler applies one plugin message. Handlers read every key they need
// before touching state, so a malformed message changes nothing.
type handler func(c *Controller, e *envelope.Envelope) error

type messageKey struct{ class, name string }

var handlers = map[messageKey]handler{
	{envelope.ClassMedia, "texture_params"}:       (*Controller).onTextureParams,
	{envelope.ClassMedia, "updated"}:              (*Controller).onUpdated,
	{envelope.ClassMedia, "media_status"}:         (*Controller).onMediaStatus,
	{envelope.ClassMedia, "size_change_request"}:  (*Controller).onSizeChangeRequest,
	{envelope.ClassMedia, "size_change_response"}: (*Controller).onSizeChangeResponse,
	{envelope.ClassMedia, "cursor_changed"}:       (*Controller).onCursorChanged,
	{envelope.ClassMedia, "edit_state"}:           (*Controller).onEditState,
	{envelope.ClassMedia, "name_text"}:            (*Controller).onNameText,
	{envelope.ClassMedia, "tooltip_text"}:         (*Controller).onTooltipText,
	{envelope.ClassMedia, "pick_file"}:            (*Controller).onPickFile,
	{envelope.ClassMedia, "auth_request"}:         (*Controller).onAuthRequest,
	{envelope.ClassMedia, "file_download"}:        (*Controller).onFileDownload,
	{envelope.ClassMedia, "debug_message"}:        (*Controller).onDebugMessage,

	{envelope.ClassMediaBrowser, "navigate_begin"}:      (*Controller).onNavigateBegin,
	{envelope.ClassMediaBrowser, "navigate_complete"}:   (*Controller).onNavigateComplete,
	{envelope.ClassMediaBrowser, "progress"}:            (*Controller).onProgress,
	{envelope.ClassMediaBrowser, "status_text"}:         (*Controller).onStatusText,
	{envelope.ClassMediaBrowser, "location_changed"}:    (*Controller).onLocationChanged,
	{envelope.ClassMediaBrowser, "click_href"}:          (*Controller).onClickHref,
	{envelope.ClassMediaBrowser, "click_nofollow"}:      (*Controller).onClickNoFollow,
	{envelope.ClassMediaBrowser, "navigate_error_page"}: (*Controller).onNavigateErrorPage,
	{envelope.ClassMediaBrowser, "close_request"}:       (*Controller).onCloseRequest,
	{envelope.ClassMediaBrowser, "geometry_change"}:     (*Controller).onGeometryChange,
	{envelope.ClassMediaBrowser, "link_hovered"}:        (*Controller).onLinkHovered,
}

// dispatchLocked routes a plugin message. Unknown messages, including
// everything in the media_time class, are logged and dropped.
func (c *Controller) dispatchLocked(e *envelope.Envelope) {
	h, ok := handlers[messageKey{e.Class(), e.Name()}]
	if !ok {
		c.log.Warn("unknown plugin message", "class", e.Class(), "name", e.Name())
		return
	}
	if err := h(c, e); err != nil {
		c.log.Warn("discarding malformed plugin message", "class", e.Class(), "name", e.Name(), "err", err)
	}
}

// fields reads typed values and keeps the first error.
type fields struct {
	e   *envelope.Envelope
	err error
}

func (f *fields) str(key string) string {
	if f.err != nil {
		return ""
	}
	v, err := f.e.String(key)
	f.err = err
	return v
}

func (f *fields) s32(key string) int {
	if f.err != nil {
		return 0
	}
	v, err := f.e.S32(key)
	f.err = err
	return int(v)
}

func (f *fields) s32Or(key string, def int) int {
	if f.err != nil {
		return def
	}
	v, err := f.e.S32Or(key, int32(def))
	f.err = err
	return int(v)
}

func (f *fields) boolOr(key string, def bool) bool {
	if f.err != nil {
		return def
	}
	v, err := f.e.BoolOr(key, def)
	f.err = err
	return v
}

// realOpt reads an optional real, reporting whether it was present.
func (f *fields) realOpt(key string) (float64, bool) {
	if f.err != nil || !f.e.HasValue(key) {
		return 0, false
	}
	v, err := f.e.Real(key)
	f.err = err
	return v, err == nil
}

// --- media class ---

func (c *Controller) onTextureParams(e *envelope.Envelope) error {
	f := fields{e: e}
	tex := textureFormat{
		depth:          f.s32("depth"),
		internalFormat: f.s32("internalformat"),
		format:         f.s32("format"),
		pixelType:      f.s32("type"),
		swapBytes:      f.boolOr("swap_bytes", false),
		coordsOpenGL:   f.boolOr("coords_opengl", false),
	}
	defW := f.s32Or("default_width", 0)
	defH := f.s32Or("default_height", 0)
	downsample := f.boolOr("allow_downsample", false)
	padding := f.s32Or("padding", 0)
	if f.err != nil {
		return f.err
	}

	c.tex = tex
	c.defaultW, c.defaultH = defW, defH
	c.allowDownsample = downsample
	c.padding = padding
	c.setSizeLocked()
	c.paramsReceived = true
	return nil
}

func (c *Controller) onUpdated(e *envelope.Envelope) error {
	f := fields{e: e}
	var rect image.Rectangle
	hasRect := e.HasValue("left")
	if hasRect {
		left, top := f.s32("left"), f.s32("top")
		right, bottom := f.s32("right"), f.s32("bottom")
		// Plugins disagree on which way is up.
		if top < bottom {
			top, bottom = bottom, top
		}
		rect = image.Rect(left, bottom, right, top)
	}
	current, hasCurrent := f.realOpt("current_time")
	duration, hasDuration := f.realOpt("duration")
	rate, hasRate := f.realOpt("current_rate")
	loaded, hasLoaded := f.realOpt("loaded_duration")
	if f.err != nil {
		return f.err
	}

	if hasRect {
		c.dirty = c.dirty.Union(rect)
		c.emit(EventContentUpdated)
	}

	t := &c.timing
	if hasCurrent {
		t.CurrentTime = current
	}
	if hasDuration {
		t.Duration = duration
	}
	if hasRate {
		t.CurrentRate = rate
	}
	if hasLoaded {
		t.LoadedDuration = loaded
	} else {
		t.LoadedDuration = t.Duration
	}

	prevPercent := c.browser.ProgressPercent
	if t.Duration != 0 {
		c.browser.ProgressPercent = int(t.LoadedDuration * 100 / t.Duration)
	}
	if hasCurrent || hasDuration || hasLoaded {
		c.emit(EventTimeDurationUpdated)
	}
	if prevPercent != c.browser.ProgressPercent {
		c.emit(EventProgressUpdated)
	}
	return nil
}

func (c *Controller) onMediaStatus(e *envelope.Envelope) error {
	s, err := e.String("status")
	if err != nil {
		return err
	}
	st := ParseStatus(s)
	c.log.Debug("status", "status", st)
	if st != c.status {
		c.status = st
		c.emit(EventStatusChanged)
	}
	return nil
}

func (c *Controller) onSizeChangeRequest(e *envelope.Envelope) error {
	f := fields{e: e}
	w, h := f.s32("width"), f.s32("height")
	if f.err != nil {
		return f.err
	}
	c.naturalW, c.naturalH = w, h
	c.setSizeLocked()
	return nil
}

// onSizeChangeResponse takes the plugin's sizes as authoritative. Two
// changes in flight cannot be told apart; the last response wins.
func (c *Controller) onSizeChangeResponse(e *envelope.Envelope) error {
	f := fields{e: e}
	texW, texH := f.s32("texture_width"), f.s32("texture_height")
	w, h := f.s32("width"), f.s32("height")
	if f.err != nil {
		return f.err
	}
	c.texW, c.texH = texW, texH
	c.mediaW, c.mediaH = w, h
	c.dirty = image.Rectangle{}
	c.emit(EventSizeChanged)
	return nil
}

func (c *Controller) onCursorChanged(e *envelope.Envelope) error {
	name, err := e.String("name")
	if err != nil {
		return err
	}
	c.media.cursor = name
	c.emit(EventCursorChanged)
	return nil
}

func (c *Controller) onEditState(e *envelope.Envelope) error {
	f := fields{e: e}
	canCut := f.boolOr("cut", c.media.canCut)
	canCopy := f.boolOr("copy", c.media.canCopy)
	canPaste := f.boolOr("paste", c.media.canPaste)
	if f.err != nil {
		return f.err
	}
	c.media.canCut, c.media.canCopy, c.media.canPaste = canCut, canCopy, canPaste
	return nil
}

func (c *Controller) onNameText(e *envelope.Envelope) error {
	f := fields{e: e}
	name, artist := f.str("name"), f.str("artist")
	back := f.boolOr("history_back_available", false)
	forward := f.boolOr("history_forward_available", false)
	if f.err != nil {
		return f.err
	}
	c.media.name, c.media.artist = name, artist
	c.browser.HistoryBack, c.browser.HistoryForward = back, forward
	c.emit(EventNameChanged)
	return nil
}

func (c *Controller) onTooltipText(e *envelope.Envelope) error {
	tip, err := e.String("tooltip")
	if err != nil {
		return err
	}
	c.media.hoverText = tip
	return nil
}

func (c *Controller) onPickFile(e *envelope.Envelope) error {
	multi, err := e.BoolOr("multiple_files", false)
	if err != nil {
		return err
	}
	c.media.multipleFilePick = multi
	c.emit(EventPickFileRequest)
	return nil
}

func (c *Controller) onAuthRequest(e *envelope.Envelope) error {
	f := fields{e: e}
	url, realm := f.str("url"), f.str("realm")
	if f.err != nil {
		return f.err
	}
	c.media.authURL, c.media.authRealm = url, realm
	c.emit(EventAuthRequest)
	return nil
}

func (c *Controller) onFileDownload(e *envelope.Envelope) error {
	name, err := e.String("filename")
	if err != nil {
		return err
	}
	c.media.downloadFilename = name
	c.emit(EventFileDownload)
	return nil
}

func (c *Controller) onDebugMessage(e *envelope.Envelope) error {
	f := fields{e: e}
	text, level := f.str("message_text"), f.str("message_level")
	if f.err != nil {
		return f.err
	}
	c.media.debugText, c.media.debugLevel = text, level
	c.emit(EventDebugMessage)
	return nil
}

// --- media_browser class ---

func (c *Controller) onNavigateBegin(e *envelope.Envelope) error {
	uri, err := e.String("uri")
	if err != nil {
		return err
	}
	c.browser.NavigateURI = uri
	c.emit(EventNavigateBegin)
	return nil
}

func (c *Controller) onNavigateComplete(e *envelope.Envelope) error {
	f := fields{e: e}
	uri := f.str("uri")
	code := f.s32("result_code")
	result := f.str("result_string")
	back := f.boolOr("history_back_available", false)
	forward := f.boolOr("history_forward_available", false)
	if f.err != nil {
		return f.err
	}
	b := &c.browser
	b.NavigateURI = uri
	b.NavigateResultCode = code
	b.NavigateResultString = result
	b.HistoryBack, b.HistoryForward = back, forward
	c.emit(EventNavigateComplete)
	return nil
}

func (c *Controller) onProgress(e *envelope.Envelope) error {
	pct, err := e.S32("percent")
	if err != nil {
		return err
	}
	c.browser.ProgressPercent = int(pct)
	c.emit(EventProgressUpdated)
	return nil
}

func (c *Controller) onStatusText(e *envelope.Envelope) error {
	s, err := e.String("status")
	if err != nil {
		return err
	}
	c.browser.StatusText = s
	c.emit(EventStatusTextChanged)
	return nil
}

func (c *Controller) onLocationChanged(e *envelope.Envelope) error {
	uri, err := e.String("uri")
	if err != nil {
		return err
	}
	c.browser.Location = uri
	c.emit(EventLocationChanged)
	return nil
}

func (c *Controller) onClickHref(e *envelope.Envelope) error {
	f := fields{e: e}
	uri := f.str("uri")
	target := f.str("target")
	if f.err != nil {
		return f.err
	}
	c.browser.ClickURL = uri
	c.browser.ClickTarget = target
	c.browser.ClickUUID = uuid.NewString()
	c.emit(EventClickLinkHref)
	return nil
}

func (c *Controller) onClickNoFollow(e *envelope.Envelope) error {
	f := fields{e: e}
	uri := f.str("uri")
	navType := f.str("nav_type")
	if f.err != nil {
		return f.err
	}
	c.browser.ClickURL = uri
	c.browser.ClickNavType = navType
	c.browser.ClickTarget = ""
	c.emit(EventClickLinkNoFollow)
	return nil
}

func (c *Controller) onNavigateErrorPage(e *envelope.Envelope) error {
	code, err := e.S32("status_code")
	if err != nil {
		return err
	}
	c.browser.ErrorPageStatusCode = int(code)
	c.emit(EventNavigateErrorPage)
	return nil
}

func (c *Controller) onCloseRequest(*envelope.Envelope) error {
	c.emit(EventCloseRequest)
	return nil
}

func (c *Controller) onGeometryChange(e *envelope.Envelope) error {
	f := fields{e: e}
	id := f.str("uuid")
	x, y := f.s32("x"), f.s32("y")
	w, h := f.s32("width"), f.s32("height")
	if f.err != nil {
		return f.err
	}
	c.browser.ClickUUID = id
	c.browser.Geometry = image.Rect(x, y, x+w, y+h)
	c.emit(EventGeometryChange)
	return nil
}

func (c *Controller) onLinkHovered(e *envelope.Envelope) error {
	f := fields{e: e}
	link := f.str("link")
	title := f.str("title")
	if f.err != nil {
		return f.err
	}
	c.media.hoverLink = link
	c.media.hoverText = title
	c.emit(EventLinkHovered)
	return nil
}
