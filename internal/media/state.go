package media

import "image"

// mediaState holds what media class messages report.
type mediaState struct {
	cursor           string
	canCut           bool
	canCopy          bool
	canPaste         bool
	name             string
	artist           string
	hoverText        string
	hoverLink        string
	multipleFilePick bool
	authURL          string
	authRealm        string
	downloadFilename string
	debugText        string
	debugLevel       string
}

// BrowserState is what media_browser messages report.
type BrowserState struct {
	NavigateURI          string
	NavigateResultCode   int
	NavigateResultString string
	HistoryBack          bool
	HistoryForward       bool
	ProgressPercent      int
	StatusText           string
	Location             string
	ErrorPageStatusCode  int

	// Valid after EventClickLinkHref or EventClickLinkNoFollow.
	ClickURL     string
	ClickTarget  string
	ClickNavType string
	// ClickUUID is generated for each click_href and echoed by
	// geometry_change.
	ClickUUID string

	// Valid during EventGeometryChange.
	Geometry image.Rectangle
}

// Timing is what media updated messages report about playback.
type Timing struct {
	CurrentTime    float64
	Duration       float64
	CurrentRate    float64
	LoadedDuration float64
}

func (c *Controller) Browser() BrowserState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser
}

func (c *Controller) Timing() Timing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timing
}

func (c *Controller) CursorName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.cursor
}

// EditState reports which clipboard operations the plugin allows.
func (c *Controller) EditState() (canCut, canCopy, canPaste bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.canCut, c.media.canCopy, c.media.canPaste
}

// MediaName returns the stream title and artist from name_text.
func (c *Controller) MediaName() (name, artist string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.name, c.media.artist
}

// Hover returns the hovered link and its tooltip text.
func (c *Controller) Hover() (link, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.hoverLink, c.media.hoverText
}

func (c *Controller) IsMultipleFilePick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.multipleFilePick
}

// AuthRequest returns the URL and realm of the pending auth_request.
func (c *Controller) AuthRequest() (url, realm string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.authURL, c.media.authRealm
}

func (c *Controller) FileDownloadFilename() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.downloadFilename
}

func (c *Controller) DebugMessage() (text, level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media.debugText, c.media.debugLevel
}
