package media

import "github.com/chronologos/mediaplug/internal/envelope"

// LoadURI asks the plugin to navigate to uri.
func (c *Controller) LoadURI(uri string) {
	c.SendMessage(envelope.New(envelope.ClassMedia, "load_uri").SetString("uri", uri))
}

func (c *Controller) SetCookie(uri, name, value, domain, path string, httpOnly, secure bool) {
	c.SendMessage(envelope.New(envelope.ClassMedia, "set_cookie").
		SetString("uri", uri).
		SetString("name", name).
		SetString("value", value).
		SetString("domain", domain).
		SetString("path", path).
		SetBool("httponly", httpOnly).
		SetBool("secure", secure))
}

// InjectOpenIDCookie sends the configured OpenID cookie, if any, as a
// secure http-only cookie.
func (c *Controller) InjectOpenIDCookie() {
	ck := c.cfg.OpenIDCookie
	if ck.URL == "" {
		return
	}
	c.SetCookie(ck.URL, ck.Name, ck.Value, ck.Host, ck.Path, true, true)
}

// blockingLocked tags e as the answer to a blocking request when the
// plugin is waiting on one.
func (c *Controller) blockingLocked(e *envelope.Envelope) *envelope.Envelope {
	if c.adapter != nil && c.adapter.IsBlocked() {
		e.SetBool("blocking_response", true)
	}
	return e
}

// PickFileResponse answers pick_file with one file. An empty name cancels.
func (c *Controller) PickFileResponse(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(c.blockingLocked(envelope.New(envelope.ClassMedia, "pick_file_response").
		SetString("file", file)))
}

// PickFilesResponse answers a multiple-file pick_file. file carries the
// first entry for plugins that only read one.
func (c *Controller) PickFilesResponse(files []string) {
	var first string
	list := make([]envelope.Value, len(files))
	for i, f := range files {
		list[i] = envelope.String(f)
	}
	if len(files) > 0 {
		first = files[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(c.blockingLocked(envelope.New(envelope.ClassMedia, "pick_file_response").
		SetString("file", first).
		SetStructured("file_list", envelope.Array(list...))))
}

func (c *Controller) AuthResponse(ok bool, username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(c.blockingLocked(envelope.New(envelope.ClassMedia, "auth_response").
		SetBool("ok", ok).
		SetString("username", username).
		SetString("password", password)))
}

func (c *Controller) Cut()   { c.SendMessage(envelope.New(envelope.ClassMedia, "edit_cut")) }
func (c *Controller) Copy()  { c.SendMessage(envelope.New(envelope.ClassMedia, "edit_copy")) }
func (c *Controller) Paste() { c.SendMessage(envelope.New(envelope.ClassMedia, "edit_paste")) }

func (c *Controller) SetUserDataPath(path string) {
	c.SendMessage(envelope.New(envelope.ClassMedia, "set_user_data_path").SetString("path", path))
}

func (c *Controller) SetLanguageCode(lang string) {
	c.SendMessage(envelope.New(envelope.ClassMedia, "set_language_code").SetString("language", lang))
}

func (c *Controller) EnableDebugging(on bool) {
	c.SendMessage(envelope.New(envelope.ClassMedia, "enable_media_plugin_debugging").SetBool("enable", on))
}

// sendLive drops e unless the plugin can take it right now. The JS agent
// events are only meaningful while a page is live.
func (c *Controller) sendLive(e *envelope.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.runningLocked() {
		return
	}
	c.adapter.SendMessage(e)
}

func (c *Controller) JSEnableObject(on bool) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_enable_object").SetBool("enable", on))
}

func (c *Controller) JSAgentLocation(x, y, z float64) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_agent_location").
		SetReal("x", x).SetReal("y", y).SetReal("z", z))
}

func (c *Controller) JSAgentGlobalLocation(x, y, z float64) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_agent_global_location").
		SetReal("x", x).SetReal("y", y).SetReal("z", z))
}

func (c *Controller) JSAgentOrientation(angle float64) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_agent_orientation").SetReal("angle", angle))
}

func (c *Controller) JSAgentLanguage(lang string) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_agent_language").SetString("language", lang))
}

func (c *Controller) JSAgentRegion(region string) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_agent_region").SetString("region", region))
}

func (c *Controller) JSAgentMaturity(maturity string) {
	c.sendLive(envelope.New(envelope.ClassMedia, "js_agent_maturity").SetString("maturity", maturity))
}

// --- media_browser ---

func browserMsg(name string) *envelope.Envelope {
	return envelope.New(envelope.ClassMediaBrowser, name)
}

func (c *Controller) Focus(focused bool) {
	c.SendMessage(browserMsg("focus").SetBool("focused", focused))
}

func (c *Controller) SetPageZoomFactor(factor float64) {
	c.SendMessage(browserMsg("set_page_zoom_factor").SetReal("factor", factor))
}

func (c *Controller) ClearCache()   { c.SendMessage(browserMsg("clear_cache")) }
func (c *Controller) ClearCookies() { c.SendMessage(browserMsg("clear_cookies")) }

func (c *Controller) CookiesEnabled(on bool) {
	c.SendMessage(browserMsg("cookies_enabled").SetBool("enable", on))
}

func (c *Controller) ProxySetup(on bool, host string, port int) {
	c.SendMessage(browserMsg("proxy_setup").
		SetBool("enable", on).
		SetString("host", host).
		SetS32("port", int32(port)))
}

func (c *Controller) BrowseStop() { c.SendMessage(browserMsg("browse_stop")) }

func (c *Controller) BrowseReload(ignoreCache bool) {
	c.SendMessage(browserMsg("browse_reload").SetBool("ignore_cache", ignoreCache))
}

func (c *Controller) BrowseForward() { c.SendMessage(browserMsg("browse_forward")) }
func (c *Controller) BrowseBack()    { c.SendMessage(browserMsg("browse_back")) }

func (c *Controller) SetUserAgent(ua string) {
	c.SendMessage(browserMsg("set_user_agent").SetString("user_agent", ua))
}

func (c *Controller) ShowWebInspector(show bool) {
	c.SendMessage(browserMsg("show_web_inspector").SetBool("show", show))
}

func (c *Controller) ProxyWindowOpened(target, uuid string) {
	c.SendMessage(browserMsg("proxy_window_opened").
		SetString("target", target).
		SetString("uuid", uuid))
}

func (c *Controller) ProxyWindowClosed(uuid string) {
	c.SendMessage(browserMsg("proxy_window_closed").SetString("uuid", uuid))
}

func (c *Controller) IgnoreSSLCertErrors(ignore bool) {
	c.SendMessage(browserMsg("ignore_ssl_cert_errors").SetBool("ignore", ignore))
}

func (c *Controller) AddCertificateFilePath(path string) {
	c.SendMessage(browserMsg("add_certificate_file_path").SetString("path", path))
}

func (c *Controller) SetPreferredFont(family string) {
	c.SendMessage(browserMsg("preferred_font").SetString("font_family", family))
}

func (c *Controller) SetMinimumFontSize(size int) {
	c.SendMessage(browserMsg("minimum_font_size").SetS32("size", int32(size)))
}

func (c *Controller) SetDefaultFontSize(size int) {
	c.SendMessage(browserMsg("default_font_size").SetS32("size", int32(size)))
}

func (c *Controller) SetRemoteFontsEnabled(on bool) {
	c.SendMessage(browserMsg("remote_fonts").SetBool("enable", on))
}

func (c *Controller) SetPluginsEnabled(on bool) {
	c.SendMessage(browserMsg("plugins_enabled").SetBool("enable", on))
}

func (c *Controller) SetJavascriptEnabled(on bool) {
	c.SendMessage(browserMsg("javascript_enabled").SetBool("enable", on))
}

// InitializeURLHistory seeds the browser's history, normally an array of
// URL strings.
func (c *Controller) InitializeURLHistory(history envelope.Value) {
	if !history.IsStructured() {
		history = envelope.Array()
	}
	c.SendMessage(browserMsg("init_history").SetStructured("history", history))
}
