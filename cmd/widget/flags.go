package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-tavern/widget/internal/config"
)

// defaultLogFile keeps logs out of the terminal the widget draws on.
const defaultLogFile = "widget.log"

// widgetFlags are persistent flags that override the environment.
type widgetFlags struct {
	apiURL           string
	timeout          time.Duration
	persona          string
	requireSession   bool
	serializeActions bool
	surfaceErrors    bool
	markdown         bool
	logLevel         string
	logFile          string

	changed func(name string) bool
}

func (f *widgetFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.apiURL, "api-url", "", "chatbot service base URL (env CHATBOT_API_URL)")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-request timeout (env CHATBOT_TIMEOUT)")
	pf.StringVar(&f.persona, "persona", "", "persona to request when creating the session (env WIDGET_PERSONA)")
	pf.BoolVar(&f.requireSession, "require-session", true, "refuse actions until a session exists (env WIDGET_REQUIRE_SESSION)")
	pf.BoolVar(&f.serializeActions, "serialize", true, "allow only one request in flight (env WIDGET_SERIALIZE_ACTIONS)")
	pf.BoolVar(&f.surfaceErrors, "show-errors", true, "show a notice when an action fails (env WIDGET_SURFACE_ERRORS)")
	pf.BoolVar(&f.markdown, "markdown", true, "render replies as markdown (env WIDGET_MARKDOWN)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	pf.StringVar(&f.logFile, "log-file", "", "log file path (env LOG_FILE, default "+defaultLogFile+")")

	f.changed = func(name string) bool { return pf.Changed(name) }
}

// apply overlays explicitly set flags on cfg.
func (f *widgetFlags) apply(cfg *config.Config) {
	changed := f.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if changed("api-url") {
		cfg.Widget.APIURL = f.apiURL
	}
	if changed("timeout") {
		cfg.Widget.Timeout = f.timeout
	}
	if changed("persona") {
		cfg.Widget.Persona = f.persona
	}
	if changed("require-session") {
		cfg.Widget.RequireSession = f.requireSession
	}
	if changed("serialize") {
		cfg.Widget.SerializeActions = f.serializeActions
	}
	if changed("show-errors") {
		cfg.Widget.SurfaceErrors = f.surfaceErrors
	}
	if changed("markdown") {
		cfg.Widget.Markdown = f.markdown
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogFile
	}
}
