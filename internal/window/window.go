// Package window is the seam between the orchestrator and the desktop
// windowing toolkit. The orchestrator only ever addresses windows through
// these interfaces; the toolkit adapter lives outside this module.
package window

// Kind classifies a surface for the toolkit adapter.
type Kind string

const (
	KindMain       Kind = "main"
	KindBackground Kind = "background"
	KindPIP        Kind = "pip"
	KindCompanion  Kind = "companion"
)

// Options describes the surface a component asks the toolkit to open.
type Options struct {
	Kind   Kind
	URL    string
	Title  string
	Width  int
	Height int
	// X/Y position the window; negative values mean offsets from the
	// right/bottom screen edge (PIP windows sit near a corner).
	X int
	Y int

	Frameless    bool
	AlwaysOnTop  bool
	AspectLocked bool
	SkipTaskbar  bool
	Hidden       bool
	Muted        bool
}

// Window is one open surface. Each window is owned by exactly one
// component; nothing else may close or focus it directly.
type Window interface {
	// ID identifies the window for logging and diagnostics.
	ID() string
	// Focus brings the window to the foreground, restoring it if
	// minimized or hidden.
	Focus() error
	// Close tears the window down. Closing an already-closed window is a
	// no-op.
	Close() error
	// Closed reports whether the window has been torn down.
	Closed() bool
	// OnClosed registers a hook fired exactly once when the window goes
	// away for any reason, including the user clicking the OS close
	// button. Registering after close fires the hook immediately.
	OnClosed(fn func())
}

// Tray is the system tray affordance.
type Tray interface {
	SetTooltip(text string)
	// OnActivate fires when the user clicks the tray icon.
	OnActivate(fn func())
	// OnExit fires when the user picks the Exit menu action.
	OnExit(fn func())
	Close() error
}

// Host creates surfaces. Implemented by the desktop toolkit layer.
type Host interface {
	Open(opts Options) (Window, error)
	NewTray(tooltip string) (Tray, error)
	// OnAllWindowsClosed registers the toolkit's window-all-closed
	// notification.
	OnAllWindowsClosed(fn func())
}

// PIPOptions returns the standard floating player surface for a stream
// handle: frameless, aspect-locked 16:9, always on top, excluded from the
// taskbar, parked near the bottom-right corner.
func PIPOptions(channel, handle string) Options {
	return Options{
		Kind:         KindPIP,
		URL:          handle,
		Title:        channel,
		Width:        480,
		Height:       270,
		X:            -60,
		Y:            -90,
		Frameless:    true,
		AlwaysOnTop:  true,
		AspectLocked: true,
		SkipTaskbar:  true,
	}
}

// CompanionOptions returns the hidden, always-muted automation surface
// for a channel's live page.
func CompanionOptions(channel, pageURL string) Options {
	return Options{
		Kind:   KindCompanion,
		URL:    pageURL,
		Title:  channel,
		Hidden: true,
		Muted:  true,
	}
}
