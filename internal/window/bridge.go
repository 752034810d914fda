package window

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
)

// ErrNoSnapshot reports that the toolkit adapter has not pushed a DOM
// snapshot for a window yet.
var ErrNoSnapshot = errors.New("no dom snapshot available")

// Messenger fans a command out to connected surfaces. Implemented by the
// websocket hub.
type Messenger interface {
	Broadcast(msgType string, payload map[string]any)
}

// BridgeHost is the production Host: window commands go out over the IPC
// hub to the toolkit adapter, and adapter events (window closed, tray
// clicks, DOM snapshots) are routed back in through the Report methods.
type BridgeHost struct {
	bus Messenger
	log *logging.Logger

	mu        sync.Mutex
	windows   map[string]*BridgeWindow
	tray      *BridgeTray
	allClosed func()
}

// NewBridgeHost creates a host publishing on the given bus.
func NewBridgeHost(bus Messenger, log *logging.Logger) *BridgeHost {
	return &BridgeHost{
		bus:     bus,
		log:     log,
		windows: make(map[string]*BridgeWindow),
	}
}

// Open asks the adapter to create a window and returns its local handle.
// The command is fire and forget; adapter failures surface later as a
// window_closed event.
func (h *BridgeHost) Open(opts Options) (Window, error) {
	w := &BridgeWindow{
		id:   uuid.New().String(),
		host: h,
	}
	h.mu.Lock()
	h.windows[w.id] = w
	h.mu.Unlock()

	h.bus.Broadcast("window_open", map[string]any{
		"window":       w.id,
		"kind":         string(opts.Kind),
		"url":          opts.URL,
		"title":        opts.Title,
		"width":        opts.Width,
		"height":       opts.Height,
		"x":            opts.X,
		"y":            opts.Y,
		"frameless":    opts.Frameless,
		"alwaysOnTop":  opts.AlwaysOnTop,
		"aspectLocked": opts.AspectLocked,
		"skipTaskbar":  opts.SkipTaskbar,
		"hidden":       opts.Hidden,
		"muted":        opts.Muted,
	})
	h.log.Debug("window open requested",
		zap.String("window", w.id), zap.String("kind", string(opts.Kind)))
	return w, nil
}

// NewTray asks the adapter to create the tray icon.
func (h *BridgeHost) NewTray(tooltip string) (Tray, error) {
	t := &BridgeTray{host: h}
	h.mu.Lock()
	h.tray = t
	h.mu.Unlock()
	h.bus.Broadcast("tray_create", map[string]any{"tooltip": tooltip})
	return t, nil
}

// OnAllWindowsClosed registers the window-all-closed hook.
func (h *BridgeHost) OnAllWindowsClosed(fn func()) {
	h.mu.Lock()
	h.allClosed = fn
	h.mu.Unlock()
}

// ReportClosed routes an adapter window_closed event to the window's
// hooks. Unknown ids are ignored; the adapter may report our own Close
// back to us.
func (h *BridgeHost) ReportClosed(id string) {
	h.mu.Lock()
	w, ok := h.windows[id]
	if ok {
		delete(h.windows, id)
	}
	h.mu.Unlock()
	if ok {
		w.markClosed()
	}
}

// ReportSnapshot stores the latest DOM snapshot for a companion window.
func (h *BridgeHost) ReportSnapshot(id, html string) {
	h.mu.Lock()
	w, ok := h.windows[id]
	h.mu.Unlock()
	if ok {
		w.setSnapshot(html)
	}
}

// ReportTrayActivate routes a tray click.
func (h *BridgeHost) ReportTrayActivate() {
	h.mu.Lock()
	t := h.tray
	h.mu.Unlock()
	if t != nil {
		t.activate()
	}
}

// ReportTrayExit routes the tray Exit menu action.
func (h *BridgeHost) ReportTrayExit() {
	h.mu.Lock()
	t := h.tray
	h.mu.Unlock()
	if t != nil {
		t.exit()
	}
}

// ReportAllClosed routes the adapter's window-all-closed notification.
func (h *BridgeHost) ReportAllClosed() {
	h.mu.Lock()
	fn := h.allClosed
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *BridgeHost) remove(id string) {
	h.mu.Lock()
	delete(h.windows, id)
	h.mu.Unlock()
}

// BridgeWindow is one adapter-managed window. It also serves as the
// automation surface for companion windows: the adapter pushes DOM
// snapshots in and clicks go back out as commands.
type BridgeWindow struct {
	id   string
	host *BridgeHost

	mu       sync.Mutex
	closed   bool
	hooks    []func()
	snapshot string
}

// ID implements Window.
func (w *BridgeWindow) ID() string { return w.id }

// Focus implements Window.
func (w *BridgeWindow) Focus() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return errors.New("window closed")
	}
	w.host.bus.Broadcast("window_focus", map[string]any{"window": w.id})
	return nil
}

// Close implements Window. The close command is sent and the window is
// treated as gone immediately; the adapter's own window_closed report for
// it becomes a no-op.
func (w *BridgeWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	hooks := w.hooks
	w.hooks = nil
	w.mu.Unlock()

	w.host.bus.Broadcast("window_close", map[string]any{"window": w.id})
	w.host.remove(w.id)
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Closed implements Window.
func (w *BridgeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// OnClosed implements Window. Registering after close fires immediately.
func (w *BridgeWindow) OnClosed(fn func()) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		fn()
		return
	}
	w.hooks = append(w.hooks, fn)
	w.mu.Unlock()
}

// Document parses the adapter's last DOM snapshot of this window.
func (w *BridgeWindow) Document(ctx context.Context) (*goquery.Document, error) {
	w.mu.Lock()
	html := w.snapshot
	w.mu.Unlock()
	if html == "" {
		return nil, ErrNoSnapshot
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Click asks the adapter to click the first element matching selector.
func (w *BridgeWindow) Click(ctx context.Context, selector string) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return errors.New("window closed")
	}
	w.host.bus.Broadcast("dom_click", map[string]any{
		"window":   w.id,
		"selector": selector,
	})
	return nil
}

func (w *BridgeWindow) markClosed() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	hooks := w.hooks
	w.hooks = nil
	w.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (w *BridgeWindow) setSnapshot(html string) {
	w.mu.Lock()
	w.snapshot = html
	w.mu.Unlock()
}

// BridgeTray is the adapter-managed tray icon.
type BridgeTray struct {
	host *BridgeHost

	mu         sync.Mutex
	onActivate func()
	onExit     func()
}

// SetTooltip implements Tray.
func (t *BridgeTray) SetTooltip(text string) {
	t.host.bus.Broadcast("tray_tooltip", map[string]any{"tooltip": text})
}

// OnActivate implements Tray.
func (t *BridgeTray) OnActivate(fn func()) {
	t.mu.Lock()
	t.onActivate = fn
	t.mu.Unlock()
}

// OnExit implements Tray.
func (t *BridgeTray) OnExit(fn func()) {
	t.mu.Lock()
	t.onExit = fn
	t.mu.Unlock()
}

// Close implements Tray.
func (t *BridgeTray) Close() error {
	t.host.bus.Broadcast("tray_destroy", nil)
	return nil
}

func (t *BridgeTray) activate() {
	t.mu.Lock()
	fn := t.onActivate
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *BridgeTray) exit() {
	t.mu.Lock()
	fn := t.onExit
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
