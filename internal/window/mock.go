package window

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// FakeHost is an in-process Host used by tests across packages.
type FakeHost struct {
	mu      sync.Mutex
	seq     int
	windows []*FakeWindow
	tray    *FakeTray

	allClosed func()

	// OpenErr, when set, makes Open fail. Simulates toolkit failures.
	OpenErr error
	// OpenErrFor fails opens of one kind only, e.g. just companions.
	OpenErrFor map[Kind]error
}

// NewFakeHost creates an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{}
}

// Open records and returns a new fake window.
func (h *FakeHost) Open(opts Options) (Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.OpenErr != nil {
		return nil, h.OpenErr
	}
	if err := h.OpenErrFor[opts.Kind]; err != nil {
		return nil, err
	}
	h.seq++
	w := &FakeWindow{id: fmt.Sprintf("%s-%d", opts.Kind, h.seq), opts: opts}
	h.windows = append(h.windows, w)
	return w, nil
}

// NewTray returns the fake tray, creating it on first use.
func (h *FakeHost) NewTray(tooltip string) (Tray, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tray = &FakeTray{tooltip: tooltip}
	return h.tray, nil
}

// OnAllWindowsClosed records the hook; tests fire it via AllWindowsClosed.
func (h *FakeHost) OnAllWindowsClosed(fn func()) {
	h.mu.Lock()
	h.allClosed = fn
	h.mu.Unlock()
}

// AllWindowsClosed simulates the toolkit's window-all-closed event.
func (h *FakeHost) AllWindowsClosed() {
	h.mu.Lock()
	fn := h.allClosed
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Windows returns every window ever opened, including closed ones.
func (h *FakeHost) Windows() []*FakeWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*FakeWindow(nil), h.windows...)
}

// OpenCount returns how many windows of the given kind are currently open.
func (h *FakeHost) OpenCount(kind Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, w := range h.windows {
		if w.opts.Kind == kind && !w.Closed() {
			n++
		}
	}
	return n
}

// Tray returns the fake tray, if created.
func (h *FakeHost) Tray() *FakeTray {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tray
}

// FakeWindow is an in-memory Window. It doubles as an automation surface:
// tests load HTML into it and record clicks.
type FakeWindow struct {
	id   string
	opts Options

	mu       sync.Mutex
	closed   bool
	onClosed []func()
	focused  int

	html   string
	clicks []string
}

// ID implements Window.
func (w *FakeWindow) ID() string { return w.id }

// Opts returns the options the window was opened with.
func (w *FakeWindow) Opts() Options { return w.opts }

// Focus implements Window.
func (w *FakeWindow) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("window %s closed", w.id)
	}
	w.focused++
	return nil
}

// FocusCount returns how often the window was focused.
func (w *FakeWindow) FocusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Close implements Window; idempotent, fires OnClosed hooks once.
func (w *FakeWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	hooks := w.onClosed
	w.onClosed = nil
	w.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Closed implements Window.
func (w *FakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// OnClosed implements Window.
func (w *FakeWindow) OnClosed(fn func()) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		fn()
		return
	}
	w.onClosed = append(w.onClosed, fn)
	w.mu.Unlock()
}

// UserClose simulates the user clicking the OS close button.
func (w *FakeWindow) UserClose() {
	_ = w.Close()
}

// SetHTML loads page content into the fake surface.
func (w *FakeWindow) SetHTML(html string) {
	w.mu.Lock()
	w.html = html
	w.mu.Unlock()
}

// Document implements the automation surface.
func (w *FakeWindow) Document(ctx context.Context) (*goquery.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("window %s closed", w.id)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(w.html))
}

// Click implements the automation surface, recording the selector.
func (w *FakeWindow) Click(ctx context.Context, selector string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("window %s closed", w.id)
	}
	w.clicks = append(w.clicks, selector)
	return nil
}

// Clicks returns every selector clicked so far.
func (w *FakeWindow) Clicks() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.clicks...)
}

// FakeTray is an in-memory Tray.
type FakeTray struct {
	mu       sync.Mutex
	tooltip  string
	activate func()
	exit     func()
	closed   bool
}

// SetTooltip implements Tray.
func (t *FakeTray) SetTooltip(text string) {
	t.mu.Lock()
	t.tooltip = text
	t.mu.Unlock()
}

// Tooltip returns the current tooltip.
func (t *FakeTray) Tooltip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tooltip
}

// OnActivate implements Tray.
func (t *FakeTray) OnActivate(fn func()) {
	t.mu.Lock()
	t.activate = fn
	t.mu.Unlock()
}

// OnExit implements Tray.
func (t *FakeTray) OnExit(fn func()) {
	t.mu.Lock()
	t.exit = fn
	t.mu.Unlock()
}

// Close implements Tray.
func (t *FakeTray) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Activate simulates a tray icon click.
func (t *FakeTray) Activate() {
	t.mu.Lock()
	fn := t.activate
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Exit simulates the Exit menu action.
func (t *FakeTray) Exit() {
	t.mu.Lock()
	fn := t.exit
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
