package window

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipcast/backend/internal/logging"
)

type busRecorder struct {
	mu   sync.Mutex
	msgs []busMsg
}

type busMsg struct {
	typ     string
	payload map[string]any
}

func (b *busRecorder) Broadcast(msgType string, payload map[string]any) {
	b.mu.Lock()
	b.msgs = append(b.msgs, busMsg{typ: msgType, payload: payload})
	b.mu.Unlock()
}

func (b *busRecorder) count(msgType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.msgs {
		if m.typ == msgType {
			n++
		}
	}
	return n
}

func (b *busRecorder) last(msgType string) (busMsg, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.msgs) - 1; i >= 0; i-- {
		if b.msgs[i].typ == msgType {
			return b.msgs[i], true
		}
	}
	return busMsg{}, false
}

func newBridge() (*BridgeHost, *busRecorder) {
	bus := &busRecorder{}
	return NewBridgeHost(bus, logging.NewNop()), bus
}

func TestBridgeOpenBroadcastsCommand(t *testing.T) {
	host, bus := newBridge()

	w, err := host.Open(PIPOptions("alice", "https://player/alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID())
	assert.False(t, w.Closed())

	msg, ok := bus.last("window_open")
	require.True(t, ok)
	assert.Equal(t, w.ID(), msg.payload["window"])
	assert.Equal(t, "pip", msg.payload["kind"])
	assert.Equal(t, "https://player/alice", msg.payload["url"])
	assert.Equal(t, true, msg.payload["frameless"])
	assert.Equal(t, true, msg.payload["alwaysOnTop"])
}

func TestBridgeCloseIsIdempotent(t *testing.T) {
	host, bus := newBridge()

	w, err := host.Open(Options{Kind: KindMain})
	require.NoError(t, err)

	fired := 0
	w.OnClosed(func() { fired++ })

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.True(t, w.Closed())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, bus.count("window_close"))
}

func TestBridgeFocus(t *testing.T) {
	host, bus := newBridge()

	w, err := host.Open(Options{Kind: KindMain})
	require.NoError(t, err)

	require.NoError(t, w.Focus())
	msg, ok := bus.last("window_focus")
	require.True(t, ok)
	assert.Equal(t, w.ID(), msg.payload["window"])

	require.NoError(t, w.Close())
	assert.Error(t, w.Focus())
}

func TestBridgeReportClosed(t *testing.T) {
	host, _ := newBridge()

	w, err := host.Open(Options{Kind: KindPIP})
	require.NoError(t, err)

	fired := 0
	w.OnClosed(func() { fired++ })

	// The adapter reports the user closing the window.
	host.ReportClosed(w.ID())
	assert.True(t, w.Closed())
	assert.Equal(t, 1, fired)

	// Re-reports and unknown ids are ignored.
	host.ReportClosed(w.ID())
	host.ReportClosed("ghost")
	assert.Equal(t, 1, fired)
}

func TestBridgeOnClosedAfterCloseFiresImmediately(t *testing.T) {
	host, _ := newBridge()

	w, err := host.Open(Options{Kind: KindPIP})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fired := false
	w.OnClosed(func() { fired = true })
	assert.True(t, fired)
}

func TestBridgeSnapshotAndClick(t *testing.T) {
	host, bus := newBridge()

	opened, err := host.Open(CompanionOptions("alice", "https://www.twitch.tv/alice"))
	require.NoError(t, err)
	w := opened.(*BridgeWindow)

	_, err = w.Document(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	host.ReportSnapshot(w.ID(), `<button aria-label="Claim Bonus">+50</button>`)
	doc, err := w.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(`button[aria-label="Claim Bonus"]`).Length())

	require.NoError(t, w.Click(context.Background(), `button[aria-label="Claim Bonus"]`))
	msg, ok := bus.last("dom_click")
	require.True(t, ok)
	assert.Equal(t, w.ID(), msg.payload["window"])
	assert.Equal(t, `button[aria-label="Claim Bonus"]`, msg.payload["selector"])
}

func TestBridgeTray(t *testing.T) {
	host, bus := newBridge()

	tray, err := host.NewTray("PipCast")
	require.NoError(t, err)

	msg, ok := bus.last("tray_create")
	require.True(t, ok)
	assert.Equal(t, "PipCast", msg.payload["tooltip"])

	var activated, exited bool
	tray.OnActivate(func() { activated = true })
	tray.OnExit(func() { exited = true })

	host.ReportTrayActivate()
	host.ReportTrayExit()
	assert.True(t, activated)
	assert.True(t, exited)

	require.NoError(t, tray.Close())
	assert.Equal(t, 1, bus.count("tray_destroy"))
}

func TestBridgeAllWindowsClosed(t *testing.T) {
	host, _ := newBridge()

	fired := false
	host.OnAllWindowsClosed(func() { fired = true })
	host.ReportAllClosed()
	assert.True(t, fired)
}
