package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/prefs"
	"github.com/pipcast/backend/internal/window"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestRegistry(t *testing.T) (*Registry, *window.FakeHost, *eventRecorder) {
	t.Helper()
	host := window.NewFakeHost()
	rec := &eventRecorder{}
	r := NewRegistry(Config{
		Host:   host,
		Notify: rec.notify,
	}, logging.NewNop())
	return r, host, rec
}

func TestCreateOpensPIPWindow(t *testing.T) {
	r, host, rec := newTestRegistry(t)

	s, err := r.Create(context.Background(), "alice", "https://player/alice", prefs.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Channel)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.HasCompanion())

	require.Equal(t, 1, host.OpenCount(window.KindPIP))
	opts := host.Windows()[0].Opts()
	assert.Equal(t, "https://player/alice", opts.URL)
	assert.True(t, opts.Frameless)
	assert.True(t, opts.AlwaysOnTop)
	assert.True(t, opts.AspectLocked)
	assert.True(t, opts.SkipTaskbar)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventOpened, events[0].Type)
	assert.Equal(t, "alice", events[0].Channel)
	assert.Equal(t, s.ID, events[0].SessionID)
}

func TestCreateDuplicateFocusesExisting(t *testing.T) {
	r, host, rec := newTestRegistry(t)

	first, err := r.Create(context.Background(), "alice", "h1", prefs.Preferences{})
	require.NoError(t, err)

	second, err := r.Create(context.Background(), "alice", "h2", prefs.Preferences{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, host.OpenCount(window.KindPIP))
	assert.Equal(t, 1, host.Windows()[0].FocusCount())
	assert.Len(t, rec.all(), 1)
}

func TestCreateConcurrentCollapsesToOne(t *testing.T) {
	r, host, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, host.OpenCount(window.KindPIP))
}

func TestCreateWithChannelPointsAttachesCompanion(t *testing.T) {
	r, host, _ := newTestRegistry(t)

	s, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{ChannelPoints: true})
	require.NoError(t, err)
	assert.True(t, s.HasCompanion())
	require.Equal(t, 1, host.OpenCount(window.KindCompanion))

	var comp *window.FakeWindow
	for _, w := range host.Windows() {
		if w.Opts().Kind == window.KindCompanion {
			comp = w
		}
	}
	require.NotNil(t, comp)
	assert.True(t, comp.Opts().Hidden)
	assert.True(t, comp.Opts().Muted)
	assert.Equal(t, "https://www.twitch.tv/alice", comp.Opts().URL)
}

func TestCompanionFailureDegradesSession(t *testing.T) {
	host := window.NewFakeHost()
	host.OpenErrFor = map[window.Kind]error{
		window.KindCompanion: errors.New("toolkit out of surfaces"),
	}
	r := NewRegistry(Config{Host: host}, logging.NewNop())

	// The session opens without its companion rather than failing.
	s, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{ChannelPoints: true})
	require.NoError(t, err)
	assert.False(t, s.HasCompanion())
	assert.Equal(t, 1, r.Len())
}

func TestCreateFailsWhenWindowOpenFails(t *testing.T) {
	host := window.NewFakeHost()
	host.OpenErr = errors.New("toolkit down")
	r := NewRegistry(Config{Host: host}, logging.NewNop())

	_, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{})
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestDestroyClosesAllWindows(t *testing.T) {
	r, host, rec := newTestRegistry(t)

	s, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{ChannelPoints: true})
	require.NoError(t, err)

	assert.True(t, r.Destroy("alice", ReasonUser))

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, host.OpenCount(window.KindPIP))
	assert.Equal(t, 0, host.OpenCount(window.KindCompanion))

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventClosed, events[1].Type)
	assert.Equal(t, ReasonUser, events[1].Reason)
	assert.Equal(t, s.ID, events[1].SessionID)
}

func TestDestroyUnknownChannelIsNoop(t *testing.T) {
	r, _, rec := newTestRegistry(t)
	assert.False(t, r.Destroy("ghost", ReasonUser))
	assert.Empty(t, rec.all())
}

func TestUserClosingWindowDestroysSession(t *testing.T) {
	r, host, rec := newTestRegistry(t)

	_, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{})
	require.NoError(t, err)

	// The OS close button runs the same teardown as a programmatic destroy.
	host.Windows()[0].UserClose()

	assert.Equal(t, 0, r.Len())
	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventClosed, events[1].Type)
	assert.Equal(t, ReasonWindow, events[1].Reason)
}

func TestDestroyAll(t *testing.T) {
	r, host, _ := newTestRegistry(t)

	for _, ch := range []string{"alice", "bob", "carol"} {
		_, err := r.Create(context.Background(), ch, "h", prefs.Preferences{})
		require.NoError(t, err)
	}

	r.DestroyAll(ReasonShutdown)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, host.OpenCount(window.KindPIP))
}

func TestSessionSnapshotIsImmutable(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	s, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{ChannelPoints: true})
	require.NoError(t, err)

	// The snapshot captured at creation does not track later preference
	// changes; only a new session would.
	assert.True(t, s.Prefs.ChannelPoints)
}

func TestGetAndList(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, ok := r.Get("alice")
	assert.False(t, ok)

	created, err := r.Create(context.Background(), "alice", "h", prefs.Preferences{})
	require.NoError(t, err)

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, created, got)
	assert.Len(t, r.List(), 1)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Minute)
}
