// Package coordinator is the always-resident hub between the pollers, the
// session registry and the UI surfaces.
//
// It owns the hidden background window, schedules one cancellable liveness
// watch per open session, and rebroadcasts lifecycle events so the main
// window stays consistent even though sessions live in windows it did not
// create.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
	"github.com/pipcast/backend/internal/prefs"
	"github.com/pipcast/backend/internal/session"
	"github.com/pipcast/backend/internal/twitch"
	"github.com/pipcast/backend/internal/window"
)

// Poller answers single liveness queries. Implemented by the twitch
// client; failures arrive as StateUnknown, never as errors.
type Poller interface {
	CheckLive(ctx context.Context, login string) twitch.Status
}

// Broadcaster fans an event out to every connected UI surface.
type Broadcaster interface {
	Broadcast(msgType string, payload map[string]any)
}

// Config holds coordinator timing.
type Config struct {
	// WatchInterval is the cadence of the per-session liveness watch.
	WatchInterval time.Duration
	// PollTimeout bounds one status query; expiry counts as a failed
	// query and is treated like offline.
	PollTimeout time.Duration
}

// Coordinator implements the background hub.
type Coordinator struct {
	poller   Poller
	registry *session.Registry
	prefs    *prefs.Store
	host     window.Host
	metrics  *monitoring.Metrics
	log      *logging.Logger
	cfg      Config

	mu         sync.Mutex
	hub        Broadcaster
	watchers   map[string]context.CancelFunc
	background window.Window
}

// New creates the coordinator and hooks it into the registry's lifecycle
// events.
func New(cfg Config, poller Poller, registry *session.Registry, store *prefs.Store, host window.Host, metrics *monitoring.Metrics, log *logging.Logger) *Coordinator {
	if cfg.WatchInterval == 0 {
		cfg.WatchInterval = 20 * time.Second
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	c := &Coordinator{
		poller:   poller,
		registry: registry,
		prefs:    store,
		host:     host,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
		watchers: make(map[string]context.CancelFunc),
	}
	registry.SetNotify(c.handleSessionEvent)
	return c
}

// SetBroadcaster installs the UI fan-out sink. Wired once at startup.
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.mu.Lock()
	c.hub = b
	c.mu.Unlock()
}

// EnsureBackground (re)creates the hidden background window if it does not
// currently exist. Called at startup and whenever the app is reactivated.
func (c *Coordinator) EnsureBackground() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.background != nil && !c.background.Closed() {
		return nil
	}
	win, err := c.host.Open(window.Options{Kind: window.KindBackground, Hidden: true})
	if err != nil {
		return err
	}
	c.background = win
	c.log.Debug("background window created", zap.String("window", win.ID()))
	return nil
}

// CheckPrimary polls the roster's primary channel while nothing is open.
// The caller decides how to surface an offline result.
func (c *Coordinator) CheckPrimary(ctx context.Context) bool {
	primary, ok := c.prefs.Primary()
	if !ok {
		return false
	}
	return c.poll(ctx, primary).Live()
}

// OpenPrimary polls the primary channel and opens its session when live.
func (c *Coordinator) OpenPrimary(ctx context.Context) bool {
	primary, ok := c.prefs.Primary()
	if !ok {
		return false
	}
	return c.Open(ctx, primary)
}

// Open polls a channel and, when live, creates (or focuses) its session.
// The result reports whether a session is open afterwards.
func (c *Coordinator) Open(ctx context.Context, channel string) bool {
	st := c.poll(ctx, channel)
	if !st.Live() {
		return false
	}
	if _, err := c.registry.Create(ctx, channel, st.Handle, c.prefs.Snapshot()); err != nil {
		c.log.Error("create session", zap.String("channel", channel), zap.Error(err))
		return false
	}
	return true
}

// CheckChannel polls a channel that has an open session and reconciles:
// when no longer live, the session is destroyed and the UI notified.
func (c *Coordinator) CheckChannel(ctx context.Context, channel string) bool {
	st := c.poll(ctx, channel)
	if st.Live() {
		return true
	}
	c.reconcileOffline(channel, st)
	return false
}

// Close tears down every session, all watches and the background window.
func (c *Coordinator) Close() {
	c.registry.DestroyAll(session.ReasonShutdown)

	c.mu.Lock()
	for channel, cancel := range c.watchers {
		cancel()
		delete(c.watchers, channel)
	}
	bg := c.background
	c.background = nil
	c.mu.Unlock()

	if bg != nil {
		_ = bg.Close()
	}
}

// reconcileOffline executes the Live-WithSession → Offline transition: an
// offline poll with an open session always destroys it, exactly once.
func (c *Coordinator) reconcileOffline(channel string, st twitch.Status) {
	if st.State == twitch.StateUnknown {
		// Query failures count as offline for decisions, but are logged
		// apart from a genuine offline so diagnostics can tell a flaky
		// upstream from an ended broadcast.
		c.log.Warn("liveness unknown, treating as offline", zap.String("channel", channel))
	}
	if c.registry.Destroy(channel, session.ReasonOffline) {
		c.broadcast("offline_notice", map[string]any{"channel": channel})
	}
}

// poll runs one bounded liveness query and records its outcome.
func (c *Coordinator) poll(ctx context.Context, channel string) twitch.Status {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	start := time.Now()
	st := c.poller.CheckLive(ctx, channel)
	if c.metrics != nil {
		c.metrics.PollsTotal.WithLabelValues(st.State.String()).Inc()
		c.metrics.PollDuration.Observe(time.Since(start).Seconds())
	}
	return st
}

// handleSessionEvent reacts to registry lifecycle events: watches start
// and stop exactly with their session, and every event is relayed to the
// main window.
func (c *Coordinator) handleSessionEvent(ev session.Event) {
	switch ev.Type {
	case session.EventOpened:
		c.startWatch(ev.Channel)
	case session.EventClosed:
		c.stopWatch(ev.Channel)
	}

	payload := map[string]any{"channel": ev.Channel, "session": ev.SessionID}
	if ev.Reason != "" {
		payload["reason"] = ev.Reason
	}
	c.broadcast(string(ev.Type), payload)
}

// startWatch begins the periodic liveness watch for an open session.
func (c *Coordinator) startWatch(channel string) {
	c.mu.Lock()
	if _, exists := c.watchers[channel]; exists {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.watchers[channel] = cancel
	c.mu.Unlock()

	go c.watch(ctx, channel)
}

// stopWatch cancels a channel's watch, if running.
func (c *Coordinator) stopWatch(channel string) {
	c.mu.Lock()
	cancel, ok := c.watchers[channel]
	if ok {
		delete(c.watchers, channel)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// watch polls a session's channel until it goes offline or the watch is
// cancelled by the session's destruction. The ticker dies with the
// session, never orphaned.
func (c *Coordinator) watch(ctx context.Context, channel string) {
	ticker := time.NewTicker(c.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := c.poll(ctx, channel)
			if st.Live() {
				continue
			}
			c.reconcileOffline(channel, st)
			return
		}
	}
}

func (c *Coordinator) broadcast(msgType string, payload map[string]any) {
	c.mu.Lock()
	hub := c.hub
	c.mu.Unlock()
	if hub != nil {
		hub.Broadcast(msgType, payload)
	}
}
