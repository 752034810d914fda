// Package session tracks open PIP sessions, at most one per channel.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/automation"
	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
	"github.com/pipcast/backend/internal/prefs"
	"github.com/pipcast/backend/internal/window"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventOpened EventType = "session_opened"
	EventClosed EventType = "session_closed"
)

// Close reasons, carried on EventClosed.
const (
	ReasonUser     = "user"
	ReasonOffline  = "offline"
	ReasonWindow   = "window"
	ReasonShutdown = "shutdown"
)

// Event is emitted on every effective Create and Destroy so other windows
// can react.
type Event struct {
	Type      EventType
	Channel   string
	SessionID string
	// Reason is set on EventClosed only.
	Reason string
}

// Config wires the registry's collaborators.
type Config struct {
	Host window.Host
	// PageURL maps a channel to its public live page for the companion
	// surface.
	PageURL func(channel string) string
	// Notify receives lifecycle events; may be nil.
	Notify func(Event)
	// ClaimInterval overrides the companion clicker cadence; zero keeps
	// the default.
	ClaimInterval time.Duration
	Metrics       *monitoring.Metrics
}

// Registry owns the channel→session mapping. It is the only component
// allowed to create or destroy sessions, which is what makes the
// at-most-one-session invariant enforceable.
type Registry struct {
	host          window.Host
	pageURL       func(string) string
	notify        func(Event)
	claimInterval time.Duration
	metrics       *monitoring.Metrics
	log           *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, log *logging.Logger) *Registry {
	pageURL := cfg.PageURL
	if pageURL == nil {
		pageURL = func(channel string) string {
			return "https://www.twitch.tv/" + channel
		}
	}
	return &Registry{
		host:          cfg.Host,
		pageURL:       pageURL,
		notify:        cfg.Notify,
		claimInterval: cfg.ClaimInterval,
		metrics:       cfg.Metrics,
		log:           log,
		sessions:      make(map[string]*Session),
	}
}

// SetNotify installs the lifecycle event sink. Wired once at startup,
// before any session exists.
func (r *Registry) SetNotify(fn func(Event)) {
	r.mu.Lock()
	r.notify = fn
	r.mu.Unlock()
}

// Get returns the session for a channel, if one is open.
func (r *Registry) Get(channel string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[channel]
	return s, ok
}

// List returns all open sessions.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Create opens a session for a live channel. If one already exists it is
// focused and returned unchanged: this is the duplicate-window guard, and
// racing creates for the same channel collapse onto the first one.
func (r *Registry) Create(ctx context.Context, channel, handle string, p prefs.Preferences) (*Session, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[channel]; ok {
		r.mu.Unlock()
		if err := existing.Focus(); err != nil {
			r.log.Debug("focus existing session", zap.String("channel", channel), zap.Error(err))
		}
		return existing, nil
	}

	pip, err := r.host.Open(window.PIPOptions(channel, handle))
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("open pip window for %s: %w", channel, err)
	}

	s := &Session{
		ID:        uuid.New().String(),
		Channel:   channel,
		Handle:    handle,
		CreatedAt: time.Now(),
		Prefs:     p,
		pip:       pip,
	}

	if p.ChannelPoints {
		r.attachCompanion(s)
	}

	r.sessions[channel] = s
	r.mu.Unlock()

	// The OS close button must run the same teardown as a programmatic
	// destroy; by the time this fires for our own Close the entry is
	// already gone and Destroy is a no-op.
	pip.OnClosed(func() {
		r.Destroy(channel, ReasonWindow)
	})

	if r.metrics != nil {
		r.metrics.SessionsActive.Inc()
		r.metrics.SessionsOpened.Inc()
	}
	r.log.Info("session opened",
		zap.String("channel", channel),
		zap.String("session", s.ID),
		zap.Bool("companion", s.HasCompanion()))
	r.emit(Event{Type: EventOpened, Channel: channel, SessionID: s.ID})

	return s, nil
}

// Destroy closes the PIP window and the companion window (if any) and
// removes the registry entry. Unknown channels are a benign no-op; the
// bool reports whether a session was actually destroyed.
func (r *Registry) Destroy(channel, reason string) bool {
	r.mu.Lock()
	s, ok := r.sessions[channel]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, channel)
	r.mu.Unlock()

	s.close()

	if r.metrics != nil {
		r.metrics.SessionsActive.Dec()
		r.metrics.SessionsClosed.WithLabelValues(reason).Inc()
	}
	r.log.Info("session closed",
		zap.String("channel", channel),
		zap.String("session", s.ID),
		zap.String("reason", reason))
	r.emit(Event{Type: EventClosed, Channel: channel, SessionID: s.ID, Reason: reason})

	return true
}

// DestroyAll tears down every session, used at shutdown.
func (r *Registry) DestroyAll(reason string) {
	for _, s := range r.List() {
		r.Destroy(s.Channel, reason)
	}
}

// attachCompanion opens the muted hidden surface and starts the claim
// loop. A companion failure degrades the session rather than failing it.
// Caller holds r.mu.
func (r *Registry) attachCompanion(s *Session) {
	comp, err := r.host.Open(window.CompanionOptions(s.Channel, r.pageURL(s.Channel)))
	if err != nil {
		r.log.Warn("open companion window", zap.String("channel", s.Channel), zap.Error(err))
		return
	}
	s.companion = comp

	surface, ok := comp.(automation.Surface)
	if !ok {
		// Toolkit surface without DOM access: keep the window (it still
		// earns watch-time on the page) but skip the clicker.
		r.log.Warn("companion surface lacks DOM access", zap.String("channel", s.Channel))
		return
	}

	opts := []automation.Option{automation.WithMetrics(r.metrics)}
	if r.claimInterval > 0 {
		opts = append(opts, automation.WithInterval(r.claimInterval))
	}
	clicker := automation.NewClicker(surface, r.log.Named("automation"), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	s.stopAutomation = cancel
	go clicker.Run(ctx)
}

func (r *Registry) emit(ev Event) {
	r.mu.Lock()
	fn := r.notify
	r.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
