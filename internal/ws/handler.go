package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
	"github.com/pipcast/backend/internal/session"
	"github.com/pipcast/backend/internal/twitch"
	"github.com/pipcast/backend/internal/version"
)

// The server only listens on loopback; renderer surfaces connect from
// file:// or localhost origins.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Orchestrator is the coordinator surface the IPC layer drives.
type Orchestrator interface {
	CheckPrimary(ctx context.Context) bool
	OpenPrimary(ctx context.Context) bool
	Open(ctx context.Context, channel string) bool
	CheckChannel(ctx context.Context, channel string) bool
}

// SessionCloser destroys sessions on user request.
type SessionCloser interface {
	Destroy(channel, reason string) bool
}

// Prefs is the preference surface the IPC layer reads and toggles.
type Prefs interface {
	Order() []string
	ToggleChannelPoints() (bool, error)
}

// ChannelLister fetches roster display metadata.
type ChannelLister interface {
	Channels(ctx context.Context, logins []string) ([]twitch.Channel, error)
}

// WindowEvents receives toolkit adapter events arriving on the same
// socket as UI requests. Implemented by the window bridge.
type WindowEvents interface {
	ReportClosed(id string)
	ReportSnapshot(id, html string)
	ReportTrayActivate()
	ReportTrayExit()
	ReportAllClosed()
}

// Message is one inbound IPC request.
type Message struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	// Window and HTML carry toolkit adapter events.
	Window string `json:"window,omitempty"`
	HTML   string `json:"html,omitempty"`
}

// Handler dispatches IPC messages from connected UI surfaces.
type Handler struct {
	hub      *Hub
	orch     Orchestrator
	sessions SessionCloser
	prefs    Prefs
	channels ChannelLister
	windows  WindowEvents
	restart  func()
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates the IPC handler.
func NewHandler(hub *Hub, orch Orchestrator, sessions SessionCloser, prefs Prefs, channels ChannelLister, windows WindowEvents, restart func(), log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		hub:      hub,
		orch:     orch,
		sessions: sessions,
		prefs:    prefs,
		channels: channels,
		windows:  windows,
		restart:  restart,
		log:      log,
		metrics:  metrics,
	}
}

// HandleConnection upgrades the request and serves the client until it
// disconnects. Messages from one surface are handled in arrival order.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{id: uuid.New().String(), conn: conn}
	h.hub.register(cl)
	defer func() {
		h.hub.unregister(cl)
		conn.Close()
	}()

	_ = cl.send(map[string]any{"type": "system", "message": "connected"})

	ctx := c.Request.Context()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			h.log.Debug("websocket closed", zap.String("client", cl.id), zap.Error(err))
			return
		}
		h.dispatch(ctx, cl, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, cl *client, msg Message) {
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues(msg.Type).Inc()
	}

	switch msg.Type {
	case "roster_info":
		h.handleRosterInfo(ctx, cl)
	case "open_primary":
		open := h.orch.OpenPrimary(ctx)
		h.reply(cl, "open_primary_result", map[string]any{"open": open})
	case "open_channel":
		if !h.requireChannel(cl, msg) {
			return
		}
		h.orch.Open(ctx, msg.Channel)
	case "close_pip":
		if !h.requireChannel(cl, msg) {
			return
		}
		h.sessions.Destroy(msg.Channel, session.ReasonUser)
		h.reply(cl, "pip_closed", map[string]any{"channel": msg.Channel})
	case "check_offline":
		if !h.orch.CheckPrimary(ctx) {
			h.reply(cl, "offline_notice", nil)
		}
	case "check_offline_active":
		if !h.requireChannel(cl, msg) {
			return
		}
		// Reconciliation broadcasts offline_notice and session_closed on
		// its own; nothing more to send from here.
		h.orch.CheckChannel(ctx, msg.Channel)
	case "app_version":
		h.reply(cl, "app_version", map[string]any{"version": version.String()})
	case "toggle_channel_points":
		if _, err := h.prefs.ToggleChannelPoints(); err != nil {
			h.log.Error("toggle channel points", zap.Error(err))
			h.replyError(cl, "could not save preference")
		}
	case "restart":
		if h.restart != nil {
			go h.restart()
		}
	case "ping":
		h.reply(cl, "pong", nil)
	case "window_closed":
		if h.windows != nil {
			h.windows.ReportClosed(msg.Window)
		}
	case "dom_snapshot":
		if h.windows != nil {
			h.windows.ReportSnapshot(msg.Window, msg.HTML)
		}
	case "tray_activate":
		if h.windows != nil {
			h.windows.ReportTrayActivate()
		}
	case "tray_exit":
		if h.windows != nil {
			h.windows.ReportTrayExit()
		}
	case "window_all_closed":
		if h.windows != nil {
			h.windows.ReportAllClosed()
		}
	default:
		h.replyError(cl, "unknown message type")
	}
}

// handleRosterInfo answers with display metadata for the whole roster. An
// upstream failure degrades to an empty roster; no raw error reaches the
// UI.
func (h *Handler) handleRosterInfo(ctx context.Context, cl *client) {
	logins := h.prefs.Order()
	channels, err := h.channels.Channels(ctx, logins)
	if err != nil {
		h.log.Warn("roster query failed", zap.Error(err))
		channels = []twitch.Channel{}
	}
	if channels == nil {
		channels = []twitch.Channel{}
	}
	h.reply(cl, "roster_info", map[string]any{"channels": channels})
}

func (h *Handler) requireChannel(cl *client, msg Message) bool {
	if msg.Channel == "" {
		h.replyError(cl, "channel required")
		return false
	}
	return true
}

func (h *Handler) reply(cl *client, msgType string, payload map[string]any) {
	if err := cl.send(envelope(msgType, payload)); err != nil {
		h.log.Debug("reply failed", zap.String("client", cl.id), zap.Error(err))
	}
}

func (h *Handler) replyError(cl *client, message string) {
	h.reply(cl, "error", map[string]any{"message": message})
}
