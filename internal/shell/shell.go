// Package shell owns startup sequencing, the tray affordance and the
// application context. Window references live in an explicit Context
// owned here, never in package-level globals.
package shell

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/coordinator"
	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/update"
	"github.com/pipcast/backend/internal/window"
)

const trayTooltip = "PipCast"

// Context is the application context: the one place that holds the main
// window and tray references.
type Context struct {
	mu   sync.Mutex
	main window.Window
	tray window.Tray
}

// Main returns the current main window, or nil when none is open.
func (c *Context) Main() window.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.main != nil && c.main.Closed() {
		c.main = nil
	}
	return c.main
}

func (c *Context) setMain(w window.Window) {
	c.mu.Lock()
	c.main = w
	c.mu.Unlock()
}

// Config holds shell configuration.
type Config struct {
	// Platform overrides runtime.GOOS, used by tests. On darwin the app
	// stays resident when every window is closed; elsewhere it quits.
	Platform string
	// UpdateCheck enables the non-blocking startup update check.
	UpdateCheck bool
}

// Shell sequences startup and reacts to tray, relaunch and toolkit
// events.
type Shell struct {
	cfg     Config
	host    window.Host
	coord   *coordinator.Coordinator
	updates *update.Checker
	hub     coordinator.Broadcaster
	log     *logging.Logger

	appCtx Context

	mu          sync.Mutex
	quitCh      chan struct{}
	quitOnce    sync.Once
	restartWant bool
}

// New creates the shell.
func New(cfg Config, host window.Host, coord *coordinator.Coordinator, updates *update.Checker, hub coordinator.Broadcaster, log *logging.Logger) *Shell {
	if cfg.Platform == "" {
		cfg.Platform = runtime.GOOS
	}
	return &Shell{
		cfg:     cfg,
		host:    host,
		coord:   coord,
		updates: updates,
		hub:     hub,
		log:     log,
		quitCh:  make(chan struct{}),
	}
}

// Startup runs the single-instance branch of the boot sequence: main
// window, hidden background window, tray, then the update check. Roster
// seeding already happened when the preference store was opened.
func (s *Shell) Startup(ctx context.Context) error {
	if err := s.ShowMain(); err != nil {
		return err
	}
	if err := s.coord.EnsureBackground(); err != nil {
		return err
	}

	tray, err := s.host.NewTray(trayTooltip)
	if err != nil {
		return err
	}
	s.appCtx.mu.Lock()
	s.appCtx.tray = tray
	s.appCtx.mu.Unlock()

	tray.OnExit(s.Quit)
	tray.OnActivate(func() {
		// Tray click with no main window recreates one.
		if s.appCtx.Main() == nil {
			if err := s.ShowMain(); err != nil {
				s.log.Error("recreate main window", zap.Error(err))
			}
		}
	})

	s.host.OnAllWindowsClosed(func() {
		if s.cfg.Platform != "darwin" {
			s.Quit()
		}
	})

	if s.cfg.UpdateCheck && s.updates != nil {
		go s.checkUpdates(ctx)
	}
	return nil
}

// ShowMain brings the main window to the foreground, creating it first if
// it does not exist.
func (s *Shell) ShowMain() error {
	if main := s.appCtx.Main(); main != nil {
		return main.Focus()
	}

	win, err := s.host.Open(window.Options{
		Kind:   window.KindMain,
		Title:  "PipCast",
		Width:  756,
		Height: 585,
	})
	if err != nil {
		return err
	}
	win.OnClosed(func() {
		s.appCtx.setMain(nil)
	})
	s.appCtx.setMain(win)
	return win.Focus()
}

// Activate handles a forwarded relaunch or a platform activate event:
// the background window is recreated if needed and the main window
// focused or recreated.
func (s *Shell) Activate() {
	if err := s.coord.EnsureBackground(); err != nil {
		s.log.Error("recreate background window", zap.Error(err))
	}
	if err := s.ShowMain(); err != nil {
		s.log.Error("activate main window", zap.Error(err))
	}
}

// Quit asks the application to exit.
func (s *Shell) Quit() {
	s.quitOnce.Do(func() { close(s.quitCh) })
}

// RequestRestart asks the application to exit and be relaunched, applying
// a downloaded update.
func (s *Shell) RequestRestart() {
	s.mu.Lock()
	s.restartWant = true
	s.mu.Unlock()
	s.Quit()
}

// RestartRequested reports whether shutdown should relaunch the app.
func (s *Shell) RestartRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartWant
}

// Done is closed when the application should exit.
func (s *Shell) Done() <-chan struct{} {
	return s.quitCh
}

// Close tears everything down: all sessions and their windows, the
// background window, the tray and the main window.
func (s *Shell) Close() {
	s.coord.Close()

	s.appCtx.mu.Lock()
	tray := s.appCtx.tray
	main := s.appCtx.main
	s.appCtx.tray = nil
	s.appCtx.main = nil
	s.appCtx.mu.Unlock()

	if tray != nil {
		_ = tray.Close()
	}
	if main != nil {
		_ = main.Close()
	}
}

// checkUpdates runs the non-blocking update check; a newer release is
// announced to the UI the way a downloaded update would be.
func (s *Shell) checkUpdates(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rel, err := s.updates.Check(ctx)
	if err != nil {
		s.log.Debug("update check failed", zap.Error(err))
		return
	}
	if rel == nil {
		return
	}
	s.log.Info("update available", zap.String("version", rel.Version))
	if s.hub != nil {
		s.hub.Broadcast("update_downloaded", map[string]any{
			"version": rel.Version,
			"url":     rel.URL,
		})
	}
}
