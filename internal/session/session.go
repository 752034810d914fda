package session

import (
	"context"
	"time"

	"github.com/pipcast/backend/internal/prefs"
	"github.com/pipcast/backend/internal/window"
)

// Session pairs one channel with its open PIP window and, optionally, the
// hidden companion automation window. The session owns both handles
// exclusively; teardown always goes through the registry.
type Session struct {
	ID        string
	Channel   string
	Handle    string
	CreatedAt time.Time
	// Prefs is the preference snapshot captured at creation. Toggling a
	// preference later does not change an open session.
	Prefs prefs.Preferences

	pip            window.Window
	companion      window.Window
	stopAutomation context.CancelFunc
}

// Focus brings the session's PIP window to the foreground.
func (s *Session) Focus() error {
	return s.pip.Focus()
}

// HasCompanion reports whether a companion automation window is attached.
func (s *Session) HasCompanion() bool {
	return s.companion != nil
}

// close tears down everything the session owns: the automation loop, the
// PIP window and the companion window.
func (s *Session) close() {
	if s.stopAutomation != nil {
		s.stopAutomation()
	}
	_ = s.pip.Close()
	if s.companion != nil {
		_ = s.companion.Close()
	}
}
