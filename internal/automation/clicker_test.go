package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/window"
)

const claimPage = `<html><body>
	<div class="chat"></div>
	<button aria-label="Claim Bonus">+50</button>
</body></html>`

const idlePage = `<html><body><div class="chat"></div></body></html>`

func newSurface(t *testing.T) *window.FakeWindow {
	t.Helper()
	w, err := window.NewFakeHost().Open(window.Options{Kind: window.KindCompanion})
	require.NoError(t, err)
	return w.(*window.FakeWindow)
}

func TestAttemptClicksWhenPresent(t *testing.T) {
	surface := newSurface(t)
	surface.SetHTML(claimPage)

	c := NewClicker(surface, logging.NewNop())
	c.Attempt(context.Background())

	assert.Equal(t, []string{ClaimSelector}, surface.Clicks())
}

func TestAttemptIgnoresAbsentControl(t *testing.T) {
	surface := newSurface(t)
	surface.SetHTML(idlePage)

	c := NewClicker(surface, logging.NewNop())
	c.Attempt(context.Background())

	assert.Empty(t, surface.Clicks())
}

func TestAttemptToleratesSurfaceErrors(t *testing.T) {
	surface := newSurface(t)
	surface.SetHTML(claimPage)
	_ = surface.Close()

	c := NewClicker(surface, logging.NewNop())
	c.Attempt(context.Background())

	assert.Empty(t, surface.Clicks())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	surface := newSurface(t)
	surface.SetHTML(claimPage)

	c := NewClicker(surface, logging.NewNop(), WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(surface.Clicks()) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clicker did not stop on cancel")
	}
}

func TestWithSelector(t *testing.T) {
	surface := newSurface(t)
	surface.SetHTML(`<button class="other">x</button>`)

	c := NewClicker(surface, logging.NewNop(), WithSelector("button.other"))
	c.Attempt(context.Background())

	assert.Equal(t, []string{"button.other"}, surface.Clicks())
}
