// Package automation drives the companion window: attempt an action on a
// fixed interval, tolerate the target being absent.
package automation

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
)

// DefaultInterval is how often a claim attempt runs.
const DefaultInterval = 30 * time.Second

// ClaimSelector matches the channel-points claim affordance on a channel's
// live page.
const ClaimSelector = `button[aria-label="Claim Bonus"]`

// Surface is a page the clicker can inspect and act on. The hidden
// companion window implements it.
type Surface interface {
	// Document returns the page's current DOM.
	Document(ctx context.Context) (*goquery.Document, error)
	// Click triggers the first element matching selector.
	Click(ctx context.Context, selector string) error
}

// Clicker periodically looks for a target control on a surface and clicks
// it when present. Absence of the control on a tick is not an error.
type Clicker struct {
	surface  Surface
	selector string
	interval time.Duration
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// Option configures a Clicker.
type Option func(*Clicker)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(c *Clicker) { c.interval = d }
}

// WithSelector overrides the target selector.
func WithSelector(sel string) Option {
	return func(c *Clicker) { c.selector = sel }
}

// WithMetrics wires claim counters.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Clicker) { c.metrics = m }
}

// NewClicker creates a clicker for the given surface.
func NewClicker(surface Surface, log *logging.Logger, opts ...Option) *Clicker {
	c := &Clicker{
		surface:  surface,
		selector: ClaimSelector,
		interval: DefaultInterval,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run ticks until ctx is cancelled. The owning session cancels ctx when it
// is destroyed, so no clicker ever outlives its window.
func (c *Clicker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Attempt(ctx)
		}
	}
}

// Attempt performs a single claim pass. Surface errors are logged at debug
// and retried on the next tick; a missing control is silently ignored.
func (c *Clicker) Attempt(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.ClaimAttempts.Inc()
	}

	doc, err := c.surface.Document(ctx)
	if err != nil {
		c.log.Debug("companion page unavailable", zap.Error(err))
		return
	}
	if doc.Find(c.selector).Length() == 0 {
		return
	}

	if err := c.surface.Click(ctx, c.selector); err != nil {
		c.log.Debug("claim click failed", zap.Error(err))
		return
	}
	if c.metrics != nil {
		c.metrics.ClaimClicks.Inc()
	}
	c.log.Debug("claimed channel points")
}
