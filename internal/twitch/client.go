// Package twitch queries the streaming platform's Helix API for channel
// metadata and live status.
//
// The client is the app's only upstream dependency. Failures never escape
// as errors into the orchestration layer: a poll that cannot complete
// degrades to StateUnknown and the UI only ever sees "offline".
package twitch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/resilience"
)

// Config configures the Helix client.
type Config struct {
	BaseURL     string
	ClientID    string
	Token       string
	EmbedParent string
	Timeout     time.Duration
	// RPS caps outgoing request rate. Helix allows 800 req/min; the
	// default of 10 rps keeps well under it.
	RPS float64
}

// Client wraps resty with rate limiting and a circuit breaker, the way
// every upstream client in this codebase is composed.
type Client struct {
	resty       *resty.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	embedParent string
	log         *logging.Logger
}

// NewClient creates a Helix client.
func NewClient(cfg Config, log *logging.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS == 0 {
		cfg.RPS = 10
	}
	if cfg.EmbedParent == "" {
		cfg.EmbedParent = "localhost"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Client-Id", cfg.ClientID).
		SetHeader("User-Agent", "pipcast/1.0").
		SetTransport(retryClient.HTTPClient.Transport)
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}

	breaker := resilience.New("helix", resilience.Settings{
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 8
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("upstream breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		resty:       rc,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), int(cfg.RPS)),
		breaker:     breaker,
		embedParent: cfg.EmbedParent,
		log:         log,
	}
}

// CheckLive performs one best-effort liveness poll for a channel login.
// Query failures map to StateUnknown and are absorbed here; the method
// never returns an error.
func (c *Client) CheckLive(ctx context.Context, login string) Status {
	var out streamsResponse
	err := c.get(ctx, "/helix/streams", url.Values{"user_login": {login}}, &out)
	if err != nil {
		c.log.Debug("liveness query failed",
			zap.String("channel", login), zap.Error(err))
		return Status{State: StateUnknown}
	}
	if len(out.Data) == 0 {
		return Status{State: StateOffline}
	}
	return Status{State: StateLive, Handle: c.streamHandle(login)}
}

// Channels fetches display metadata for the given logins in roster order.
// Logins the upstream does not know are skipped.
func (c *Client) Channels(ctx context.Context, logins []string) ([]Channel, error) {
	if len(logins) == 0 {
		return nil, nil
	}

	q := url.Values{}
	for _, l := range logins {
		q.Add("login", l)
	}
	var users usersResponse
	if err := c.get(ctx, "/helix/users", q, &users); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	var streams streamsResponse
	if err := c.get(ctx, "/helix/streams", url.Values{"user_login": logins}, &streams); err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	liveByLogin := make(map[string]bool, len(streams.Data))
	for _, s := range streams.Data {
		liveByLogin[s.UserLogin] = true
	}

	byLogin := make(map[string]userData, len(users.Data))
	for _, u := range users.Data {
		byLogin[u.Login] = u
	}

	channels := make([]Channel, 0, len(logins))
	for _, login := range logins {
		u, ok := byLogin[login]
		if !ok {
			continue
		}
		ch := Channel{
			ID:          u.ID,
			Login:       u.Login,
			DisplayName: u.DisplayName,
			AvatarURL:   u.ProfileImageURL,
			IsLive:      liveByLogin[u.Login],
		}
		// Follower counts come from a separate endpoint; a failure there
		// degrades to zero rather than failing the whole roster.
		var followers followersResponse
		fq := url.Values{"broadcaster_id": {u.ID}, "first": {"1"}}
		if err := c.get(ctx, "/helix/channels/followers", fq, &followers); err == nil {
			ch.Followers = followers.Total
		} else {
			c.log.Debug("follower query failed",
				zap.String("channel", login), zap.Error(err))
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// PageURL returns the channel's public live page, loaded by the companion
// automation surface.
func (c *Client) PageURL(login string) string {
	return "https://www.twitch.tv/" + url.PathEscape(login)
}

// streamHandle builds the embeddable player URL for a live channel.
func (c *Client) streamHandle(login string) string {
	v := url.Values{
		"channel": {login},
		"parent":  {c.embedParent},
	}
	return "https://player.twitch.tv/?" + v.Encode()
}

// get runs one rate-limited GET through the breaker and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return c.breaker.Execute(func() error {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetQueryParamsFromValues(query).
			SetResult(out).
			Get(path)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("helix %s: status %d", path, resp.StatusCode())
		}
		return nil
	})
}
