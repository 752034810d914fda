// Package update performs the non-blocking startup update check. Delivery
// and installation of updates stay outside this process; the orchestrator
// only learns that a newer release exists and, on request, restarts so the
// launcher can apply it.
package update

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pipcast/backend/internal/logging"
)

// Release describes the latest published release.
type Release struct {
	Version string `json:"tag_name"`
	URL     string `json:"html_url"`
}

// Checker queries the release endpoint.
type Checker struct {
	client   *resty.Client
	endpoint string
	current  string
	log      *logging.Logger
}

// NewChecker creates a checker comparing against the given current
// version.
func NewChecker(endpoint, current string, log *logging.Logger) *Checker {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("User-Agent", "pipcast/1.0").
		SetHeader("Accept", "application/vnd.github+json")
	return &Checker{
		client:   client,
		endpoint: endpoint,
		current:  current,
		log:      log,
	}
}

// Check fetches the latest release and reports it when newer than the
// running version. Returns nil when up to date.
func (c *Checker) Check(ctx context.Context) (*Release, error) {
	var rel Release
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&rel).
		Get(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("query releases: status %d", resp.StatusCode())
	}
	if rel.Version == "" {
		return nil, fmt.Errorf("query releases: empty tag")
	}

	if !Newer(rel.Version, c.current) {
		return nil, nil
	}
	return &rel, nil
}

// Newer reports whether candidate is a strictly newer dotted version than
// current. Unparseable versions (including the "dev" build) never count
// as newer.
func Newer(candidate, current string) bool {
	cand, ok := parse(candidate)
	if !ok {
		return false
	}
	cur, ok := parse(current)
	if !ok {
		return false
	}
	for i := 0; i < 3; i++ {
		if cand[i] != cur[i] {
			return cand[i] > cur[i]
		}
	}
	return false
}

func parse(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) == 0 || parts[0] == "" {
		return out, false
	}
	for i, p := range parts {
		// Tolerate suffixes like "3-rc1" on the last segment.
		if dash := strings.IndexByte(p, '-'); dash >= 0 {
			p = p[:dash]
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
