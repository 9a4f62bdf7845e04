package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsChecker caches and checks robots.txt rules per site.
type RobotsChecker struct {
	rules    map[string]*robotstxt.RobotsData
	expiry   map[string]time.Time
	mu       sync.RWMutex
	group    singleflight.Group
	client   HTTPClient
	cacheTTL time.Duration
}

// NewRobotsChecker creates a new robots.txt checker.
func NewRobotsChecker(client HTTPClient) *RobotsChecker {
	return &RobotsChecker{
		rules:    make(map[string]*robotstxt.RobotsData),
		expiry:   make(map[string]time.Time),
		client:   client,
		cacheTTL: 1 * time.Hour,
	}
}

// IsAllowed checks if userAgent may fetch rawURL. A robots.txt that cannot
// be fetched allows everything.
func (r *RobotsChecker) IsAllowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}

	data, err := r.getRobots(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return true, nil
	}

	return data.TestAgent(u.EscapedPath(), userAgent), nil
}

func (r *RobotsChecker) getRobots(ctx context.Context, site string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.rules[site]
	exp := r.expiry[site]
	r.mu.RUnlock()

	if ok && time.Now().Before(exp) {
		return data, nil
	}

	// one request per site; each caller waits no longer than its own ctx
	ch := r.group.DoChan(site, func() (interface{}, error) {
		return r.download(ctx, site)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*robotstxt.RobotsData), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// download fetches and caches robots.txt of site. No lock is held while
// the request is in flight.
func (r *RobotsChecker) download(ctx context.Context, site string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("fetch robots.txt: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.rules[site] = data
	r.expiry[site] = time.Now().Add(r.cacheTTL)
	r.mu.Unlock()
	return data, nil
}
