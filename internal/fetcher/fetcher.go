// Package fetcher downloads product pages politely: robots.txt, per-host
// rate limits and host blocks after HTTP 429.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/cache"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Page is a fetched product page.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Options configure a Fetcher.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RatePerHost   float64 // requests per second, 0 means unlimited
	RespectRobots bool
	BlockDuration time.Duration
}

// Fetcher downloads pages.
type Fetcher struct {
	client  HTTPClient
	opts    Options
	blocker *cache.HostBlocker
	robots  *RobotsChecker
	log     *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher. blocks may be nil to disable host blocking.
func New(client HTTPClient, blocks cache.CacheService, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = helpers.DefaultUserAgent
	}
	if opts.BlockDuration <= 0 {
		opts.BlockDuration = 5 * time.Minute
	}

	f := &Fetcher{
		client:   client,
		opts:     opts,
		log:      logger.ForFetcher(),
		limiters: make(map[string]*rate.Limiter),
	}
	if blocks != nil {
		f.blocker = cache.NewHostBlocker(blocks, opts.BlockDuration)
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(client)
	}
	return f
}

// Fetch downloads pageURL. Errors are *errors.PipelineError values whose
// type tells transient failures (network, server, rate_limit) from
// permanent ones (http_status, robots).
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, errors.NewValidation("fetcher", fmt.Sprintf("invalid url %q", pageURL))
	}
	host := strings.ToLower(u.Hostname())

	if f.blocker != nil {
		if blocked, remaining := f.blocker.Blocked(host); blocked {
			return nil, errors.NewRateLimit(host, remaining)
		}
	}

	if f.robots != nil {
		robotsCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		allowed, err := f.robots.IsAllowed(robotsCtx, f.opts.UserAgent, pageURL)
		cancel()
		if err == nil && !allowed {
			return nil, errors.NewRobots(host, u.Path)
		}
	}

	if err := f.limiter(host).Wait(ctx); err != nil {
		return nil, errors.NewNetwork(host, "rate limiter", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := helpers.NewPageRequest(ctx, pageURL, f.opts.UserAgent)
	if err != nil {
		return nil, errors.NewValidation(host, err.Error())
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(host, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	f.log.Debug().
		Str("url", pageURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched page")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if f.blocker != nil {
			f.blocker.Block(host)
		}
		return nil, errors.NewRateLimit(host, f.opts.BlockDuration)
	case resp.StatusCode >= 500:
		return nil, errors.NewServer(host, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, errors.NewHTTPStatus(host, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errors.NewNetwork(host, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	body, err := helpers.ReadBody(resp)
	if err != nil {
		return nil, errors.NewNetwork(host, "read body", err)
	}

	page := &Page{
		URL:        pageURL,
		FinalURL:   pageURL,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		page.FinalURL = resp.Request.URL.String()
	}
	return page, nil
}

// limiter returns the rate limiter of host
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.opts.RatePerHost > 0 {
			limit = rate.Limit(f.opts.RatePerHost)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}
