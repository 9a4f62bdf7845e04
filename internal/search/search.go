// Package search resolves a user query into a stream of product URLs.
package search

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/pkg/errors"
)

// Method selects how a query is turned into URLs.
type Method string

// Supported methods.
const (
	MethodURL    Method = "url"
	MethodGoogle Method = "google"
)

// DefaultEndpoint is the Google custom search JSON API.
const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// pageStride is how far the start index moves per result page
const pageStride = 10

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure the custom search backend.
type Options struct {
	Endpoint string
	APIKey   string
	CX       string
	Timeout  time.Duration // per result page, defaults to 30s
}

// Provider resolves queries into canonical product URLs.
type Provider struct {
	client HTTPClient
	opts   Options
	log    *logger.Logger
}

// New creates a Provider.
func New(client HTTPClient, opts Options, log *logger.Logger) *Provider {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{client: client, opts: opts, log: log}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodURL, MethodGoogle:
		return Method(s), nil
	}
	return "", errors.NewValidation("search", fmt.Sprintf("unknown search method %q", s))
}

// Resolve returns the URLs for query. With MethodURL the stream holds the
// canonical form of query itself. With MethodGoogle it walks result pages
// 1..pages lazily; a failing page ends the stream without an error.
func (p *Provider) Resolve(ctx context.Context, query string, method Method, pages, perPage int) (iter.Seq[string], error) {
	switch method {
	case MethodURL:
		canonical, err := helpers.CanonicalURL(query)
		if err != nil {
			return nil, errors.NewValidation("search", err.Error())
		}
		return func(yield func(string) bool) {
			yield(canonical)
		}, nil

	case MethodGoogle:
		if p.opts.APIKey == "" || p.opts.CX == "" {
			return nil, errors.NewConfiguration("SEARCH_API_KEY and SEARCH_CX are required for google search", nil)
		}
		if pages < 1 {
			pages = 1
		}
		if perPage < 1 || perPage > pageStride {
			perPage = pageStride
		}
		return p.google(ctx, query, pages, perPage), nil
	}

	return nil, errors.NewValidation("search", fmt.Sprintf("unknown search method %q", method))
}

func (p *Provider) google(ctx context.Context, query string, pages, perPage int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for page := 1; page <= pages; page++ {
			links, err := p.fetchPage(ctx, query, (page-1)*pageStride, perPage)
			if err != nil {
				p.log.Warn().Err(err).Str("query", query).Int("page", page).Msg("Search page failed, stopping")
				return
			}
			if len(links) == 0 {
				return
			}

			for _, link := range links {
				canonical, err := helpers.CanonicalURL(link)
				if err != nil {
					p.log.Debug().Str("link", link).Msg("Skipping invalid search result")
					continue
				}
				if !yield(canonical) {
					return
				}
			}
		}
	}
}

// fetchPage returns items[].link of one result page
func (p *Provider) fetchPage(ctx context.Context, query string, start, num int) ([]string, error) {
	params := url.Values{}
	params.Set("key", p.opts.APIKey)
	params.Set("cx", p.opts.CX)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	// the first page uses the API default start
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork("search", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewHTTPStatus("search", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, helpers.MaxBodySize))
	if err != nil {
		return nil, errors.NewNetwork("search", "read body", err)
	}

	var links []string
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Object {
			return
		}
		if link, err := jsonparser.GetString(value, "link"); err == nil && link != "" {
			links = append(links, link)
		}
	}, "items")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, errors.NewParsing("search", "invalid search response", err)
	}
	return links, nil
}
