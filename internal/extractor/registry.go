package extractor

import (
	"slices"
	"strings"
	"sync"

	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/pkg/errors"
)

// Registry dispatches a page to the extractor registered for its host
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]ExtractFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]ExtractFunc)}
}

// NewDefaultRegistry creates a registry with every supported site
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cfg := range htmlSites {
		ext := NewHTMLExtractor(cfg)
		for _, host := range cfg.Hosts {
			r.Register(host, ext.Extract)
		}
	}
	for _, cfg := range jsonLDSites {
		ext := NewJSONLDExtractor(cfg)
		for _, host := range cfg.Hosts {
			r.Register(host, ext.Extract)
		}
	}
	return r
}

// Register adds or replaces the extractor for host. A leading "www." is ignored.
func (r *Registry) Register(host string, fn ExtractFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[normalizeHost(host)] = fn
}

// Lookup returns the extractor for the host of pageURL and the host key it
// matched. Unknown hosts give an unknown_host error.
func (r *Registry) Lookup(pageURL string) (ExtractFunc, string, error) {
	host, err := helpers.SiteHost(pageURL)
	if err != nil {
		return nil, "", errors.NewValidation("registry", err.Error())
	}

	r.mu.RLock()
	fn, ok := r.extractors[host]
	r.mu.RUnlock()
	if !ok {
		return nil, host, errors.NewUnknownHost(host)
	}
	return fn, host, nil
}

// Supports reports whether pageURL has a registered extractor
func (r *Registry) Supports(pageURL string) bool {
	_, _, err := r.Lookup(pageURL)
	return err == nil
}

// Hosts lists the registered hosts in order
func (r *Registry) Hosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hosts := make([]string, 0, len(r.extractors))
	for h := range r.extractors {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts
}

// Extract routes body to the extractor for pageURL
func (r *Registry) Extract(body []byte, pageURL string) (*model.ProductRecord, error) {
	fn, _, err := r.Lookup(pageURL)
	if err != nil {
		return nil, err
	}
	return fn(body, pageURL)
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}
