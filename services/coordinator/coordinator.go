// Package coordinator drives crawls: it fetches URLs concurrently within
// politeness limits and pushes every page through extract, upsert and notify.
package coordinator

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/internal/extractor"
	"sjsage522/pricetracker/internal/fetcher"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/internal/search"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/notifier"
)

// Fetcher downloads a page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// Dispatcher finds the extractor for a URL
type Dispatcher interface {
	Lookup(pageURL string) (extractor.ExtractFunc, string, error)
}

// Repository is the part of storage the coordinator writes to
type Repository interface {
	Upsert(ctx context.Context, rec model.ProductRecord) (model.UpsertResult, error)
	MarkUnavailable(ctx context.Context, url string) (bool, error)
}

// Notifier reacts to upsert results
type Notifier interface {
	Notify(ctx context.Context, rec model.ProductRecord, res model.UpsertResult) (notifier.Report, error)
}

// Resolver turns a query into URLs
type Resolver interface {
	Resolve(ctx context.Context, query string, method search.Method, pages, perPage int) (iter.Seq[string], error)
}

// Deps are the collaborators of a Coordinator. Notifier and Resolver may be nil.
type Deps struct {
	Fetcher    Fetcher
	Dispatcher Dispatcher
	Repository Repository
	Notifier   Notifier
	Resolver   Resolver
	Logger     *logger.Logger
}

// Options bound concurrency
type Options struct {
	MaxInflightGlobal  int
	MaxInflightPerHost int
}

// Coordinator runs crawl batches. Its limits are shared by all batches.
type Coordinator struct {
	deps   Deps
	opts   Options
	log    *logger.Logger
	global *semaphore.Weighted

	mu    sync.Mutex
	hosts map[string]*semaphore.Weighted

	batches atomic.Int64
}

// New creates a Coordinator
func New(deps Deps, opts Options) *Coordinator {
	if opts.MaxInflightGlobal <= 0 {
		opts.MaxInflightGlobal = 16
	}
	if opts.MaxInflightPerHost <= 0 {
		opts.MaxInflightPerHost = 2
	}
	log := deps.Logger
	if log == nil {
		log = logger.ForCoordinator()
	}

	return &Coordinator{
		deps:   deps,
		opts:   opts,
		log:    log,
		global: semaphore.NewWeighted(int64(opts.MaxInflightGlobal)),
		hosts:  make(map[string]*semaphore.Weighted),
	}
}

// Run resolves query and crawls the resulting URLs in the background
func (c *Coordinator) Run(ctx context.Context, query string, method search.Method, pages, perPage int) (*Batch, error) {
	if c.deps.Resolver == nil {
		return nil, errors.NewConfiguration("no search resolver configured", nil)
	}
	urls, err := c.deps.Resolver.Resolve(ctx, query, method, pages, perPage)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, urls), nil
}

// Submit crawls urls in the background and returns the batch handle.
// Cancelling ctx or the batch stops new fetches; URLs already in flight
// finish their fetch, upsert and notify.
func (c *Coordinator) Submit(ctx context.Context, urls iter.Seq[string]) *Batch {
	bctx, cancel := context.WithCancel(ctx)
	batch := newBatch(c.batches.Add(1), cancel)

	go func() {
		defer close(batch.doneCh)
		defer cancel()

		list := slices.Collect(urls)
		batch.estimated.Store(int64(len(list)))
		log := c.log.WithField("batch", batch.ID)
		log.Info().Int("urls", len(list)).Msg("Batch started")

		c.runBatch(bctx, batch, list, log)

		done, estimated := batch.Progress()
		stats := batch.Stats()
		log.Info().
			Int("done", done).
			Int("estimated", estimated).
			Int("inserted", stats.Inserted).
			Int("updated", stats.Updated).
			Int("unchanged", stats.Unchanged).
			Int("parse_failed", stats.ParseFailed).
			Int("fetch_failed", stats.FetchFailed).
			Int("store_failed", stats.StoreFailed).
			Int("skipped", stats.Skipped).
			Int("cancelled", stats.Cancelled).
			Dur("elapsed", timeSince(batch.Started)).
			Msg("Batch finished")
	}()

	return batch
}

// job is one routable URL of a batch
type job struct {
	url     string
	extract extractor.ExtractFunc
}

func (c *Coordinator) runBatch(ctx context.Context, batch *Batch, urls []string, log *logger.Logger) {
	unknown := make(map[string]bool)
	queues := make(map[string][]job)
	var hosts []string

	for _, raw := range urls {
		pageURL, err := helpers.CanonicalURL(raw)
		if err != nil {
			log.Warn().Str("url", raw).Err(err).Msg("Skipping invalid URL")
			batch.record(OutcomeSkipped)
			continue
		}

		extract, host, err := c.deps.Dispatcher.Lookup(pageURL)
		if err != nil {
			if !unknown[host] {
				unknown[host] = true
				log.Warn().
					Str("url", pageURL).
					Str("host", host).
					Str("kind", string(errors.KindOf(err))).
					Msg("Unknown host, dropping URL")
			}
			batch.record(OutcomeSkipped)
			continue
		}

		if _, ok := queues[host]; !ok {
			hosts = append(hosts, host)
		}
		queues[host] = append(queues[host], job{url: pageURL, extract: extract})
	}

	// Each host gets at most MaxInflightPerHost workers. A worker holds its
	// host slot before asking for a global one, so a long queue on one host
	// never parks global slots that other hosts could use.
	var g errgroup.Group
	for _, host := range hosts {
		jobs := make(chan job, len(queues[host]))
		for _, j := range queues[host] {
			jobs <- j
		}
		close(jobs)

		for range min(c.opts.MaxInflightPerHost, len(queues[host])) {
			g.Go(func() error {
				c.hostWorker(ctx, batch, host, jobs, log)
				return nil
			})
		}
	}

	_ = g.Wait()
}

// hostWorker drains jobs of one host. Once ctx is cancelled the remaining
// jobs are counted as cancelled; a job already being processed finishes.
func (c *Coordinator) hostWorker(ctx context.Context, batch *Batch, host string, jobs <-chan job, log *logger.Logger) {
	// in-flight work outlives cancellation of the batch
	work := context.WithoutCancel(ctx)
	sem := c.hostSemaphore(host)

	for j := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			batch.record(OutcomeCancelled)
			continue
		}
		if err := c.global.Acquire(ctx, 1); err != nil {
			sem.Release(1)
			batch.record(OutcomeCancelled)
			continue
		}

		outcome, notified := c.process(work, j.url, j.extract, log)
		batch.notified.Add(int64(notified))
		batch.record(outcome)

		c.global.Release(1)
		sem.Release(1)
	}
}

// process runs fetch, extract, upsert and notify for one URL
func (c *Coordinator) process(ctx context.Context, pageURL string, extract extractor.ExtractFunc, log *logger.Logger) (Outcome, int) {
	log = log.WithField("url", pageURL)

	page, err := c.deps.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		kind := errors.KindOf(err)
		if errors.IsPermanentFetch(err) {
			c.markUnavailable(ctx, pageURL, log)
		}
		log.Warn().Err(err).Str("kind", string(kind)).Msg("Fetch failed")
		return OutcomeFetchFailed, 0
	}

	rec, err := safeExtract(extract, page.Body, pageURL)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(errors.ErrorTypeParsing)).Msg("Parse failed")
		c.markUnavailable(ctx, pageURL, log)
		return OutcomeParseFailed, 0
	}
	rec.URL = pageURL

	res, err := c.deps.Repository.Upsert(ctx, *rec)
	if err != nil {
		log.Error().Err(err).Str("kind", string(errors.KindOf(err))).Msg("Upsert failed")
		return OutcomeStoreFailed, 0
	}

	log.Debug().
		Str("action", string(res.Action)).
		Int64("product_id", res.ProductID).
		Str("price", res.NewPrice.String()).
		Str("currency", res.NewCurrency).
		Msg("Product stored")

	notified := 0
	if c.deps.Notifier != nil && res.IsPriceDrop() {
		report, err := c.deps.Notifier.Notify(ctx, *rec, res)
		if err != nil {
			log.Error().Err(err).Int64("product_id", res.ProductID).Msg("Notification fan-out failed")
		}
		notified = report.Sent
	}

	switch res.Action {
	case model.ActionInserted:
		return OutcomeInserted, notified
	case model.ActionUpdated:
		return OutcomeUpdated, notified
	default:
		return OutcomeUnchanged, notified
	}
}

func (c *Coordinator) markUnavailable(ctx context.Context, pageURL string, log *logger.Logger) {
	marked, err := c.deps.Repository.MarkUnavailable(ctx, pageURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark product unavailable")
		return
	}
	if marked {
		log.Info().Msg("Product marked out of stock")
	}
}

// hostSemaphore returns the in-flight limiter of host
func (c *Coordinator) hostSemaphore(host string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()

	sem, ok := c.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(int64(c.opts.MaxInflightPerHost))
		c.hosts[host] = sem
	}
	return sem
}

// safeExtract turns an extractor panic into a parsing error
func safeExtract(extract extractor.ExtractFunc, body []byte, pageURL string) (rec *model.ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = errors.NewParsing("extractor", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return extract(body, pageURL)
}
