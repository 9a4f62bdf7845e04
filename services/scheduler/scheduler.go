// Package scheduler periodically re-crawls every stored product.
package scheduler

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/services/coordinator"
	"sjsage522/pricetracker/services/publisher"
)

// ErrRefreshRunning is returned when a refresh is requested while the
// previous one has not finished.
var ErrRefreshRunning = errors.New("refresh already running")

// ErrStopped is returned by RunOnce after Shutdown.
var ErrStopped = errors.New("scheduler stopped")

// URLLister lists the URLs to refresh
type URLLister interface {
	ListAllURLs(ctx context.Context) ([]string, error)
}

// Submitter starts a crawl batch
type Submitter interface {
	Submit(ctx context.Context, urls iter.Seq[string]) *coordinator.Batch
}

// Options control the refresh cadence
type Options struct {
	Interval     time.Duration
	DrainTimeout time.Duration
	RunOnStart   bool
}

// Scheduler handles the periodic refresh of stored products
type Scheduler struct {
	urls      URLLister
	coord     Submitter
	publisher publisher.Publisher
	log       *logger.Logger
	opts      Options

	mu      sync.Mutex
	current *coordinator.Batch
	stopped bool

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler. pub may be nil.
func New(urls URLLister, coord Submitter, pub publisher.Publisher, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 60 * time.Second
	}
	if pub == nil {
		pub = publisher.NopPublisher{}
	}

	return &Scheduler{
		urls:      urls,
		coord:     coord,
		publisher: pub,
		log:       logger.ForScheduler(),
		opts:      opts,
		stop:      make(chan struct{}),
	}
}

// Start runs refreshes every interval until ctx ends or Shutdown is called
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.opts.Interval).Msg("Refresh scheduler started")

	if s.opts.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Refresh scheduler stopped")
			return
		case <-s.stop:
			s.log.Info().Msg("Refresh scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		switch {
		case errors.Is(err, ErrRefreshRunning):
			s.log.Warn().Msg("Previous refresh still running, skipping tick")
			return
		case errors.Is(err, ErrStopped):
			return
		}
		s.log.Error().Err(err).Msg("Refresh failed to start")
	}
}

// RunOnce starts a refresh of every stored URL. At most one refresh runs
// at a time.
func (s *Scheduler) RunOnce(ctx context.Context) (*coordinator.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}
	if s.current != nil {
		return nil, ErrRefreshRunning
	}

	urls, err := s.urls.ListAllURLs(ctx)
	if err != nil {
		return nil, err
	}

	batch := s.coord.Submit(ctx, slices.Values(urls))
	s.current = batch
	s.log.Info().Int64("batch", batch.ID).Int("urls", len(urls)).Msg("Refresh started")

	go s.watch(batch)
	return batch, nil
}

// watch clears the running flag and trims event streams once batch ends
func (s *Scheduler) watch(batch *coordinator.Batch) {
	<-batch.Done()

	stats := batch.Stats()
	s.log.Info().
		Int64("batch", batch.ID).
		Int("updated", stats.Updated).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.ParseFailed+stats.FetchFailed+stats.StoreFailed).
		Dur("elapsed", time.Since(batch.Started)).
		Msg("Refresh finished")

	if err := s.publisher.TrimStreams(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("Stream trimming failed")
	}

	s.mu.Lock()
	if s.current == batch {
		s.current = nil
	}
	s.mu.Unlock()
}

// Running reports whether a refresh is in progress
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Shutdown stops the ticker, cancels the running refresh and waits up to
// the drain timeout for in-flight URLs to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	s.stopped = true
	batch := s.current
	s.mu.Unlock()
	if batch == nil {
		return nil
	}

	batch.Cancel()
	drainCtx, cancel := context.WithTimeout(ctx, s.opts.DrainTimeout)
	defer cancel()

	if err := batch.Wait(drainCtx); err != nil {
		done, estimated := batch.Progress()
		s.log.Warn().Int("done", done).Int("estimated", estimated).Msg("Refresh did not drain in time")
		return err
	}
	return nil
}
