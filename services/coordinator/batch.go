package coordinator

import (
	"context"
	"sync/atomic"
	"time"
)

// Outcome is what happened to one URL of a batch
type Outcome string

// Possible outcomes
const (
	OutcomeInserted    Outcome = "inserted"
	OutcomeUpdated     Outcome = "updated"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeParseFailed Outcome = "parse_failed"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeStoreFailed Outcome = "store_failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeCancelled   Outcome = "cancelled"
)

// Stats counts batch outcomes
type Stats struct {
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	ParseFailed int `json:"parse_failed"`
	FetchFailed int `json:"fetch_failed"`
	StoreFailed int `json:"store_failed"`
	Skipped     int `json:"skipped"`
	Cancelled   int `json:"cancelled"`
	Notified    int `json:"notified"`
}

// Batch is the progress handle of one crawl
type Batch struct {
	ID      int64
	Started time.Time

	estimated atomic.Int64
	done      atomic.Int64
	counters  map[Outcome]*atomic.Int64
	notified  atomic.Int64

	cancel context.CancelFunc
	doneCh chan struct{}
}

func newBatch(id int64, cancel context.CancelFunc) *Batch {
	b := &Batch{
		ID:       id,
		Started:  time.Now(),
		counters: make(map[Outcome]*atomic.Int64),
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
	for _, o := range []Outcome{
		OutcomeInserted, OutcomeUpdated, OutcomeUnchanged, OutcomeParseFailed,
		OutcomeFetchFailed, OutcomeStoreFailed, OutcomeSkipped, OutcomeCancelled,
	} {
		b.counters[o] = new(atomic.Int64)
	}
	return b
}

// Progress returns how many URLs were processed and how many the batch holds
func (b *Batch) Progress() (done, estimated int) {
	return int(b.done.Load()), int(b.estimated.Load())
}

// Cancel stops submitting new URLs. URLs already being processed finish.
func (b *Batch) Cancel() {
	b.cancel()
}

// Done is closed once every submitted URL has finished
func (b *Batch) Done() <-chan struct{} {
	return b.doneCh
}

// Wait blocks until the batch finishes or ctx ends
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the outcome counters
func (b *Batch) Stats() Stats {
	return Stats{
		Inserted:    int(b.counters[OutcomeInserted].Load()),
		Updated:     int(b.counters[OutcomeUpdated].Load()),
		Unchanged:   int(b.counters[OutcomeUnchanged].Load()),
		ParseFailed: int(b.counters[OutcomeParseFailed].Load()),
		FetchFailed: int(b.counters[OutcomeFetchFailed].Load()),
		StoreFailed: int(b.counters[OutcomeStoreFailed].Load()),
		Skipped:     int(b.counters[OutcomeSkipped].Load()),
		Cancelled:   int(b.counters[OutcomeCancelled].Load()),
		Notified:    int(b.notified.Load()),
	}
}

// record counts a finished URL. Cancelled URLs never started, so they do
// not advance progress.
func (b *Batch) record(o Outcome) {
	b.counters[o].Add(1)
	if o != OutcomeCancelled {
		b.done.Add(1)
	}
}

func timeSince(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}
