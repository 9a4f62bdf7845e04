// Package notifier tells users about price drops on products they track.
package notifier

import (
	"context"
	"fmt"
	"time"

	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/pkg/currency"
	"sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/publisher"
)

// Subject is the subject line of every price drop email.
const Subject = "Price Change Notification"

// TrackerLister returns the users tracking a product.
type TrackerLister interface {
	ListTrackers(ctx context.Context, productID int64) ([]model.User, error)
}

// Report counts what one fan-out did.
type Report struct {
	Attempted int
	Sent      int
	Failed    int
	Skipped   int
}

// FanOut sends one email per confirmed tracker when a price drops.
type FanOut struct {
	trackers  TrackerLister
	sender    Sender
	publisher publisher.Publisher
	log       *logger.Logger
	now       func() time.Time
}

// New creates a FanOut. pub may be nil.
func New(trackers TrackerLister, sender Sender, pub publisher.Publisher) *FanOut {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &FanOut{
		trackers:  trackers,
		sender:    sender,
		publisher: pub,
		log:       logger.ForNotifier(),
		now:       time.Now,
	}
}

// Notify reacts to the result of an upsert. Nothing happens unless the
// price dropped. Send failures are logged per recipient and do not stop the
// fan-out; only failing to list trackers is returned.
func (f *FanOut) Notify(ctx context.Context, rec model.ProductRecord, res model.UpsertResult) (Report, error) {
	var report Report
	if !res.IsPriceDrop() {
		return report, nil
	}

	f.publishEvent(ctx, rec, res)

	users, err := f.trackers.ListTrackers(ctx, res.ProductID)
	if err != nil {
		return report, fmt.Errorf("list trackers of product %d: %w", res.ProductID, err)
	}

	body := Body(rec.Title, res.NewPrice.StringFixed(2), res.NewCurrency, rec.URL)
	for _, u := range users {
		if !u.IsEmailConfirmed {
			report.Skipped++
			continue
		}

		report.Attempted++
		if err := f.sender.Send(ctx, u.EmailAddress, Subject, body); err != nil {
			report.Failed++
			f.log.Error().
				Err(errors.NewNotify("email", "send failed", err)).
				Int64("user_id", u.ID).
				Int64("product_id", res.ProductID).
				Msg("Failed to send price drop notification")
			continue
		}
		report.Sent++
	}

	f.log.Info().
		Int64("product_id", res.ProductID).
		Str("old_price", res.OldPrice.String()).
		Str("new_price", res.NewPrice.String()).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Price drop fan-out finished")

	return report, nil
}

// publishEvent pushes the drop to the event stream; failures are only logged
func (f *FanOut) publishEvent(ctx context.Context, rec model.ProductRecord, res model.UpsertResult) {
	ev := publisher.PriceDropEvent{
		ProductID:  res.ProductID,
		URL:        rec.URL,
		Title:      rec.Title,
		OldPrice:   res.OldPrice,
		NewPrice:   res.NewPrice,
		Currency:   res.NewCurrency,
		ObservedAt: f.now().UTC(),
	}
	if err := publisher.PublishPriceDrop(ctx, f.publisher, ev); err != nil {
		f.log.Warn().
			Err(errors.NewNotify("publisher", "publish failed", err)).
			Int64("product_id", res.ProductID).
			Msg("Failed to publish price drop event")
	}
}

// Body renders the email text for a price drop.
func Body(title, price, code, url string) string {
	return fmt.Sprintf("Good news! The price of %q has dropped to %s%s.\n\n%s\n",
		title, currency.CodeToSymbol(code), price, url)
}
