// Package publisher pushes pipeline events to a message stream.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to the stream under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// PriceDropKey is the stream field price-drop events are stored under
const PriceDropKey = "price_drop"

// PriceDropEvent is published whenever a tracked price goes down
type PriceDropEvent struct {
	ProductID  int64           `json:"product_id"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	OldPrice   decimal.Decimal `json:"old_price"`
	NewPrice   decimal.Decimal `json:"new_price"`
	Currency   string          `json:"currency"`
	ObservedAt time.Time       `json:"observed_at"`
}

// PublishPriceDrop encodes ev as JSON and publishes it
func PublishPriceDrop(ctx context.Context, p Publisher, ev PriceDropEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal price drop event: %w", err)
	}
	return p.Publish(ctx, PriceDropKey, payload)
}

// NopPublisher drops every message. It stands in when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }

// TrimStreams implements Publisher
func (NopPublisher) TrimStreams(context.Context) error { return nil }

// Close implements Publisher
func (NopPublisher) Close() error { return nil }
