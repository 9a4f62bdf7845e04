package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	stream := "test_price_drops"
	publisher := NewRedisPublisher("localhost:6379", 0, stream, 100)
	defer publisher.Close()

	// Test if Redis is available
	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()
	client.Del(ctx, stream)

	ev := PriceDropEvent{
		ProductID:  7,
		URL:        "https://www.amazon.com/dp/B0GPUX",
		Title:      "GPU X",
		OldPrice:   decimal.RequireFromString("500"),
		NewPrice:   decimal.RequireFromString("450"),
		Currency:   "USD",
		ObservedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, PublishPriceDrop(ctx, publisher, ev))

	messages, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var got PriceDropEvent
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values[PriceDropKey].(string)), &got))
	assert.Equal(t, int64(7), got.ProductID)
	assert.Equal(t, "GPU X", got.Title)
	assert.True(t, got.NewPrice.Equal(ev.NewPrice))
	assert.True(t, got.ObservedAt.Equal(ev.ObservedAt))

	assert.NoError(t, publisher.TrimStreams(ctx))
	client.Del(ctx, stream)
}

func TestPriceDropEventJSON(t *testing.T) {
	ev := PriceDropEvent{
		ProductID:  1,
		URL:        "https://www.ebay.com/itm/1",
		Title:      "Camera",
		OldPrice:   decimal.RequireFromString("149.50"),
		NewPrice:   decimal.RequireFromString("120"),
		Currency:   "USD",
		ObservedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	rec := &recordingPublisher{}
	require.NoError(t, PublishPriceDrop(context.Background(), rec, ev))
	assert.Equal(t, PriceDropKey, rec.key)
	assert.JSONEq(t, `{
		"product_id": 1,
		"url": "https://www.ebay.com/itm/1",
		"title": "Camera",
		"old_price": "149.5",
		"new_price": "120",
		"currency": "USD",
		"observed_at": "2024-05-01T12:00:00Z"
	}`, string(rec.message))
}

type recordingPublisher struct {
	NopPublisher
	key     string
	message []byte
}

func (r *recordingPublisher) Publish(_ context.Context, key string, message []byte) error {
	r.key = key
	r.message = message
	return nil
}
