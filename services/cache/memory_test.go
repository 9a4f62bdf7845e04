package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryService(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryService()
	m.now = func() time.Time { return now }

	assert.NoError(t, m.Set("k", []byte("v"), time.Minute))

	value, err := m.Get("k")
	assert.NoError(t, err)
	assert.Equal(t, "v", string(value))

	now = now.Add(time.Minute)
	_, err = m.Get("k")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, m.Set("k", []byte("v"), time.Minute))
	assert.NoError(t, m.Delete("k"))
	_, err = m.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestHostBlocker(t *testing.T) {
	b := NewHostBlocker(NewMemoryService(), 5*time.Minute)

	blocked, _ := b.Blocked("amazon.com")
	assert.False(t, blocked)

	b.Block("amazon.com")

	blocked, remaining := b.Blocked("amazon.com")
	assert.True(t, blocked)
	assert.InDelta(t, (5 * time.Minute).Seconds(), remaining.Seconds(), 2)

	blocked, _ = b.Blocked("ebay.com")
	assert.False(t, blocked)

	assert.NoError(t, b.Unblock("amazon.com"))
	blocked, _ = b.Blocked("amazon.com")
	assert.False(t, blocked)
}
