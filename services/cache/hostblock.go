package cache

import (
	"errors"
	"strconv"
	"time"

	"sjsage522/pricetracker/logger"
)

// HostBlocker remembers hosts that asked us to back off (HTTP 429)
type HostBlocker struct {
	cache    CacheService
	duration time.Duration
	log      *logger.Logger
}

// NewHostBlocker creates a HostBlocker that blocks a host for duration
func NewHostBlocker(cache CacheService, duration time.Duration) *HostBlocker {
	return &HostBlocker{cache: cache, duration: duration, log: logger.ForCache()}
}

func blockKey(host string) string {
	return "host_blocked:" + host
}

// Block stops requests to host for the configured duration
func (b *HostBlocker) Block(host string) {
	until := time.Now().Add(b.duration).Unix()
	if err := b.cache.Set(blockKey(host), []byte(strconv.FormatInt(until, 10)), b.duration); err != nil {
		b.log.Warn().Err(err).Str("host", host).Msg("Failed to store host block")
		return
	}
	b.log.Info().Str("host", host).Dur("duration", b.duration).Msg("Host blocked")
}

// Blocked reports whether host is blocked and for how much longer.
// Cache failures are treated as "not blocked".
func (b *HostBlocker) Blocked(host string) (bool, time.Duration) {
	value, err := b.cache.Get(blockKey(host))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			b.log.Warn().Err(err).Str("host", host).Msg("Host block lookup failed")
		}
		return false, 0
	}

	remaining := b.duration
	if until, err := strconv.ParseInt(string(value), 10, 64); err == nil {
		remaining = time.Until(time.Unix(until, 0))
		if remaining < 0 {
			remaining = 0
		}
	}
	return true, remaining
}

// Unblock lifts a block early
func (b *HostBlocker) Unblock(host string) error {
	return b.cache.Delete(blockKey(host))
}
