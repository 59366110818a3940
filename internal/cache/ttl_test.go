package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLFor(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	defaultTTL := 24 * time.Hour

	t.Run("no logical expiry uses the staleness bound", func(t *testing.T) {
		assert.Equal(t, defaultTTL, TTLFor(nil, now, defaultTTL))
	})

	t.Run("expiring link lives exactly until its expiry", func(t *testing.T) {
		expiresAt := now.Add(90 * time.Minute)
		assert.Equal(t, 90*time.Minute, TTLFor(&expiresAt, now, defaultTTL))
	})

	t.Run("already expired never yields zero", func(t *testing.T) {
		expiresAt := now.Add(-time.Hour)
		ttl := TTLFor(&expiresAt, now, defaultTTL)
		assert.Greater(t, ttl, time.Duration(0), "zero would mean no expiry to Redis")
		assert.LessOrEqual(t, ttl, time.Millisecond)
	})
}

func TestEntryExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, Entry{LongURL: "https://example.com"}.Expired(now), "no expiry never expires")
	assert.True(t, Entry{LongURL: "https://example.com", ExpiresAt: &past}.Expired(now))
	assert.False(t, Entry{LongURL: "https://example.com", ExpiresAt: &future}.Expired(now))
	assert.True(t, Entry{LongURL: "https://example.com", ExpiresAt: &now}.Expired(now), "expiry boundary counts as expired")
}
