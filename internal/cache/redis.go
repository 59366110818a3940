package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the code has no cached entry. Callers
// treat every other cache error the same way: fall through to the database.
var ErrCacheMiss = errors.New("cache miss")

// Entry is the cached projection of a short link. ExpiresAt mirrors the
// link's logical expiry; the Redis-level TTL on the key is only a staleness
// bound and must never be trusted as proof of validity. Readers re-check
// ExpiresAt against the clock on every hit.
type Entry struct {
	LongURL   string     `json:"long_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry's logical expiry has passed at now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// LinkCache is the fast resolution path keyed by short code.
type LinkCache interface {
	Put(ctx context.Context, code string, entry Entry) error
	Get(ctx context.Context, code string) (Entry, error)
	Delete(ctx context.Context, code string) error
}

const (
	linkKeyPrefix = "link:"
	opTimeout     = 1 * time.Second
)

type redisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewClient connects to Redis and verifies the connection. Accepts either a
// redis:// URL or a plain host:port address.
func NewClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Not a URL, try as plain host:port.
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewRedisCache creates a LinkCache on top of an existing Redis client.
// defaultTTL bounds staleness for entries whose link never expires.
func NewRedisCache(client *redis.Client, defaultTTL time.Duration) LinkCache {
	return &redisCache{client: client, defaultTTL: defaultTTL}
}

// Put stores the entry under link:<code> with a storage TTL per TTLFor.
func (r *redisCache) Put(ctx context.Context, code string, entry Entry) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	ttl := TTLFor(entry.ExpiresAt, time.Now(), r.defaultTTL)
	return r.client.Set(ctx, linkKeyPrefix+code, data, ttl).Err()
}

// Get retrieves the entry for code, or ErrCacheMiss.
func (r *redisCache) Get(ctx context.Context, code string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, linkKeyPrefix+code).Result()
	if err == redis.Nil {
		return Entry{}, ErrCacheMiss
	}
	if err != nil {
		return Entry{}, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return entry, nil
}

// Delete removes the entry for code. Deleting an absent key is a no-op.
func (r *redisCache) Delete(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.client.Del(ctx, linkKeyPrefix+code).Err()
}

// TTLFor implements the storage-TTL policy: for an expiring link the key
// lives exactly until the logical expiry; for a non-expiring link defaultTTL
// bounds how stale the copy can get. Already-expired input yields a minimal
// TTL rather than zero, because zero means "no expiry" to Redis.
func TTLFor(expiresAt *time.Time, now time.Time, defaultTTL time.Duration) time.Duration {
	if expiresAt == nil {
		return defaultTTL
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return time.Millisecond
	}
	return ttl
}
