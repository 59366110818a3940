package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"snaplink/internal/apperrs"
)

// Source hands out globally unique, monotonically increasing values. It is
// the single serialization point of the whole service; everything else runs
// without coordination.
type Source interface {
	Next(ctx context.Context) (int64, error)
}

// counterKey is a single well-known key, deliberately outside the link:
// cache namespace so a cache flush pattern can never touch it.
const counterKey = "seq:short_links"

const nextTimeout = 2 * time.Second

type redisSource struct {
	client *redis.Client
}

// NewRedisSource creates a Source backed by Redis INCR. The counter must live
// in a persistent Redis (AOF or RDB) so issued values survive restarts.
func NewRedisSource(client *redis.Client) Source {
	return &redisSource{client: client}
}

// Next returns the next counter value. INCR is atomic server-side, so two
// concurrent callers in any number of processes never observe the same value.
// The first call returns 1, never 0.
//
// Any failure, including a timeout, maps to ErrUnavailable: there is no
// non-atomic fallback, a creation attempt must simply be aborted.
func (s *redisSource) Next(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, nextTimeout)
	defer cancel()

	n, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: sequence incr: %v", apperrs.ErrUnavailable, err)
	}
	return n, nil
}
