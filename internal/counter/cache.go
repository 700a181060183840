package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// CounterTTL defines how long cached counts remain valid after a write.
	CounterTTL = 60 * time.Second

	// KeyPrefix identifies unread counter entries in Redis.
	KeyPrefix = "unread:"
)

// Key builds the cache key for a (user, friend) pair. The format is
// load-bearing: writers and readers across all processes must agree on it.
func Key(userID, friendID int64) string {
	return fmt.Sprintf("%s%d:%d", KeyPrefix, userID, friendID)
}

// Cache is the volatile projection of the unread counter table. Every entry
// is independently re-derivable from the durable store, so callers treat all
// cache failures as misses rather than errors.
type Cache struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewCache initializes the unread counter cache.
func NewCache(client rueidis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger.Named("counter_cache"),
	}
}

// GetCounts probes the cache for every friend ID in one MGET round trip and
// returns the entries that exist. A present zero is returned as zero, not
// dropped; the caller distinguishes {absent, zero, nonzero} itself.
func (c *Cache) GetCounts(ctx context.Context, userID int64, friendIDs []int64) (map[int64]int64, error) {
	keys := make([]string, len(friendIDs))
	for i, friendID := range friendIDs {
		keys[i] = Key(userID, friendID)
	}

	messages, err := c.client.Do(ctx, c.client.B().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, fmt.Errorf("failed to get counts for user %d: %w", userID, err)
	}

	counts := make(map[int64]int64, len(friendIDs))

	for i, message := range messages {
		raw, err := message.ToString()
		if err != nil {
			if !rueidis.IsRedisNil(err) {
				c.logger.Warn("Unexpected cache reply",
					zap.String("key", keys[i]),
					zap.Error(err))
			}

			continue
		}

		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Treat a corrupt entry as a miss; the read path re-derives it
			c.logger.Warn("Invalid count value in cache",
				zap.String("key", keys[i]),
				zap.String("value", raw))

			continue
		}

		counts[friendIDs[i]] = count
	}

	c.logger.Debug("Probed counter cache",
		zap.Int64("userID", userID),
		zap.Int("requested", len(friendIDs)),
		zap.Int("hits", len(counts)))

	return counts, nil
}

// SetCounts stores the given counts with the standard TTL, pipelining all
// SETs into a single round trip. A failure may leave a subset of keys
// written; that is acceptable since each entry is re-derivable on the next
// read miss.
func (c *Cache) SetCounts(ctx context.Context, userID int64, counts map[int64]int64) error {
	if len(counts) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, len(counts))
	for friendID, count := range counts {
		cmds = append(cmds, c.client.B().
			Set().
			Key(Key(userID, friendID)).
			Value(strconv.FormatInt(count, 10)).
			Ex(CounterTTL).
			Build())
	}

	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to set counts for user %d: %w", userID, err)
		}
	}

	c.logger.Debug("Stored counts in cache",
		zap.Int64("userID", userID),
		zap.Int("entries", len(counts)))

	return nil
}

// Refresh updates an entry with a new count and a fresh TTL, but only when
// the key already exists. Returns whether the entry was refreshed. Writing
// unconditionally would cache zeros the read path refuses to trust and
// would populate keys no reader has asked for.
func (c *Cache) Refresh(ctx context.Context, userID, friendID, count int64) (bool, error) {
	key := Key(userID, friendID)

	err := c.client.Do(ctx, c.client.B().
		Set().
		Key(key).
		Value(strconv.FormatInt(count, 10)).
		Xx().
		Ex(CounterTTL).
		Build()).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			// Key absent; SET XX performed nothing
			return false, nil
		}

		return false, fmt.Errorf("failed to refresh count for key %s: %w", key, err)
	}

	c.logger.Debug("Refreshed cache entry",
		zap.String("key", key),
		zap.Int64("count", count))

	return true, nil
}
