package counter

import (
	"context"
	"fmt"

	"github.com/talkline/counters/internal/database/types"
	"go.uber.org/zap"
)

// Store is the durable side of the counter protocol, implemented by
// models.CounterModel. The store is the system of record; its failures are
// fatal to the current request.
type Store interface {
	GetCounters(ctx context.Context, userID int64, friendIDs []int64) ([]types.UserUnreadCounter, error)
	UpsertCounter(ctx context.Context, counter *types.UserUnreadCounter) error
}

// UpdateParams carries a single counter update. ChatID and UnreadMessages
// default to zero when the caller omits them.
type UpdateParams struct {
	UserID         int64
	FriendID       int64
	ChatID         int64
	UnreadMessages int64
}

// Service implements the counter read/write consistency protocol: reads are
// served from cache with fallback to the durable store, writes go through
// the store first and refresh the cache only when an entry already exists.
type Service struct {
	store   Store // write side, primary pool
	roStore Store // read side, replica pool when configured
	cache   *Cache
	logger  *zap.Logger
}

// NewService creates the counter service. cache may be nil, in which case
// every read goes straight to the durable store.
func NewService(store, roStore Store, cache *Cache, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		roStore: roStore,
		cache:   cache,
		logger:  logger.Named("counter"),
	}
}

// GetCounters returns the unread counts for the given friend IDs. Friend IDs
// with no cache entry and no durable row are omitted from the result.
//
// A cached zero is indistinguishable from "never cached", so every zero is
// re-verified against the store. Zero counts fetched from the store are not
// written back, which keeps zero pairs permanently un-cached; that is the
// intended pairing with the write path's set-if-exists refresh.
func (s *Service) GetCounters(ctx context.Context, userID int64, friendIDs []int64) (map[int64]int64, error) {
	counters := make(map[int64]int64, len(friendIDs))

	if s.cache != nil {
		hits, err := s.cache.GetCounts(ctx, userID, friendIDs)
		if err != nil {
			// Cache is best-effort; degrade to a full store fallback
			s.logger.Warn("Cache lookup failed, falling back to store",
				zap.Int64("userID", userID),
				zap.Error(err))
		} else {
			for friendID, count := range hits {
				counters[friendID] = count
			}
		}
	}

	fallback := make([]int64, 0, len(friendIDs))

	for _, friendID := range friendIDs {
		if count, ok := counters[friendID]; !ok || count == 0 {
			fallback = append(fallback, friendID)
		}
	}

	// A pass that produced only zeros proves nothing; discard it entirely so
	// a degenerate all-zero map cannot hide real data
	if len(counters) > 0 && allZero(counters) {
		clear(counters)

		fallback = fallback[:0]
		fallback = append(fallback, friendIDs...)
	}

	if len(fallback) == 0 {
		return counters, nil
	}

	rows, err := s.roStore.GetCounters(ctx, userID, fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to load counters for user %d: %w", userID, err)
	}

	repopulate := make(map[int64]int64, len(rows))

	for _, row := range rows {
		counters[row.FriendID] = row.UnreadMessageCount

		// Zero rows are never cached: a cached zero would only force the
		// next read back to the store anyway
		if row.UnreadMessageCount != 0 {
			repopulate[row.FriendID] = row.UnreadMessageCount
		}
	}

	if s.cache != nil {
		if err := s.cache.SetCounts(ctx, userID, repopulate); err != nil {
			s.logger.Warn("Cache repopulation failed",
				zap.Int64("userID", userID),
				zap.Error(err))
		}
	}

	s.logger.Debug("Served counters",
		zap.Int64("userID", userID),
		zap.Int("requested", len(friendIDs)),
		zap.Int("fromStore", len(rows)),
		zap.Int("returned", len(counters)))

	return counters, nil
}

// UpdateCounter durably persists the new count and then refreshes the cache
// entry if one exists. The durable write always completes before the cache
// is touched; a cache failure never surfaces to the caller.
func (s *Service) UpdateCounter(ctx context.Context, params UpdateParams) error {
	counter := &types.UserUnreadCounter{
		UserID:             params.UserID,
		FriendID:           params.FriendID,
		ChatID:             params.ChatID,
		UnreadMessageCount: params.UnreadMessages,
	}

	if err := s.store.UpsertCounter(ctx, counter); err != nil {
		return fmt.Errorf("failed to update counter: %w", err)
	}

	if s.cache != nil {
		refreshed, err := s.cache.Refresh(ctx, params.UserID, params.FriendID, params.UnreadMessages)
		if err != nil {
			s.logger.Warn("Cache refresh failed",
				zap.Int64("userID", params.UserID),
				zap.Int64("friendID", params.FriendID),
				zap.Error(err))
		} else {
			s.logger.Debug("Counter updated",
				zap.Int64("userID", params.UserID),
				zap.Int64("friendID", params.FriendID),
				zap.Bool("cacheRefreshed", refreshed))
		}
	}

	return nil
}

func allZero(counters map[int64]int64) bool {
	for _, count := range counters {
		if count != 0 {
			return false
		}
	}

	return true
}
