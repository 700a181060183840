package models

import (
	"context"
	"fmt"

	"github.com/talkline/counters/internal/database/dbretry"
	"github.com/talkline/counters/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// CounterModel handles database operations for unread message counters.
// The table is the system of record; the Redis projection in
// internal/counter is derived from it and disposable.
type CounterModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCounter creates a CounterModel for managing unread counter rows.
func NewCounter(db *bun.DB, logger *zap.Logger) *CounterModel {
	return &CounterModel{
		db:     db,
		logger: logger.Named("db_counter"),
	}
}

// GetCounters retrieves the counter rows for a user restricted to the given
// friend IDs in a single batched query. Pairs without a row are simply not
// returned.
func (r *CounterModel) GetCounters(
	ctx context.Context, userID int64, friendIDs []int64,
) ([]types.UserUnreadCounter, error) {
	if len(friendIDs) == 0 {
		return nil, nil
	}

	counters, err := dbretry.Operation(ctx, func(ctx context.Context) ([]types.UserUnreadCounter, error) {
		var rows []types.UserUnreadCounter

		err := r.db.NewSelect().
			Model(&rows).
			Where("user_id = ?", userID).
			Where("friend_id IN (?)", bun.In(friendIDs)).
			Scan(ctx)

		return rows, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get counters for user %d: %w", userID, err)
	}

	r.logger.Debug("Retrieved counters",
		zap.Int64("userID", userID),
		zap.Int("requested", len(friendIDs)),
		zap.Int("found", len(counters)))

	return counters, nil
}

// UpsertCounter inserts a counter row or, when a row for the
// (user_id, friend_id) pair already exists, overwrites its unread count.
// chat_id is deliberately left untouched on conflict; the chat association
// is first-write-wins.
func (r *CounterModel) UpsertCounter(ctx context.Context, counter *types.UserUnreadCounter) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(counter).
			On("CONFLICT (user_id, friend_id) DO UPDATE").
			Set("unread_message_count = EXCLUDED.unread_message_count").
			Exec(ctx)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert counter for user %d friend %d: %w",
			counter.UserID, counter.FriendID, err)
	}

	r.logger.Debug("Upserted counter",
		zap.Int64("userID", counter.UserID),
		zap.Int64("friendID", counter.FriendID),
		zap.Int64("unreadCount", counter.UnreadMessageCount))

	return nil
}
