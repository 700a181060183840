package types

import "github.com/uptrace/bun"

// UserUnreadCounter is the durable record of how many messages a user has
// not read in the conversation with a single friend. At most one row exists
// per (user_id, friend_id) pair, enforced by a unique index; the upsert in
// models.CounterModel relies on it.
type UserUnreadCounter struct {
	bun.BaseModel `bun:"table:user_unread_counters"`

	ID       int64 `bun:",pk,autoincrement"` // Surrogate key
	UserID   int64 `bun:",notnull"`          // Owner of the counter
	FriendID int64 `bun:",notnull"`          // Friend the unread messages are from
	ChatID   int64 `bun:",nullzero"`         // Conversation context, set on first write only
	// Unread message count. Stored as NULL when zero; readers treat NULL
	// and zero the same way, so nothing observable depends on the difference.
	UnreadMessageCount int64 `bun:",nullzero"`
}
