// Package types defines the wire format of the counter endpoints.
package types

// UpdateCounterRequest is the body of POST /update_counter/. user_id and
// friend_id are required; chat_id and unread_messages are persisted as
// given and default to zero when omitted.
type UpdateCounterRequest struct {
	UserID         *int64 `json:"user_id"`
	FriendID       *int64 `json:"friend_id"`
	ChatID         *int64 `json:"chat_id"`
	UnreadMessages *int64 `json:"unread_messages"`
}

// UpdateCounterResponse acknowledges a durable counter write. The cache
// refresh outcome deliberately does not influence it.
type UpdateCounterResponse struct {
	Success bool `json:"success"`
}
