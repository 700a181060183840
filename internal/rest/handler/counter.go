package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/talkline/counters/internal/counter"
	"github.com/talkline/counters/internal/rest/middleware/session"
	restTypes "github.com/talkline/counters/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CounterService is the part of the counter service the handlers need.
type CounterService interface {
	GetCounters(ctx context.Context, userID int64, friendIDs []int64) (map[int64]int64, error)
	UpdateCounter(ctx context.Context, params counter.UpdateParams) error
}

// CounterHandler handles the counter read and write endpoints.
type CounterHandler struct {
	service CounterService
	logger  *zap.Logger
}

// NewCounterHandler creates a new counter handler.
func NewCounterHandler(service CounterService, logger *zap.Logger) *CounterHandler {
	return &CounterHandler{
		service: service,
		logger:  logger.Named("handler"),
	}
}

// GetCounters serves GET /get_counters/?userId=N&friends=a,b,c. The session
// identity must match the userId parameter; the response maps each friend ID
// with a known count to that count.
func (h *CounterHandler) GetCounters(w http.ResponseWriter, req bunrouter.Request) error {
	ctx := req.Context()

	userID, friendIDs, err := parseCounterQuery(req)
	if err != nil {
		h.logger.Warn("Rejected counter read", zap.Error(err))

		w.WriteHeader(http.StatusBadRequest)

		return bunrouter.JSON(w, bunrouter.H{"error": "userId and friends required"})
	}

	// The identity asserted by the session must match the requested user,
	// independent of cache or store reachability
	uid, ok := session.UserIDFromContext(ctx)
	if !ok || uid != userID {
		w.WriteHeader(http.StatusForbidden)

		return bunrouter.JSON(w, bunrouter.H{"error": "wrong session"})
	}

	counts, err := h.service.GetCounters(ctx, userID, friendIDs)
	if err != nil {
		h.logger.Error("Failed to get counters", zap.Int64("userID", userID), zap.Error(err))

		w.WriteHeader(http.StatusInternalServerError)

		return bunrouter.JSON(w, bunrouter.H{"error": "internal server error"})
	}

	// JSON object keys are strings, matching the original wire format
	response := make(map[string]int64, len(counts))
	for friendID, count := range counts {
		response[strconv.FormatInt(friendID, 10)] = count
	}

	return bunrouter.JSON(w, response)
}

// UpdateCounter serves POST /update_counter/. The durable write must commit
// before success is acknowledged; the cache refresh never affects the
// response.
func (h *CounterHandler) UpdateCounter(w http.ResponseWriter, req bunrouter.Request) error {
	ctx, span := otel.Tracer("rest").Start(req.Context(), "update_counter")
	defer span.End()

	var body restTypes.UpdateCounterRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return bunrouter.JSON(w, bunrouter.H{"error": "invalid json body"})
	}

	if body.UserID == nil {
		w.WriteHeader(http.StatusBadRequest)

		return bunrouter.JSON(w, bunrouter.H{"user_id": "required"})
	}

	if body.FriendID == nil {
		w.WriteHeader(http.StatusBadRequest)

		return bunrouter.JSON(w, bunrouter.H{"friend_id": "required"})
	}

	params := counter.UpdateParams{
		UserID:   *body.UserID,
		FriendID: *body.FriendID,
	}
	if body.ChatID != nil {
		params.ChatID = *body.ChatID
	}

	if body.UnreadMessages != nil {
		params.UnreadMessages = *body.UnreadMessages
	}

	span.SetAttributes(
		attribute.Int64("user_id", params.UserID),
		attribute.Int64("friend_id", params.FriendID),
		attribute.Int64("unread_messages", params.UnreadMessages),
	)

	if err := h.service.UpdateCounter(ctx, params); err != nil {
		h.logger.Error("Failed to update counter",
			zap.Int64("userID", params.UserID),
			zap.Int64("friendID", params.FriendID),
			zap.Error(err))

		w.WriteHeader(http.StatusInternalServerError)

		return bunrouter.JSON(w, bunrouter.H{"error": "internal server error"})
	}

	return bunrouter.JSON(w, restTypes.UpdateCounterResponse{Success: true})
}

// parseCounterQuery validates the read endpoint parameters. Identifiers must
// be positive integers and the friends list non-empty; nothing is guessed on
// malformed input.
func parseCounterQuery(req bunrouter.Request) (int64, []int64, error) {
	query := req.URL.Query()

	userID, err := strconv.ParseInt(query.Get("userId"), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid userId: %w", err)
	}

	if userID <= 0 {
		return 0, nil, fmt.Errorf("invalid userId: %d", userID)
	}

	rawFriends := query.Get("friends")
	if rawFriends == "" {
		return 0, nil, errors.New("friends required")
	}

	parts := strings.Split(rawFriends, ",")
	friendIDs := make([]int64, 0, len(parts))

	for _, part := range parts {
		friendID, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid friend id %q: %w", part, err)
		}

		if friendID <= 0 {
			return 0, nil, fmt.Errorf("invalid friend id: %d", friendID)
		}

		friendIDs = append(friendIDs, friendID)
	}

	return userID, friendIDs, nil
}
