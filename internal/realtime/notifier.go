package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
)

const channelPrefix = "notifications:"

// Event is the JSON frame pushed to a user's websocket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	EventOrderCreated        = "order_created"
	EventOrderStatus         = "order_status"
	EventTopUpDecided        = "topup_decided"
	EventVerificationDecided = "verification_decided"
	EventBalanceChanged      = "balance_changed"
	EventChatMessage         = "chat_message"
)

// Notifier delivers best-effort events to a user. Delivery failures are
// logged and never fail the caller; services notify after commit.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, ev Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, Event) {}

func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// RedisNotifier publishes events on notifications:<userID> so every API
// instance can forward them to its own websocket clients.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("marshal notification", "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		logger.Warn("publish notification failed", "user_id", userID, "error", err)
	}
}
