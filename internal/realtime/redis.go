package realtime

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
)

// NewRedis creates a new Redis client
func NewRedis(cfg *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	logger.Info("redis client created", "addr", cfg.RedisAddr)
	return rdb
}

// Relay subscribes to every notifications:* channel and hands each message
// to the local clients of the addressed user. It returns when ctx is done.
func Relay(ctx context.Context, rdb *redis.Client, hub *Hub) {
	sub := rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				logger.Warn("notification on malformed channel", "channel", msg.Channel)
				continue
			}
			hub.SendToUser(userID, []byte(msg.Payload))
		}
	}
}
