package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/erazemk/najdeno/internal/model"
)

const relayChannelPrefix = "najdeno:room:"

// RedisRelay shares persisted messages between server instances through
// Redis pub/sub. Each instance publishes what its own members post and
// delivers what the others publish.
type RedisRelay struct {
	client *redis.Client
	origin string
	logger *slog.Logger
}

type envelope struct {
	Origin  string         `json:"origin"`
	Message *model.Message `json:"message"`
}

// NewRedisRelay connects to Redis and checks the connection.
func NewRedisRelay(ctx context.Context, addr, password string, db int) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisRelay{
		client: client,
		origin: uuid.NewString(),
		logger: slog.Default().With("component", "relay"),
	}, nil
}

// Publish sends msg to the other instances.
func (r *RedisRelay) Publish(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(envelope{Origin: r.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("encoding relayed message: %w", err)
	}
	if err := r.client.Publish(ctx, relayChannelPrefix+msg.ConversationID, data).Err(); err != nil {
		return fmt.Errorf("publishing relayed message: %w", err)
	}
	return nil
}

// Run delivers messages published by other instances to hub until ctx is
// done. A single subscription keeps each room's messages in publish order.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, hub, m.Channel, m.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, hub *Hub, channel, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Message == nil {
		r.logger.Warn("dropping malformed relayed message", "channel", channel, "error", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	if strings.TrimPrefix(channel, relayChannelPrefix) != env.Message.ConversationID {
		r.logger.Warn("relayed message on wrong channel", "channel", channel, "conversation", env.Message.ConversationID)
		return
	}
	hub.Deliver(ctx, env.Message)
}

// Close closes the Redis connection.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
