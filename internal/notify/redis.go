package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch-service/internal/logger"
)

const publishTimeout = 2 * time.Second

// Redis publishes notifications as JSON on a pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedis(client *redis.Client, channel string, log logger.Logger) *Redis {
	return &Redis{client: client, channel: channel, log: log}
}

func (r *Redis) Notify(ctx context.Context, n Notification) {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	if err := r.publish(ctx, n); err != nil {
		r.log.Warn("Failed to publish notification",
			logger.String("user_id", n.UserID),
			logger.JobID(n.JobID),
			logger.String("kind", string(n.Kind)),
			logger.Error(err),
		)
	}
}

func (r *Redis) publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
