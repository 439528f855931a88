package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"streampack/internal/config"
)

const redisKeyPrefix = "streampack:job:"

// Redis mirrors the latest job state into a hash and publishes each event on
// a channel.
type Redis struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
}

// NewRedis connects lazily; the first publish dials.
func NewRedis(cfg config.Events) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisWithClient(client, cfg.RedisChannel, time.Duration(cfg.RedisTTLHours)*time.Hour)
}

// NewRedisWithClient uses an existing client.
func NewRedisWithClient(client *redis.Client, channel string, ttl time.Duration) *Redis {
	return &Redis{client: client, channel: channel, ttl: ttl}
}

// RedisKey returns the hash key holding a job's latest state.
func RedisKey(jobID string) string {
	return redisKeyPrefix + jobID
}

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	key := RedisKey(ev.JobID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"status", string(ev.Status),
			"title", ev.Title,
			"error", ev.Error,
			"updated_at", ev.At.UTC().Format(time.RFC3339),
		)
		if ev.Status.Terminal() && r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		pipe.Publish(ctx, r.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
