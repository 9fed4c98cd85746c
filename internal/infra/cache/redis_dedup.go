package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "leadrelay:"

// RedisDeduper claims keys with SET NX EX so every replica sees the same claims.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

// Ping is used by the health check.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// ConnectRedis builds a client and logs whether the server answered.
func ConnectRedis(ctx context.Context, addr, password string) *redis.Client {
	client := NewRedisClient(addr, password)
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("⚠️ Redis not reachable at %s: %v", addr, err)
	} else {
		log.Printf("✅ Redis connected (%s)", pong)
	}
	return client
}
