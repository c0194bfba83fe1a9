package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/chronicae/chronicler/pkg/config"
)

// NewRedisClient creates a Redis client and verifies the connection.
// Queue state lives in Redis, so startup retries the ping for a while
// instead of failing on a slow container boot.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("⏳ Redis not ready yet: %v", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.GetRedisAddr(), err)
	}

	log.Println("✅ Redis connected successfully")
	return client, nil
}
