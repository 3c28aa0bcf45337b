package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for delivery keys.
const deliveryKeyPrefix = "ingress:delivery:"

// RedisStore is the shared implementation for horizontally scaled
// deployments. SET NX PX is a single conditional insert, so two instances
// racing on the same key cannot both win; expiry is handled server-side, no
// purge pass needed.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisStore wraps an existing client; its lifecycle stays with the
// caller.
func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

func (s *RedisStore) CheckAndStore(ctx context.Context, key string) (bool, error) {
	stored, err := s.client.SetNX(ctx, deliveryKeyPrefix+key, "1", s.window).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency check: %w", err)
	}
	return stored, nil
}
