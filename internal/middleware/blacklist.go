package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenBlacklist implements TokenBlacklist using Redis.
type RedisTokenBlacklist struct {
	client *redis.Client
}

func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

// Blacklist revokes a token until expiration. The portal that issued the
// token calls this on logout through the shared Redis.
func (b *RedisTokenBlacklist) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	return b.client.Set(ctx, "sacco:blacklist:"+token, "revoked", expiration).Err()
}

func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := b.client.Exists(ctx, "sacco:blacklist:"+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
