package redis

import (
	"context"
	"time"

	"estate-market-backend/internal/repository"

	"github.com/redis/go-redis/v9"
)

type tokenRevocation struct {
	client *redis.Client
	prefix string
}

// NewTokenRevocation stores revoked token ids as keys that expire together
// with the token.
func NewTokenRevocation(client *redis.Client, prefix string) repository.TokenRevocationRepository {
	return &tokenRevocation{client: client, prefix: prefix}
}

func (r *tokenRevocation) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	return r.client.SetNX(ctx, r.prefix+jti, 1, ttl).Result()
}

func (r *tokenRevocation) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
