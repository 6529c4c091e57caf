package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService is the SettledPaymentCache shared by every instance of the
// service.
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisService wraps an already connected client.
func NewRedisService(client *redis.Client, ttl time.Duration) *RedisService {
	if ttl <= 0 {
		ttl = defaultSettledTTL
	}
	return &RedisService{client: client, ttl: ttl}
}

// NewRedisServiceFromURL connects to redisURL and checks the connection
func NewRedisServiceFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisService, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisService(client, ttl), nil
}

func settledKey(paymentID string) string {
	return fmt.Sprintf("settled_payment:%s", paymentKey(paymentID))
}

// IsSettled checks whether paymentID was marked within the TTL
func (r *RedisService) IsSettled(ctx context.Context, paymentID string) (bool, error) {
	exists, err := r.client.Exists(ctx, settledKey(paymentID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MarkSettled records paymentID. An existing mark keeps its original expiry.
func (r *RedisService) MarkSettled(ctx context.Context, paymentID string) error {
	return r.client.SetNX(ctx, settledKey(paymentID), time.Now().Unix(), r.ttl).Err()
}
