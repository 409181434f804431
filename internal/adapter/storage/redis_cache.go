package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	quantityKeyPrefix = "qty:"
	requestKeyPrefix  = "request:"

	// InvalidationChannel carries item IDs whose cached balance went stale.
	// Consumers (UI gateways, sibling processes) subscribe to decide when to
	// reload.
	InvalidationChannel = "stock:invalidations"

	quantityTTL  = 5 * time.Minute
	requestIDTTL = 24 * time.Hour
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) GetQuantity(ctx context.Context, itemID string) (int, bool, error) {
	val, err := r.client.Get(ctx, quantityKeyPrefix+itemID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (r *RedisCache) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	return r.client.Set(ctx, quantityKeyPrefix+itemID, quantity, quantityTTL).Err()
}

func (r *RedisCache) Invalidate(ctx context.Context, itemID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, quantityKeyPrefix+itemID)
	pipe.Publish(ctx, InvalidationChannel, itemID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) SetRequestID(ctx context.Context, requestID string) (bool, error) {
	return r.client.SetNX(ctx, requestKeyPrefix+requestID, 1, requestIDTTL).Result()
}

// SubscribeInvalidations forwards invalidation events to onItem until ctx is
// cancelled.
func (r *RedisCache) SubscribeInvalidations(ctx context.Context, onItem func(itemID string)) {
	sub := r.client.Subscribe(ctx, InvalidationChannel)

	go func() {
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
				onItem(msg.Payload)
			}
		}
	}()
}
