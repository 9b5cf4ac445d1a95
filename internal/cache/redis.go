package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

// MirrorTTL is how long an untouched card mirror survives. Every read pushes
// the expiry out again, so a user who keeps opening the card list offline
// keeps their preview.
const MirrorTTL = 7 * 24 * time.Hour

const mirrorPrefix = "cards:"

// RedisCache stores each user's card mirror as one JSON list under
// "cards:<user>". An empty list is stored as "[]" and is not a miss.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

type RedisOption func(*RedisCache)

func WithMirrorTTL(d time.Duration) RedisOption {
	return func(r *RedisCache) { r.ttl = d }
}

func NewRedisCache(client redis.Cmdable, opts ...RedisOption) *RedisCache {
	r := &RedisCache{client: client, ttl: MirrorTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]domain.SavedCard, error) {
	data, err := r.client.GetEx(ctx, cacheKey(userID), r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read card mirror for %s: %w", userID, err)
	}

	cards := []domain.SavedCard{}
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("unmarshal cards failed: %w", err)
	}
	return cards, nil
}

// Set replaces the whole mirror with cards.
func (r *RedisCache) Set(ctx context.Context, userID string, cards []domain.SavedCard) error {
	if cards == nil {
		cards = []domain.SavedCard{}
	}
	payload, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("marshal cards failed: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("write card mirror for %s: %w", userID, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("drop card mirror for %s: %w", userID, err)
	}
	return nil
}

func cacheKey(userID string) string {
	return mirrorPrefix + userID
}
