package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGeocodeCache keeps geocoding results in Redis under prefix:sha256(address).
type RedisGeocodeCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGeocodeCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisGeocodeCache {
	return &RedisGeocodeCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisGeocodeCache) key(address string) string {
	sum := sha256.Sum256([]byte(address))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}

func (c *RedisGeocodeCache) Get(ctx context.Context, address string) (Point, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Point{}, false, nil
	}
	if err != nil {
		return Point{}, false, err
	}
	var p Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return Point{}, false, nil
	}
	return p, true, nil
}

func (c *RedisGeocodeCache) Set(ctx context.Context, address string, p Point) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(address), b, c.ttl).Err()
}
