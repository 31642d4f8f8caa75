package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"notice-bot/api/internal/ocr"
)

// TextCache keeps recognized text per image in Redis so repeated uploads skip the OCR call.
type TextCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTextCache(rdb *redis.Client, ttl time.Duration) *TextCache {
	return &TextCache{rdb: rdb, ttl: ttl}
}

func cacheKey(engine, imageHash string) string {
	return "ocr:" + engine + ":" + imageHash
}

// Get returns the cached result. A miss is (zero, false, nil).
func (c *TextCache) Get(ctx context.Context, engine, imageHash string) (ocr.Result, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(engine, imageHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ocr.Result{}, false, nil
	}
	if err != nil {
		return ocr.Result{}, false, err
	}
	var res ocr.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		// broken entry counts as a miss
		return ocr.Result{}, false, nil
	}
	return res, true, nil
}

func (c *TextCache) Set(ctx context.Context, engine, imageHash string, res ocr.Result) error {
	js, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(engine, imageHash), js, c.ttl).Err()
}

func (c *TextCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
