package infra

import (
	"context"
	"encoding/json"
	"time"

	"stockreserve/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis creates a go-redis client from a redis:// URL and checks it
// answers PING.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

const stockCachePrefix = "stock:"

// StockCache keeps the display view of a SKU in Redis for a short TTL. It is
// best effort: every Redis error degrades to a cache miss.
type StockCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStockCache(rdb redis.Cmdable, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StockCache{rdb: rdb, ttl: ttl}
}

func (c *StockCache) Get(ctx context.Context, sku string) (*dto.StockResponse, bool) {
	raw, err := c.rdb.Get(ctx, stockCachePrefix+sku).Bytes()
	if err != nil {
		return nil, false
	}
	var resp dto.StockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (c *StockCache) Set(ctx context.Context, stock *dto.StockResponse) {
	b, err := json.Marshal(stock)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, stockCachePrefix+stock.SKU, b, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("sku", stock.SKU).Msg("stock cache: set failed")
	}
}

func (c *StockCache) Invalidate(ctx context.Context, skus ...string) {
	if len(skus) == 0 {
		return
	}
	keys := make([]string, len(skus))
	for i, sku := range skus {
		keys[i] = stockCachePrefix + sku
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("skus", skus).Msg("stock cache: invalidate failed")
	}
}
