package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/useQlick/qlickd/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes.
// Each pool's latest observation is stored as a hash at key "price:{pool}"
// with fields "price" (canonical integer price), "tick" (raw venue tick) and
// "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(pool common.Hash) string {
	return "price:" + pool.Hex()
}

// SetPrice stores the latest canonical price, raw tick and timestamp for a
// venue pool.
func (pc *PriceCache) SetPrice(ctx context.Context, pool common.Hash, price uint64, tick int64, ts time.Time) error {
	key := priceKey(pool)
	fields := map[string]interface{}{
		"price": strconv.FormatUint(price, 10),
		"tick":  strconv.FormatInt(tick, 10),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", pool.Hex(), err)
	}
	return nil
}

// GetPrice retrieves the latest canonical price, raw tick and timestamp for a
// venue pool. It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, pool common.Hash) (uint64, int64, time.Time, error) {
	key := priceKey(pool)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", pool.Hex(), err)
	}
	if len(vals) == 0 {
		return 0, 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseUint(priceStr, 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", pool.Hex(), err)
	}

	var tick int64
	if tickStr, ok := vals["tick"]; ok {
		tick, err = strconv.ParseInt(tickStr, 10, 64)
		if err != nil {
			return 0, 0, time.Time{}, fmt.Errorf("redis: parse tick %s: %w", pool.Hex(), err)
		}
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", pool.Hex(), err)
	}

	return price, tick, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
