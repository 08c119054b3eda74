package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache. Records are stored as JSON
// under market:{address} with the address lower-cased, so checksummed and
// plain hex lookups hit the same entry.
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.driver(), ttl: marketTTL}
}

func marketKey(address string) string { return "market:" + strings.ToLower(address) }

func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.Address, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(market.Address), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.Address, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, address string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", address, err)
	}
	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", address, err)
	}
	return market, nil
}

func (mc *MarketCache) Invalidate(ctx context.Context, address string) error {
	if err := mc.rdb.Del(ctx, marketKey(address)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", address, err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
