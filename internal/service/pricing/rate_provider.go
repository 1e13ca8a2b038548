package pricing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"

	"jastip/pkg/log"
)

// CommissionRateKey redis key holding the platform commission percentage
const CommissionRateKey = "settings:commission_rate_percent"

const rateCacheKey = "commission_rate"

// RateProvider looks up the platform commission percentage. Implementations
// may fail; callers substitute the fallback rate.
type RateProvider interface {
	CommissionPercent(ctx context.Context) (float64, error)
}

// RedisRateProvider reads the commission rate from redis, memoized in a
// short-TTL local cache so the checkout path does not wait on redis for
// every breakdown.
type RedisRateProvider struct {
	client redis.Cmdable
	cache  *bigcache.BigCache
}

// NewRedisRateProvider creates a redis-backed rate provider
func NewRedisRateProvider(client redis.Cmdable, cacheTTL time.Duration) (*RedisRateProvider, error) {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(cacheTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate cache: %w", err)
	}
	return &RedisRateProvider{
		client: client,
		cache:  cache,
	}, nil
}

// CommissionPercent returns the configured commission percentage
func (p *RedisRateProvider) CommissionPercent(ctx context.Context) (float64, error) {
	if data, err := p.cache.Get(rateCacheKey); err == nil {
		if rate, err := strconv.ParseFloat(string(data), 64); err == nil {
			return rate, nil
		}
	}

	val, err := p.client.Get(ctx, CommissionRateKey).Result()
	if err != nil {
		return 0, fmt.Errorf("commission rate lookup: %w", err)
	}

	rate, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("commission rate malformed: %w", err)
	}

	if err := p.cache.Set(rateCacheKey, []byte(val)); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Debug("Failed to memoize commission rate")
	}

	return rate, nil
}

// StaticRateProvider always returns a fixed rate; used in tests and as a
// bootstrap when redis is disabled.
type StaticRateProvider struct {
	Rate float64
}

// CommissionPercent returns the fixed rate
func (p StaticRateProvider) CommissionPercent(ctx context.Context) (float64, error) {
	return p.Rate, nil
}
