package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/features"
)

const cacheKeyPrefix = "gocyto:extract:"

// DefaultCacheTTL bounds how long a report's extraction is reused.
const DefaultCacheTTL = 24 * time.Hour

// CachedService memoizes successful extractions in Redis, keyed by model
// and report text. Cache faults are logged and never fail a request.
type CachedService struct {
	next   Service
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedService(next Service, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedService{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedService) Model() string { return c.next.Model() }

func (c *CachedService) Extract(ctx context.Context, report string) (features.Raw, error) {
	key := CacheKey(c.next.Model(), report)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		raw, perr := features.ParseRaw(data)
		if perr == nil {
			return raw, nil
		}
		c.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(perr))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("extraction cache read failed", zap.Error(err))
	}

	raw, err := c.next.Extract(ctx, report)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(raw); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("extraction cache write failed", zap.Error(err))
		}
	}
	return raw, nil
}

// CacheKey derives the Redis key for one model and report.
func CacheKey(model, report string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(report))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
