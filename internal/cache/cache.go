package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/shelfsight/querydeck/internal/storage"
	"go.uber.org/zap"
)

const keyPrefix = "querydeck:metrics:"

// CachedMetricStore wraps a MetricStore with a Redis result cache.
// Cache failures are logged and fall through to the underlying store.
type CachedMetricStore struct {
	store   storage.MetricStore
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedMetricStore creates a caching decorator around store.
func NewCachedMetricStore(store storage.MetricStore, client *redis.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedMetricStore {
	return &CachedMetricStore{
		store:   store,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func (c *CachedMetricStore) QueryMetrics(ctx context.Context, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	key := c.cacheKey("query", filter, "")

	if rows, ok := c.get(ctx, key, "query"); ok {
		return rows, nil
	}

	rows, err := c.store.QueryMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.put(ctx, key, rows)
	return rows, nil
}

func (c *CachedMetricStore) TimeSeries(ctx context.Context, identifier string, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	key := c.cacheKey("series", filter, identifier)

	if rows, ok := c.get(ctx, key, "series"); ok {
		return rows, nil
	}

	rows, err := c.store.TimeSeries(ctx, identifier, filter)
	if err != nil {
		return nil, err
	}

	c.put(ctx, key, rows)
	return rows, nil
}

// cacheKey derives a deterministic key from the filter. The filter is
// small and has stable field order under encoding/json.
func (c *CachedMetricStore) cacheKey(op string, filter models.MetricFilter, identifier string) string {
	raw, _ := json.Marshal(filter)
	sum := sha256.Sum256(append(raw, identifier...))
	return fmt.Sprintf("%s%s:%s", keyPrefix, op, hex.EncodeToString(sum[:16]))
}

func (c *CachedMetricStore) get(ctx context.Context, key, op string) ([]models.QueryMetrics, bool) {
	start := time.Now()
	data, err := c.client.Get(ctx, key).Bytes()
	if c.metrics != nil {
		c.metrics.RedisLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}

	if err == redis.Nil {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(op)
		}
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var rows []models.QueryMetrics
	if err := json.Unmarshal(data, &rows); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit(op)
	}
	return rows, true
}

func (c *CachedMetricStore) put(ctx context.Context, key string, rows []models.QueryMetrics) {
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}

	start := time.Now()
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.RedisLatency.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}
}
