package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Hashira10/render/internal/report"
)

const overviewKey = "phishsim:report:overview"

// ReportCache stores the built overview report in Redis so repeated
// dashboard loads do not refetch and reaggregate the event collections.
// Cache failures are logged and treated as misses; the report layer
// never depends on Redis being up.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache creates a Redis-backed overview cache.
func NewReportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached overview, or false when absent or unreadable.
func (c *ReportCache) Get(ctx context.Context) (*report.Overview, bool) {
	data, err := c.client.Get(ctx, overviewKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("overview cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var ov report.Overview
	if err := json.Unmarshal(data, &ov); err != nil {
		c.logger.Warn("overview cache entry corrupt, dropping", zap.Error(err))
		c.client.Del(ctx, overviewKey)
		return nil, false
	}
	return &ov, true
}

// Set stores the overview with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, ov *report.Overview) {
	data, err := json.Marshal(ov)
	if err != nil {
		c.logger.Warn("overview cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, overviewKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("overview cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached overview.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, overviewKey).Err(); err != nil {
		c.logger.Warn("overview cache invalidate failed", zap.Error(err))
	}
}
