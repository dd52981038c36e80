package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/models"
	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Enabled() bool
}

// CachedCalendarProvider serves event listings from the cache when possible
// and falls back to the wrapped provider. Cache failures never fail a request.
type CachedCalendarProvider struct {
	next    CalendarProvider
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCachedCalendarProvider wraps next with a read-through cache.
func NewCachedCalendarProvider(next CalendarProvider, repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *CachedCalendarProvider {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCalendarProvider{next: next, repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// EventsCacheKey is the cache key of one room listing.
func EventsCacheKey(room string, from, to time.Time) string {
	return roomKeyPrefix(room) + from.UTC().Format(time.RFC3339) + ":" + to.UTC().Format(time.RFC3339)
}

func roomKeyPrefix(room string) string {
	return "events:" + url.PathEscape(room) + ":"
}

// ListEvents implements CalendarProvider.
func (p *CachedCalendarProvider) ListEvents(ctx context.Context, room string, from, to time.Time) ([]models.RawEvent, error) {
	if !p.cacheEnabled() {
		return p.next.ListEvents(ctx, room, from, to)
	}
	key := EventsCacheKey(room, from, to)

	var cached []models.RawEvent
	start := time.Now()
	err := p.repo.Get(ctx, key, &cached)
	p.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, appErrors.ErrCacheMiss):
		p.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	events, err := p.next.ListEvents(ctx, room, from, to)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	if err := p.repo.Set(ctx, key, events, p.ttl); err != nil {
		p.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	p.metrics.ObserveCacheWrite(time.Since(start))
	return events, nil
}

// Invalidate drops every cached listing of a room.
func (p *CachedCalendarProvider) Invalidate(ctx context.Context, room string) error {
	if !p.cacheEnabled() {
		return nil
	}
	pattern := roomKeyPrefix(room) + "*"
	if err := p.repo.DeleteByPattern(ctx, pattern); err != nil {
		p.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

func (p *CachedCalendarProvider) cacheEnabled() bool {
	return p.repo != nil && p.repo.Enabled()
}
