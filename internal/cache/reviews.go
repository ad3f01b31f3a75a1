package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sitefreelance/backend/internal/models"
	"github.com/sitefreelance/backend/internal/monitoring"
)

const (
	keyPublicReviews = "reviews:public"
	keyReviewStats   = "reviews:stats"
	keyGeneration    = "reviews:gen"
	cacheType        = "reviews"
)

// errStaleFill aborts a fill that raced with an invalidation
var errStaleFill = errors.New("review cache generation moved")

// Fill records the cache generation seen before a datastore read. A fill is
// only stored if no write invalidated the cache in between.
type Fill struct {
	gen int64
	ok  bool
}

// ReviewCache holds the public review list and stats. A nil cache, or one
// without a client, is a no-op; Redis errors are logged and read as misses.
type ReviewCache struct {
	redis *Redis
	ttl   time.Duration
}

// NewReviewCache creates a review cache; r may be nil
func NewReviewCache(r *Redis, ttl time.Duration) *ReviewCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ReviewCache{redis: r, ttl: ttl}
}

func (c *ReviewCache) enabled() bool {
	return c != nil && c.redis != nil && c.redis.Client != nil
}

// GetPublic returns the cached public list
func (c *ReviewCache) GetPublic(ctx context.Context) ([]models.Review, bool) {
	var reviews []models.Review
	if !c.get(ctx, keyPublicReviews, &reviews) {
		return nil, false
	}
	return reviews, true
}

// BeginFill snapshots the generation; call it before reading the datastore
func (c *ReviewCache) BeginFill(ctx context.Context) Fill {
	if !c.enabled() {
		return Fill{}
	}
	gen, err := c.redis.Client.Get(ctx, keyGeneration).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return Fill{ok: true}
	case err != nil:
		c.failOpen("generation", err)
		return Fill{}
	}
	return Fill{gen: gen, ok: true}
}

// SetPublic caches the public list read under fill. Delete tokens are
// stripped again here.
func (c *ReviewCache) SetPublic(ctx context.Context, fill Fill, reviews []models.Review) {
	public := make([]models.Review, len(reviews))
	for i, r := range reviews {
		public[i] = r.Public()
	}
	c.set(ctx, fill, keyPublicReviews, public)
}

// GetStats returns the cached rating stats
func (c *ReviewCache) GetStats(ctx context.Context) (*models.ReviewStats, bool) {
	var stats models.ReviewStats
	if !c.get(ctx, keyReviewStats, &stats) {
		return nil, false
	}
	return &stats, true
}

// SetStats caches the rating stats read under fill
func (c *ReviewCache) SetStats(ctx context.Context, fill Fill, stats *models.ReviewStats) {
	c.set(ctx, fill, keyReviewStats, stats)
}

// Invalidate bumps the generation and drops every cached view; called after
// any write. Fills begun before it are discarded.
func (c *ReviewCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	_, err := c.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, keyGeneration)
		pipe.Del(ctx, keyPublicReviews, keyReviewStats)
		return nil
	})
	if err != nil {
		c.failOpen("invalidate", err)
	}
}

func (c *ReviewCache) get(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}

	raw, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.failOpen("get", err)
		}
		monitoring.RecordCacheMiss(cacheType)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.failOpen("decode", err)
		monitoring.RecordCacheMiss(cacheType)
		return false
	}

	monitoring.RecordCacheHit(cacheType)
	return true
}

// set stores value only while the generation still matches fill
func (c *ReviewCache) set(ctx context.Context, fill Fill, key string, value any) {
	if !c.enabled() || !fill.ok {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.failOpen("encode", err)
		return
	}

	err = c.redis.Client.Watch(ctx, func(tx *redis.Tx) error {
		gen, err := tx.Get(ctx, keyGeneration).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if gen != fill.gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, keyGeneration)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		log.Debug().Str("key", key).Msg("Skipping review cache fill, a write happened meanwhile")
	default:
		c.failOpen("set", err)
	}
}

func (c *ReviewCache) failOpen(op string, err error) {
	monitoring.RecordCacheError(cacheType, op)
	log.Warn().Err(err).Str("op", op).Msg("Review cache unavailable, continuing without it")
}
