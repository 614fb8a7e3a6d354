package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"pipeband-quiz-service/internal/app"
	"pipeband-quiz-service/internal/domain"
)

const (
	bandsKey = "quiz:pool:bands"
	yearsKey = "quiz:pool:years"
)

// PoolCache caches the distractor pools in Redis lists and falls back to the catalog on a miss.
// Bands are stored as: RPUSH quiz:pool:bands {band}...
// Years are stored as: RPUSH quiz:pool:years {year}...
// Track samples always go to the backing catalog.
type PoolCache struct {
	app.TrackCatalog
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPoolCache(client *redis.Client, catalog app.TrackCatalog, ttl time.Duration) *PoolCache {
	return &PoolCache{
		TrackCatalog: catalog,
		client:       client,
		ttl:          ttl,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PoolCache) DistinctBands(ctx context.Context) ([]string, error) {
	return c.load(ctx, bandsKey, c.TrackCatalog.DistinctBands)
}

func (c *PoolCache) DistinctYears(ctx context.Context) ([]int, error) {
	raw, err := c.load(ctx, yearsKey, func(ctx context.Context) ([]string, error) {
		years, err := c.TrackCatalog.DistinctYears(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(years))
		for i, y := range years {
			out[i] = strconv.Itoa(y)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	years := make([]int, 0, len(raw))
	for _, s := range raw {
		y, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	return years, nil
}

// Invalidate drops cached pools, used after an import.
func (c *PoolCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, bandsKey, yearsKey).Err()
}

func (c *PoolCache) load(ctx context.Context, key string, fill func(context.Context) ([]string, error)) ([]string, error) {
	values, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err == nil && len(values) > 0 {
		return values, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		values, err := c.client.LRange(ctx, key, 0, -1).Result()
		if err == nil && len(values) > 0 {
			return values, nil
		}

		values, err = fill(ctx)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, domain.ErrNoTracks
		}

		args := make([]interface{}, len(values))
		for i, v := range values {
			args[i] = v
		}
		pipe := c.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, args...)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache pool")
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
