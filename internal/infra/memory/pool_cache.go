package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pipeband-quiz-service/internal/app"
	"pipeband-quiz-service/internal/domain"
)

const (
	bandsKey = "bands"
	yearsKey = "years"
)

// PoolCache caches the distractor pools with TTL to avoid repeated DB hits. Track samples
// always go to the backing catalog.
type PoolCache struct {
	app.TrackCatalog
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	bands     []string
	years     []int
	expiresAt time.Time
}

func NewPoolCache(catalog app.TrackCatalog, ttl time.Duration) *PoolCache {
	return &PoolCache{
		TrackCatalog: catalog,
		ttl:          ttl,
		clock:        time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:        make(map[string]cachedPool),
	}
}

func (c *PoolCache) DistinctBands(ctx context.Context) ([]string, error) {
	entry, err := c.get(ctx, bandsKey, func(ctx context.Context) (cachedPool, error) {
		bands, err := c.TrackCatalog.DistinctBands(ctx)
		return cachedPool{bands: bands}, err
	})
	return entry.bands, err
}

func (c *PoolCache) DistinctYears(ctx context.Context) ([]int, error) {
	entry, err := c.get(ctx, yearsKey, func(ctx context.Context) (cachedPool, error) {
		years, err := c.TrackCatalog.DistinctYears(ctx)
		return cachedPool{years: years}, err
	})
	return entry.years, err
}

// Invalidate drops cached pools, used after an import.
func (c *PoolCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.cache = make(map[string]cachedPool)
	c.mu.Unlock()
	return nil
}

func (c *PoolCache) get(ctx context.Context, key string, load func(context.Context) (cachedPool, error)) (cachedPool, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		entry, err := load(ctx)
		if err != nil {
			return cachedPool{}, err
		}
		if len(entry.bands) == 0 && len(entry.years) == 0 {
			return cachedPool{}, domain.ErrNoTracks
		}
		entry.expiresAt = now.Add(c.ttlWithJitter())

		c.mu.Lock()
		c.cache[key] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cachedPool{}, err
	}
	return result.(cachedPool), nil
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
