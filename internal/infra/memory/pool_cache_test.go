package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

type countingCatalog struct {
	*Catalog
	bandCalls atomic.Int32
	yearCalls atomic.Int32
}

func (c *countingCatalog) DistinctBands(ctx context.Context) ([]string, error) {
	c.bandCalls.Add(1)
	return c.Catalog.DistinctBands(ctx)
}

func (c *countingCatalog) DistinctYears(ctx context.Context) ([]int, error) {
	c.yearCalls.Add(1)
	return c.Catalog.DistinctYears(ctx)
}

func TestPoolCacheCaches(t *testing.T) {
	backing := &countingCatalog{Catalog: SampleCatalog()}
	cache := NewPoolCache(backing, time.Minute)
	ctx := context.Background()

	bands, err := cache.DistinctBands(ctx)
	require.NoError(t, err)
	assert.Len(t, bands, 6)
	_, err = cache.DistinctBands(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, backing.bandCalls.Load())

	years, err := cache.DistinctYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2005, 2008, 2010, 2012, 2015, 2019}, years)
	assert.EqualValues(t, 1, backing.yearCalls.Load())

	require.NoError(t, cache.Invalidate(ctx))
	_, err = cache.DistinctBands(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, backing.bandCalls.Load())
}

func TestPoolCacheExpires(t *testing.T) {
	backing := &countingCatalog{Catalog: SampleCatalog()}
	cache := NewPoolCache(backing, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	_, err := cache.DistinctYears(ctx)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = cache.DistinctYears(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, backing.yearCalls.Load())
}

func TestPoolCacheCollapsesConcurrentLoads(t *testing.T) {
	backing := &countingCatalog{Catalog: SampleCatalog()}
	cache := NewPoolCache(backing, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.DistinctBands(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, backing.bandCalls.Load(), int32(20))
	assert.GreaterOrEqual(t, backing.bandCalls.Load(), int32(1))
}

func TestPoolCacheEmptyCatalog(t *testing.T) {
	cache := NewPoolCache(NewCatalog(nil), time.Minute)
	_, err := cache.DistinctBands(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoTracks)
}

func TestCatalogSampleAndReplace(t *testing.T) {
	c := SampleCatalog()
	ctx := context.Background()

	tracks, err := c.SampleTracks(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, tracks, 3)
	ids := map[string]bool{}
	for _, tr := range tracks {
		ids[tr.ID] = true
	}
	assert.Len(t, ids, 3)

	all, err := c.SampleTracks(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	require.NoError(t, c.ReplaceTracks(ctx, nil))
	_, err = c.SampleTracks(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNoTracks)
}
