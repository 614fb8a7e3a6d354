package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"pipeband-quiz-service/internal/domain"
)

// Catalog is an in-memory track catalog (useful for tests/demos and running without Postgres).
type Catalog struct {
	mu     sync.RWMutex
	tracks []domain.Track
	rnd    *rand.Rand
}

func NewCatalog(tracks []domain.Track) *Catalog {
	return &Catalog{
		tracks: append([]domain.Track(nil), tracks...),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SampleTracks returns up to n tracks in random order.
func (c *Catalog) SampleTracks(_ context.Context, n int) ([]domain.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tracks) == 0 {
		return nil, domain.ErrNoTracks
	}
	if n <= 0 || n > len(c.tracks) {
		n = len(c.tracks)
	}
	out := make([]domain.Track, 0, n)
	for _, i := range c.rnd.Perm(len(c.tracks))[:n] {
		out = append(out, c.tracks[i])
	}
	return out, nil
}

func (c *Catalog) DistinctBands(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(c.tracks))
	bands := make([]string, 0, len(c.tracks))
	for _, t := range c.tracks {
		if _, ok := seen[t.Band]; ok {
			continue
		}
		seen[t.Band] = struct{}{}
		bands = append(bands, t.Band)
	}
	sort.Strings(bands)
	return bands, nil
}

func (c *Catalog) DistinctYears(_ context.Context) ([]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[int]struct{}, len(c.tracks))
	years := make([]int, 0, len(c.tracks))
	for _, t := range c.tracks {
		if _, ok := seen[t.Year]; ok {
			continue
		}
		seen[t.Year] = struct{}{}
		years = append(years, t.Year)
	}
	sort.Ints(years)
	return years, nil
}

// ReplaceTracks swaps the whole catalog.
func (c *Catalog) ReplaceTracks(_ context.Context, tracks []domain.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append([]domain.Track(nil), tracks...)
	return nil
}

// SampleCatalog seeds a small catalog for local runs without a database.
func SampleCatalog() *Catalog {
	return NewCatalog([]domain.Track{
		{ID: "1", MediaRef: "spotify:track:0sample1", Band: "Field Marshal Montgomery", Year: 2012, Title: "Medley"},
		{ID: "2", MediaRef: "spotify:track:0sample2", Band: "Simon Fraser University", Year: 2008, Title: "Medley"},
		{ID: "3", MediaRef: "spotify:track:0sample3", Band: "Shotts & Dykehead Caledonia", Year: 2005, Title: "Selection"},
		{ID: "4", MediaRef: "spotify:track:0sample4", Band: "Inveraray & District", Year: 2019, Title: "MSR"},
		{ID: "5", MediaRef: "spotify:track:0sample5", Band: "St Laurence O'Toole", Year: 2010, Title: "Medley"},
		{ID: "6", MediaRef: "spotify:track:0sample6", Band: "Boghall & Bathgate Caledonia", Year: 2015, Title: "Medley"},
	})
}
