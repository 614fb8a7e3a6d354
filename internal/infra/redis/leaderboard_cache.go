package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/app"
	"pipeband-quiz-service/internal/domain"
)

const (
	leaderboardPrefix  = "quiz:leaderboard:"
	leaderboardIndex   = "quiz:leaderboard:keys"
	// bumped by Invalidate; a page read under an older version is not written back
	leaderboardVersion = "quiz:leaderboard:version"
)

// LeaderboardCache keeps top score pages in Redis. Writes go straight to the store; the
// cache is dropped by Invalidate when a session completes.
type LeaderboardCache struct {
	app.ResultStore
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, store app.ResultStore, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{ResultStore: store, client: client, ttl: ttl}
}

func (c *LeaderboardCache) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	key := leaderboardPrefix + strconv.Itoa(limit)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entries []domain.LeaderboardEntry
		if err := json.Unmarshal(raw, &entries); err == nil {
			return entries, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("key", key).Msg("leaderboard cache read failed")
	}

	version, err := c.version(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("leaderboard cache version read failed")
	}
	entries, err := c.ResultStore.TopScores(ctx, limit)
	if err != nil {
		return nil, err
	}
	if version < 0 {
		return entries, nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return entries, nil
	}
	if err := c.store(ctx, key, data, version); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("leaderboard cache write failed")
	}
	return entries, nil
}

// version returns the current invalidation counter, or -1 when it cannot be read.
func (c *LeaderboardCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, leaderboardVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return -1, err
	}
	return v, nil
}

// store writes the page only if no Invalidate ran since version was read.
func (c *LeaderboardCache) store(ctx context.Context, key string, data []byte, version int64) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, leaderboardVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current, err = 0, nil
		}
		if err != nil {
			return err
		}
		if current != version {
			log.Debug().Str("key", key).Msg("leaderboard page stale, not cached")
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			pipe.SAdd(ctx, leaderboardIndex, key)
			return nil
		})
		return err
	}, leaderboardVersion)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// CreateGameSession stores the result and drops cached pages.
func (c *LeaderboardCache) CreateGameSession(ctx context.Context, r domain.GameResult) (string, error) {
	id, err := c.ResultStore.CreateGameSession(ctx, r)
	if err != nil {
		return "", err
	}
	if err := c.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("leaderboard cache invalidation failed")
	}
	return id, nil
}

// Invalidate removes every cached page and bumps the version so in-flight reads are not cached.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, leaderboardIndex).Result()
	if err != nil {
		return err
	}
	keys = append(keys, leaderboardIndex)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, leaderboardVersion)
	pipe.Del(ctx, keys...)
	_, err = pipe.Exec(ctx)
	return err
}
