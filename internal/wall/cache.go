package wall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"memorywall/internal/config"
	"memorywall/internal/feed"
)

const (
	SnapshotApproved = "approved"
	SnapshotVisible  = "visible"

	snapshotPrefix = "wall:snapshot:"
	generationKey  = snapshotPrefix + "gen"
)

var errStaleSnapshot = errors.New("snapshot generation changed")

// SnapshotCache holds the public post lists between writes. Cache failures
// are never fatal; callers fall back to the database.
//
// Every Invalidate starts a new generation. A reader takes Generation before
// it queries and hands it to Set, which drops the write if an Invalidate
// happened in between.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]feed.Post, bool)
	Generation(ctx context.Context) int64
	Set(ctx context.Context, key string, gen int64, posts []feed.Post)
	Invalidate(ctx context.Context)
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]feed.Post, bool) { return nil, false }
func (NoopCache) Generation(context.Context) int64                { return 0 }
func (NoopCache) Set(context.Context, string, int64, []feed.Post) {}
func (NoopCache) Invalidate(context.Context)                      {}

func ConnectRedis(cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	if logger != nil {
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr), zap.Int("db", cfg.Redis.DB))
	}
	return client, nil
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]feed.Post, bool) {
	data, err := c.client.Get(ctx, snapshotPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var posts []feed.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		c.logger.Warn("snapshot cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return posts, true
}

// Generation returns the current snapshot generation, or -1 when it cannot
// be read. Set ignores negative generations.
func (c *RedisCache) Generation(ctx context.Context) int64 {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("snapshot generation read failed", zap.Error(err))
		return -1
	}
	return gen
}

func (c *RedisCache) Set(ctx context.Context, key string, gen int64, posts []feed.Post) {
	if gen < 0 {
		return
	}
	if posts == nil {
		posts = []feed.Post{}
	}
	data, err := json.Marshal(posts)
	if err != nil {
		c.logger.Warn("snapshot cache encode failed", zap.Error(err))
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleSnapshot
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, snapshotPrefix+key, data, c.ttl)
			return nil
		})
		return err
	}, generationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleSnapshot), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("snapshot cache write skipped", zap.String("key", key), zap.Int64("generation", gen))
	default:
		c.logger.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, snapshotPrefix+SnapshotApproved, snapshotPrefix+SnapshotVisible)
		return nil
	})
	if err != nil {
		c.logger.Warn("snapshot cache invalidate failed", zap.Error(err))
	}
}
