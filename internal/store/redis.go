package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"svrlive.org/internal/logging"
)

// RedisCache fronts another Source with a shared Redis cache so several
// API replicas do not each hit the archive. Misses and Redis failures fall
// through to the wrapped source.
type RedisCache struct {
	next   Source
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisClient builds a client from a redis:// URL and checks it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisCache wraps next. A zero ttl defaults to ten minutes.
func NewRedisCache(next Source, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "svrlive:",
		logger: logger.With(slog.String("component", "redis_cache")),
	}
}

func (c *RedisCache) timetableKey(date time.Time, debug bool) string {
	if debug {
		return c.prefix + "timetable:debug"
	}
	return c.prefix + "timetable:" + date.Format(time.DateOnly)
}

func (c *RedisCache) scheduleKey(year int) string {
	return fmt.Sprintf("%sschedule:%d", c.prefix, year)
}

func (c *RedisCache) Timetable(ctx context.Context, date time.Time, debug bool) ([]byte, error) {
	key := c.timetableKey(date, debug)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return data, nil
	case !errors.Is(err, redis.Nil):
		logging.LogError(c.logger, "cache read failed", err, slog.String("key", key))
	}

	data, err = c.next.Timetable(ctx, date, debug)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logging.LogError(c.logger, "cache write failed", err, slog.String("key", key))
	}
	return data, nil
}

func (c *RedisCache) Schedule(ctx context.Context, year int) ([]ScheduleEntry, error) {
	key := c.scheduleKey(year)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entries []ScheduleEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
		c.logger.Warn("discarding malformed cached schedule", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		logging.LogError(c.logger, "cache read failed", err, slog.String("key", key))
	}

	entries, err := c.next.Schedule(ctx, year)
	if err != nil || entries == nil {
		return entries, err
	}
	if data, err := json.Marshal(entries); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.LogError(c.logger, "cache write failed", err, slog.String("key", key))
		}
	}
	return entries, nil
}

func (c *RedisCache) Available(ctx context.Context) ([]string, error) {
	return c.next.Available(ctx)
}

// Named passes through to the wrapped source when it supports it.
func (c *RedisCache) Named(ctx context.Context, year int, name string) ([]byte, error) {
	return readNamed(ctx, c.next, year, name)
}

// Ping checks both Redis and the wrapped source.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return c.next.Ping(ctx)
}

// Invalidate drops the cached payload for date and its year's schedule.
func (c *RedisCache) Invalidate(ctx context.Context, date time.Time) error {
	return c.client.Del(ctx, c.timetableKey(date, false), c.scheduleKey(date.Year())).Err()
}
