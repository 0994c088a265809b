package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/observability"
)

// StatsCache memoises student statistics in Redis. Services that write
// progress, sessions or plans drop the student's entry so the next read
// recomputes it. A nil cache is valid and does nothing.
type StatsCache struct {
	client   *redis.Client
	ttl      time.Duration
	keyspace string
	logger   zerolog.Logger
}

// NewStatsCache returns nil when client is nil or ttl is not positive.
func NewStatsCache(client *redis.Client, ttl time.Duration, keyspace string, logger zerolog.Logger) *StatsCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	if keyspace == "" {
		keyspace = "therapy"
	}
	return &StatsCache{
		client:   client,
		ttl:      ttl,
		keyspace: keyspace,
		logger:   logger.With().Str("component", "stats_cache").Logger(),
	}
}

// Key returns the Redis key holding a student's statistics.
func (c *StatsCache) Key(studentID uuid.UUID) string {
	return fmt.Sprintf("%s:stats:%s", c.keyspace, studentID)
}

func (c *StatsCache) get(ctx context.Context, studentID uuid.UUID) (dto.StudentStatsResponse, bool) {
	if c == nil {
		return dto.StudentStatsResponse{}, false
	}

	raw, err := c.client.Get(ctx, c.Key(studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
		observability.StatsCacheLookups().WithLabelValues("miss").Inc()
		return dto.StudentStatsResponse{}, false
	}

	var stats dto.StudentStatsResponse
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode stats cache")
		observability.StatsCacheLookups().WithLabelValues("miss").Inc()
		return dto.StudentStatsResponse{}, false
	}

	observability.StatsCacheLookups().WithLabelValues("hit").Inc()
	return stats, true
}

func (c *StatsCache) put(ctx context.Context, studentID uuid.UUID, stats dto.StudentStatsResponse) {
	if c == nil {
		return
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.Key(studentID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache stats")
	}
}

// Invalidate drops the cached statistics of a student. Errors are logged; a
// failed delete leaves the entry to expire on its TTL.
func (c *StatsCache) Invalidate(ctx context.Context, studentID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, c.Key(studentID)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("student_id", studentID.String()).Msg("failed to invalidate stats cache")
	}
}
