package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"consultdesk/internal/config"
	"consultdesk/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "widget_session:"
	rateLimitKeyPrefix = "rate_limit:"
)

var errNoRedis = errors.New("redis client is not configured")

// RedisSessionRepository keeps sessions as JSON documents that expire after
// ttl of inactivity.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (r *RedisSessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if r.client == nil {
		return nil, errNoRedis
	}
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}

	session := new(models.Session)
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

// SaveSession writes the session and refreshes its TTL.
func (r *RedisSessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	if r.client == nil {
		return errNoRedis
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", session.ID, err)
	}
	return nil
}

func (r *RedisSessionRepository) DeleteSession(ctx context.Context, id string) error {
	if r.client == nil {
		return errNoRedis
	}
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}

// CheckRateLimit counts hits in a fixed window that starts with the first
// hit.
func (r *RedisSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNoRedis
	}
	rk := rateLimitKeyPrefix + key

	count, err := r.client.Incr(ctx, rk).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limit %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, rk, window).Err(); err != nil {
			return false, fmt.Errorf("redis rate limit window %s: %w", key, err)
		}
	}
	return count <= int64(limit), nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errNoRedis
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
