package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

const sessionKeyType = "session"

// Config holds the connection settings for a standalone Redis.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// TTL bounds how long an idle session token survives. Zero keeps it forever.
	TTL time.Duration
}

// Repo stores session tokens in Redis as JSON under <prefix>session:<id>.
type Repo struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

var _ token.SessionRepo = (*Repo)(nil)

// New connects to Redis, retrying the first ping with exponential backoff.
func New(ctx context.Context, cfg Config) (*Repo, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})

	_, err := backoff.Retry(ctx, func() (any, error) {
		return nil, client.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("addr", cfg.Addr).Dur("retry_in", next).Msg("Redis not reachable yet")
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient wraps a pre-configured client. Used with miniredis in tests.
func NewWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *Repo {
	return &Repo{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*token.Record, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionID is required", apperrors.ErrInvalidRequest)
	}

	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session token: %w", err)
	}

	var record token.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session token: %w", err)
	}
	return &record, nil
}

// Upsert writes the whole Record in one SET, so readers never see a mix of old and new fields.
func (r *Repo) Upsert(ctx context.Context, sessionID string, record token.Record) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionID is required", apperrors.ErrInvalidRequest)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session token: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionID is required", apperrors.ErrInvalidRequest)
	}
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity (health check).
func (r *Repo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *Repo) Close() error {
	return r.client.Close()
}

func (r *Repo) key(sessionID string) string {
	return r.keyPrefix + sessionKeyType + ":" + sessionID
}
