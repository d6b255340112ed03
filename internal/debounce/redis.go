package debounce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration for the marker store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// TTL bounds marker retention. Zero keeps markers forever.
	TTL time.Duration
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// RedisStore implements watch.DebounceStore on Redis via SETNX.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a client and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// MarkOnce implements watch.DebounceStore. SETNX makes concurrent markers
// for the same fingerprint race safely: exactly one caller wins.
func (s *RedisStore) MarkOnce(ctx context.Context, fingerprint string) (bool, error) {
	first, err := s.client.SetNX(ctx, "headlinewatch:fp:"+fingerprint, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark fingerprint: %w", err)
	}
	return first, nil
}

// Close releases the client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
