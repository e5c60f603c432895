package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/plexbw/internal/config"
	"github.com/goodtune/plexbw/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements storage.MarkerStore using Redis, so markers survive
// restarts and can be shared by replicas scraping the same server.
type Store struct {
	client    *redis.Client
	advance   *redis.Script
	keyPrefix string
	markerTTL time.Duration
}

// Open creates a new Redis-backed marker store
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	var markerTTL time.Duration
	if cfg.MarkerTTL != "" {
		markerTTL, err = time.ParseDuration(cfg.MarkerTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid marker_ttl: %w", err)
		}
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "plexbw"
	}

	return &Store{
		client:    client,
		advance:   redis.NewScript(advanceMarkerScript),
		keyPrefix: prefix,
		markerTTL: markerTTL,
	}, nil
}

func (s *Store) markerKey(key storage.PairKey) string {
	return fmt.Sprintf("%s:marker:%d:%d", s.keyPrefix, key.AccountID, key.DeviceID)
}

// Advance implements storage.MarkerStore.
func (s *Store) Advance(ctx context.Context, key storage.PairKey, at int64) (int64, bool, error) {
	keys := []string{s.markerKey(key)}
	args := []interface{}{at, int64(s.markerTTL.Seconds())}

	previous, err := s.advance.Run(ctx, s.client, keys, args...).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to advance marker %s: %w", key, err)
	}
	return previous, true, nil
}

// Get implements storage.MarkerStore.
func (s *Store) Get(ctx context.Context, key storage.PairKey) (int64, error) {
	raw, err := s.client.Get(ctx, s.markerKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse marker %s: %w", key, err)
	}
	return v, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
