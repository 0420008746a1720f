package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/identity"
)

// NewRedisClient creates a go-redis client from configuration and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisStore keeps the door map in a hash and the registry in a single JSON string.
type RedisStore struct {
	client      redis.UniversalClient
	doorKey     string
	registryKey string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeys overrides the default key names, mainly for tests sharing a database.
func WithKeys(doorKey, registryKey string) RedisStoreOption {
	return func(s *RedisStore) {
		s.doorKey = doorKey
		s.registryKey = registryKey
	}
}

// NewRedisStore wraps an existing client. The client is owned by the caller.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:      client,
		doorKey:     constants.DoorStateKey,
		registryKey: constants.RegistryKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// LoadRegistry reads the registry snapshot.
func (s *RedisStore) LoadRegistry(ctx context.Context) (identity.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.registryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return identity.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("get %s: %w", s.registryKey, err)
	}

	var snap identity.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return identity.Snapshot{}, fmt.Errorf("decode %s: %w", s.registryKey, err)
	}
	return snap, nil
}

// LoadDoors reads every door record. Fields that fail to decode are reported
// together; the readable ones are still returned.
func (s *RedisStore) LoadDoors(ctx context.Context) (map[string]doorbank.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.doorKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.doorKey, err)
	}

	records := make(map[string]doorbank.Record, len(fields))
	var errs []error
	for name, raw := range fields {
		var rec doorbank.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			errs = append(errs, fmt.Errorf("%w: door %q: %w", ErrCorruptRecord, name, err))
			continue
		}
		records[name] = rec
	}
	return records, errors.Join(errs...)
}

// Save writes the registry and door records inside MULTI/EXEC so readers never
// observe one without the other.
func (s *RedisStore) Save(ctx context.Context, state State) error {
	registry, err := json.Marshal(state.Registry)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	doors := make(map[string]any, len(state.Doors))
	for name, rec := range state.Doors {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode door %q: %w", name, err)
		}
		doors[name] = string(data)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.registryKey, registry, 0)
		if len(doors) > 0 {
			pipe.HSet(ctx, s.doorKey, doors)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save locker state: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
