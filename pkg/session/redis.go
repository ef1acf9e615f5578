package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
)

// Hash fields under the visit key.
const (
	fieldID     = "session_id"
	fieldStart  = "session_start"
	fieldLang   = "lang"
	fieldLocked = "lang_locked"
)

// RedisStore persists the visit in Redis so it survives a front-end
// restart mid-visit. All fields live in one hash and are deleted together.
type RedisStore struct {
	client      *redis.Client
	key         string
	ttl         time.Duration
	defaultLang i18n.Lang
}

// RedisConfig configures the Redis visit store.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix (default: "kiosk:visit").
	Prefix string
	// TTL is the visit expiry duration (0 = never expire).
	TTL time.Duration
	// DefaultLang is used for newly created visits.
	DefaultLang i18n.Lang
}

// NewRedisStore creates a Redis-backed visit store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisStore(client, cfg), nil
}

// NewRedisStoreFromClient creates a store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	return newRedisStore(client, cfg)
}

func newRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "kiosk:visit"
	}
	lang := cfg.DefaultLang
	if lang == "" {
		lang = i18n.LangEN
	}
	return &RedisStore{
		client:      client,
		key:         prefix,
		ttl:         cfg.TTL,
		defaultLang: lang,
	}
}

// Ensure returns the current visit, creating one if none exists.
func (s *RedisStore) Ensure(ctx context.Context) (*Visit, error) {
	v, err := s.Current(ctx)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNoVisit) {
		return nil, err
	}

	v = &Visit{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Lang:      s.defaultLang,
	}
	if err := s.save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Current retrieves the active visit.
func (s *RedisStore) Current(ctx context.Context) (*Visit, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load visit: %w", err)
	}
	if len(fields) == 0 || fields[fieldID] == "" {
		return nil, ErrNoVisit
	}

	startMs, err := strconv.ParseInt(fields[fieldStart], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse visit start: %w", err)
	}

	return &Visit{
		ID:         fields[fieldID],
		StartedAt:  time.UnixMilli(startMs).UTC(),
		Lang:       i18n.Lang(fields[fieldLang]),
		LangLocked: fields[fieldLocked] == "1",
	}, nil
}

// SetLanguage records the chosen language.
func (s *RedisStore) SetLanguage(ctx context.Context, lang i18n.Lang, lock bool) error {
	v, err := s.Ensure(ctx)
	if err != nil {
		return err
	}
	v.Lang = lang
	if lock {
		v.LangLocked = true
	}
	return s.save(ctx, v)
}

// Clear removes the visit and all its keys together.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear visit: %w", err)
	}
	return nil
}

// Ping checks the Redis connection, for health probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) save(ctx context.Context, v *Visit) error {
	locked := "0"
	if v.LangLocked {
		locked = "1"
	}
	if err := s.client.HSet(ctx, s.key,
		fieldID, v.ID,
		fieldStart, strconv.FormatInt(v.StartedAt.UnixMilli(), 10),
		fieldLang, string(v.Lang),
		fieldLocked, locked,
	).Err(); err != nil {
		return fmt.Errorf("save visit: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return fmt.Errorf("set visit ttl: %w", err)
		}
	}
	return nil
}
