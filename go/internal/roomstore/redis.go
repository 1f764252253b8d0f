package roomstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultKeyPrefix namespaces every key this store writes.
	DefaultKeyPrefix = "pomowave:"

	maxUpdateRetries = 5
	scanBatchSize    = 200
)

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Redis stores each room as a JSON string under <prefix>room:<code>.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("redis connection established")
	return NewRedisWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Redis) key(id string) string {
	return s.prefix + "room:" + id
}

func (s *Redis) Create(ctx context.Context, room *models.Room) error {
	data, err := encodeRoom(room)
	if err != nil {
		return err
	}

	created, err := s.client.WithContext(ctx).SetNX(s.key(room.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create room %s: %w", room.ID, err)
	}
	if !created {
		return ErrExists
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id string) (*models.Room, error) {
	data, err := s.client.WithContext(ctx).Get(s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return decodeRoom(data)
}

// Update runs fn under WATCH so a concurrent writer aborts the transaction
// and the whole read-modify-write is retried.
func (s *Redis) Update(ctx context.Context, id string, fn func(*models.Room) error) (*models.Room, error) {
	key := s.key(id)
	client := s.client.WithContext(ctx)

	for attempt := 1; attempt <= maxUpdateRetries; attempt++ {
		var updated *models.Room

		err := client.Watch(func(tx *redis.Tx) error {
			data, err := tx.Get(key).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			room, err := decodeRoom(data)
			if err != nil {
				return err
			}
			if err := fn(room); err != nil {
				return err
			}
			encoded, err := encodeRoom(room)
			if err != nil {
				return err
			}

			_, err = tx.Pipelined(func(pipe redis.Pipeliner) error {
				pipe.Set(key, encoded, s.ttl)
				return nil
			})
			if err == nil {
				updated = room
			}
			return err
		}, key)

		if err == redis.TxFailedErr {
			log.Debug().Str("room_id", id).Int("attempt", attempt).Msg("room changed during update, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, fmt.Errorf("update room %s: %w", id, ErrConflict)
}

func (s *Redis) ListActive(ctx context.Context) ([]*models.Room, error) {
	client := s.client.WithContext(ctx)
	var (
		cursor uint64
		active []*models.Room
	)

	for {
		keys, next, err := client.Scan(cursor, s.prefix+"room:*", scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan rooms: %w", err)
		}

		if len(keys) > 0 {
			values, err := client.MGet(keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to load rooms: %w", err)
			}
			for i, v := range values {
				raw, ok := v.(string)
				if !ok {
					// expired between SCAN and MGET
					continue
				}
				room, err := decodeRoom([]byte(raw))
				if err != nil {
					log.Warn().Err(err).Str("key", keys[i]).Msg("skipping undecodable room")
					continue
				}
				if room.Timer != nil {
					active = append(active, room)
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return active, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.WithContext(ctx).Ping().Err()
}
