package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

var client *redis.Client

// Setup connects to the Dragonfly/Redis cache. A failed ping is logged and
// the client is kept so the application can start without the cache.
func Setup(cfg config.CacheConfig) *redis.Client {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache at %s:%s: %v", cfg.Host, cfg.Port, err)
	} else {
		log.Infof("[Cache] Connected: %s", pong)
	}
	return client
}

// GetClient returns the shared client, connecting with the environment
// settings on first use.
func GetClient() *redis.Client {
	if client == nil {
		Setup(config.Load().Cache)
	}
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Store is a byte cache with a key prefix. Every failure is treated as a miss
// so callers fall back to the source of truth.
type Store struct {
	rdb    *redis.Client
	prefix string
}

func NewStore(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil || s.rdb == nil {
		return nil, false
	}
	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[Cache] Get %s failed: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (s *Store) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if s == nil || s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		log.Warnf("[Cache] Set %s failed: %v", key, err)
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
