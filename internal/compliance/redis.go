package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"convexbot/internal/db"

	"github.com/redis/go-redis/v9"
)

type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps records under "convexbot:<KIND>#<id>". DEL reports how many
// keys it removed, so erasing a missing record is detected atomically.
type RedisStore struct {
	rdb  RedisClient
	kind string
}

func NewRedisStore(rdb RedisClient, kind string) (*RedisStore, error) {
	if kind != db.KindCustomer && kind != db.KindShop {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	return &RedisStore{rdb: rdb, kind: kind}, nil
}

func (s *RedisStore) key(id string) string {
	return "convexbot:" + db.RecordPK(s.kind, id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	v, err := s.rdb.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("compliance redis GET: %w", err)
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("compliance record %s is not valid JSON", s.key(id))
	}
	if isNull(json.RawMessage(v)) {
		return nil, ErrNotFound
	}
	return json.RawMessage(v), nil
}

func (s *RedisStore) Put(ctx context.Context, id string, data json.RawMessage) error {
	if !json.Valid(data) || isNull(data) {
		return errors.New("compliance record data must be valid non-null JSON")
	}
	if err := s.rdb.Set(ctx, s.key(id), string(data), 0).Err(); err != nil {
		return fmt.Errorf("compliance redis SET: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("compliance redis DEL: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
