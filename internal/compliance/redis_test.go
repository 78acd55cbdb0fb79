package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"convexbot/internal/db"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	kv     map[string]string
	getErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.kv[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.kv[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.kv[k]; ok {
			delete(f.kv, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rdb := &fakeRedis{kv: map[string]string{}}
	s, err := NewRedisStore(rdb, db.KindCustomer)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	ctx := context.Background()

	if err := s.Put(ctx, "42", json.RawMessage(`{"email":"a@b.c"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := rdb.kv["convexbot:CUSTOMER#42"]; !ok {
		t.Errorf("keys = %v", rdb.kv)
	}

	data, err := s.Get(ctx, "42")
	if err != nil || string(data) != `{"email":"a@b.c"}` {
		t.Fatalf("Get = %s, %v", data, err)
	}

	if err := s.Delete(ctx, "42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if err := s.Delete(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func TestRedisStoreKindsAreSeparate(t *testing.T) {
	rdb := &fakeRedis{kv: map[string]string{}}
	customers, _ := NewRedisStore(rdb, db.KindCustomer)
	shops, _ := NewRedisStore(rdb, db.KindShop)

	_ = customers.Put(context.Background(), "1", json.RawMessage(`{}`))
	if _, err := shops.Get(context.Background(), "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("shop lookup saw a customer record: %v", err)
	}
}

func TestRedisStoreErrors(t *testing.T) {
	if _, err := NewRedisStore(&fakeRedis{}, "ORDER"); err == nil {
		t.Error("unknown kind should fail")
	}

	rdb := &fakeRedis{kv: map[string]string{"convexbot:SHOP#s": "not json"}}
	s, _ := NewRedisStore(rdb, db.KindShop)
	if _, err := s.Get(context.Background(), "s"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("invalid record err = %v", err)
	}
	if err := s.Put(context.Background(), "s", json.RawMessage(`{`)); err == nil {
		t.Error("invalid JSON should be rejected")
	}

	rdb.getErr = errors.New("connection refused")
	if _, err := s.Get(context.Background(), "s"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("transport err = %v", err)
	}
}

func TestRedisStoreNullRecordIsAbsent(t *testing.T) {
	rdb := &fakeRedis{kv: map[string]string{"convexbot:CUSTOMER#7": "null"}}
	s, _ := NewRedisStore(rdb, db.KindCustomer)

	if _, err := s.Get(context.Background(), "7"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := s.Put(context.Background(), "8", json.RawMessage(`null`)); err == nil {
		t.Error("Put accepted a null record")
	}
}
