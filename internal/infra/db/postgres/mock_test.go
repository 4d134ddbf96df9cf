//go:build !integration

package postgres

import (
	"context"
	"time"

	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/repository"
	red "paynow-client/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerTransactionRepo mocks the database repository that the decorator wraps.
type mockInnerTransactionRepo struct {
	SaveFunc            func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	FindByReferenceFunc func(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error)
	FindByReferenceHits int
}

var _ repository.TransactionRepository = &mockInnerTransactionRepo{}

func (m *mockInnerTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	return m.SaveFunc(ctx, tx, t)
}
func (m *mockInnerTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	m.FindByReferenceHits++
	return m.FindByReferenceFunc(ctx, tx, reference)
}
func (m *mockInnerTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return nil, nil
}
func (m *mockInnerTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Transaction, error) {
	return nil, nil
}
func (m *mockInnerTransactionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int64, error) {
	return nil, nil
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

// memoryRedis is a map-backed mockRedisClient.
func memoryRedis() (*mockRedisClient, map[string]string) {
	store := map[string]string{}
	return &mockRedisClient{
		GetFunc: func(ctx context.Context, key string) (string, error) {
			v, ok := store[key]
			if !ok {
				return "", redisNil
			}
			return v, nil
		},
		SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
			switch v := value.(type) {
			case []byte:
				store[key] = string(v)
			case string:
				store[key] = v
			}
			return nil
		},
		DelFunc: func(ctx context.Context, keys ...string) error {
			for _, k := range keys {
				delete(store, k)
			}
			return nil
		},
	}, store
}
