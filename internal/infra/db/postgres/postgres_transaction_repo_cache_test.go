//go:build !integration

package postgres

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/repository"
)

var redisNil = redis.Nil

func cachedTransaction() *model.Transaction {
	return &model.Transaction{
		ID:      "7f1c0c4e-2f7a-4a8e-9a57-0c1f3a9b2d11",
		Request: model.PaymentRequest{Reference: "INV-001", Amount: decimal.RequireFromString("10.50"), Currency: "USD"},
		Status:  model.TransactionStatusSent,
		PollURL: "https://www.paynow.co.zw/Interface/CheckPayment/?guid=1",
	}
}

func TestTransactionRepoCacheDecorator_FindByReference(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("should serve the second read from the cache", func(t *testing.T) {
		// --- Arrange ---
		cache, store := memoryRedis()
		inner := &mockInnerTransactionRepo{
			FindByReferenceFunc: func(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
				return cachedTransaction(), nil
			},
		}
		repo := NewTransactionRepoCacheDecorator(inner, cache, time.Minute, &logger)

		// --- Act ---
		first, err1 := repo.FindByReference(ctx, nil, "INV-001")
		second, err2 := repo.FindByReference(ctx, nil, "INV-001")

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("expected no errors, got: %v / %v", err1, err2)
		}
		if inner.FindByReferenceHits != 1 {
			t.Errorf("expected the database to be hit once, got %d", inner.FindByReferenceHits)
		}
		if _, ok := store["paynow:txn:ref:INV-001"]; !ok {
			t.Error("expected the transaction to be cached")
		}
		if !second.Request.Amount.Equal(first.Request.Amount) || second.PollURL != first.PollURL {
			t.Errorf("cached copy differs: %+v vs %+v", second, first)
		}
	})

	t.Run("should bypass the cache inside a database transaction", func(t *testing.T) {
		cache, _ := memoryRedis()
		inner := &mockInnerTransactionRepo{
			FindByReferenceFunc: func(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
				return cachedTransaction(), nil
			},
		}
		repo := NewTransactionRepoCacheDecorator(inner, cache, time.Minute, &logger)

		_, _ = repo.FindByReference(ctx, struct{}{}, "INV-001")
		_, _ = repo.FindByReference(ctx, struct{}{}, "INV-001")

		if inner.FindByReferenceHits != 2 {
			t.Errorf("expected two database reads, got %d", inner.FindByReferenceHits)
		}
	})

	t.Run("should not cache a missing transaction", func(t *testing.T) {
		cache, store := memoryRedis()
		inner := &mockInnerTransactionRepo{
			FindByReferenceFunc: func(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
				return nil, domain.ErrNotFound
			},
		}
		repo := NewTransactionRepoCacheDecorator(inner, cache, time.Minute, &logger)

		_, err := repo.FindByReference(ctx, nil, "INV-404")

		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if len(store) != 0 {
			t.Errorf("expected an empty cache, got %v", store)
		}
	})

	t.Run("should fall back to the database when redis fails", func(t *testing.T) {
		cache, _ := memoryRedis()
		cache.GetFunc = func(ctx context.Context, key string) (string, error) { return "", errors.New("connection refused") }
		inner := &mockInnerTransactionRepo{
			FindByReferenceFunc: func(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
				return cachedTransaction(), nil
			},
		}
		repo := NewTransactionRepoCacheDecorator(inner, cache, time.Minute, &logger)

		got, err := repo.FindByReference(ctx, nil, "INV-001")

		if err != nil || got == nil {
			t.Fatalf("expected the database result, got %v / %v", got, err)
		}
	})
}

func TestTransactionRepoCacheDecorator_Save(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("should invalidate the cached entry", func(t *testing.T) {
		cache, store := memoryRedis()
		store["paynow:txn:ref:INV-001"] = `{"stale":true}`
		saved := false
		inner := &mockInnerTransactionRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
				saved = true
				return nil
			},
		}
		repo := NewTransactionRepoCacheDecorator(inner, cache, time.Minute, &logger)

		err := repo.Save(ctx, nil, cachedTransaction())

		if err != nil || !saved {
			t.Fatalf("expected a save, got saved=%v err=%v", saved, err)
		}
		if _, ok := store["paynow:txn:ref:INV-001"]; ok {
			t.Error("expected the cache entry to be removed")
		}
	})
}
