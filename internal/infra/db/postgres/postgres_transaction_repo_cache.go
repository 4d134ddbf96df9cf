package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/repository"
	"paynow-client/internal/infra/metrics"
	red "paynow-client/internal/infra/redis"
)

var _ repository.TransactionRepository = (*transactionRepoCacheDecorator)(nil)

// transactionRepoCacheDecorator caches reference lookups, which the return
// page and webhook hit repeatedly. Pending listings always go to the database.
type transactionRepoCacheDecorator struct {
	inner  repository.TransactionRepository
	cache  red.RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewTransactionRepoCacheDecorator(inner repository.TransactionRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.TransactionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &transactionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func referenceKey(reference string) string { return fmt.Sprintf("paynow:txn:ref:%s", reference) }

func (d *transactionRepoCacheDecorator) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	// reads inside a db transaction must see the locked row
	if tx != nil {
		return d.inner.FindByReference(ctx, tx, reference)
	}

	key := referenceKey(reference)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var t model.Transaction
		if json.Unmarshal([]byte(val), &t) == nil {
			metrics.IncCacheRequest("transaction", "hit")
			return &t, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("transaction", "error")
		d.logger.Warn().Err(err).Msg("transaction cache read failed")
	}

	metrics.IncCacheRequest("transaction", "miss")
	t, err := d.inner.FindByReference(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(t); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.logger.Warn().Err(err).Msg("transaction cache write failed")
		}
	}
	return t, nil
}

// Save invalidates before writing so a failed write never leaves a stale entry.
func (d *transactionRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if err := d.cache.Del(ctx, referenceKey(t.Request.Reference)); err != nil {
		d.logger.Warn().Err(err).Msg("transaction cache invalidation failed")
	}
	return d.inner.Save(ctx, tx, t)
}

func (d *transactionRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return d.inner.FindByID(ctx, tx, id)
}

func (d *transactionRepoCacheDecorator) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Transaction, error) {
	return d.inner.ListPendingOlderThan(ctx, tx, before, limit)
}

func (d *transactionRepoCacheDecorator) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int64, error) {
	return d.inner.CountByStatus(ctx, tx)
}
