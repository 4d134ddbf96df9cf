package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/repository"
	"paynow-client/internal/infra/logging"
	"paynow-client/internal/infra/metrics"
	"paynow-client/internal/infra/worker"
)

// Poller is the slice of the payment use case the reconciler drives.
type Poller interface {
	Poll(ctx context.Context, reference string) (*model.Transaction, error)
}

// PollReconciler periodically polls transactions that are still pending
// after staleAfter. It covers status updates that never reached the result
// URL and crashes between initiation and the first update.
type PollReconciler struct {
	uc         Poller
	txns       repository.TransactionRepository
	pool       *worker.Pool
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how long a transaction must be quiet before polling
	batch      int
	log        *zerolog.Logger
	now        func() time.Time
}

func NewPollReconciler(uc Poller, txns repository.TransactionRepository, pool *worker.Pool, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PollReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	recLog := logger.With().Str("component", "PollReconciler").Logger()
	return &PollReconciler{
		uc:         uc,
		txns:       txns,
		pool:       pool,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		log:        &recLog,
		now:        time.Now,
	}
}

func (w *PollReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting poll reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping poll reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PollReconciler) tick(ctx context.Context) {
	w.refreshGauge(ctx)

	cutoff := w.now().Add(-w.staleAfter)
	pending, err := w.txns.ListPendingOlderThan(ctx, nil, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending transactions failed")
		return
	}
	for _, txn := range pending {
		ref, before := txn.Request.Reference, txn.Status
		err := w.pool.Submit(func(ctx context.Context) error {
			return w.poll(ctx, ref, before)
		})
		if err != nil {
			metrics.IncReconcilePoll("skipped")
			w.log.Warn().Err(err).Str("reference", ref).Msg("poll not scheduled")
		}
	}
}

func (w *PollReconciler) poll(ctx context.Context, reference string, before model.TransactionStatus) error {
	ctx = logging.WithReference(ctx, reference)
	log := logging.With(ctx, w.log)

	txn, err := w.uc.Poll(ctx, reference)
	if err != nil {
		metrics.IncReconcilePoll("error")
		return err
	}
	if txn.Status == before {
		metrics.IncReconcilePoll("unchanged")
		return nil
	}
	metrics.IncReconcilePoll("changed")
	log.Info().Str("from", string(before)).Str("to", string(txn.Status)).Msg("transaction reconciled")
	return nil
}

func (w *PollReconciler) refreshGauge(ctx context.Context) {
	counts, err := w.txns.CountByStatus(ctx, nil)
	if err != nil {
		w.log.Warn().Err(err).Msg("count transactions by status failed")
		return
	}
	byStatus := make(map[string]int64, len(counts))
	for s, n := range counts {
		byStatus[string(s)] = n
	}
	metrics.SetTransactionsByStatus(byStatus)
}
