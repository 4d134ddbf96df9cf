package repository

import (
	"context"
	"time"

	"paynow-client/internal/domain/model"
)

// TransactionRepository stores Paynow transactions. qx is an optional
// infra-defined transaction handle; nil means no transaction.
type TransactionRepository interface {
	// Save inserts or updates by ID.
	Save(ctx context.Context, qx any, t *model.Transaction) error
	FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error)
	FindByReference(ctx context.Context, qx any, reference string) (*model.Transaction, error)
	// ListPendingOlderThan returns non-terminal transactions with a poll URL
	// last updated before the cutoff, oldest first.
	ListPendingOlderThan(ctx context.Context, qx any, before time.Time, limit int) ([]*model.Transaction, error)
	// CountByStatus backs the status gauge.
	CountByStatus(ctx context.Context, qx any) (map[model.TransactionStatus]int64, error)
}
