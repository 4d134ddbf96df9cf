package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

const uniqueViolation = "23505"

const transactionColumns = `id, request, status, status_token, poll_url, browser_url, paynow_reference, instructions, created_at, updated_at, paid_at`

// FieldCipher seals customer contact details inside the stored request.
type FieldCipher interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

type transactionRepo struct {
	pool   *pgxpool.Pool
	cipher FieldCipher
}

// NewTransactionRepo stores transactions in paynow_transactions. cipher may
// be nil, in which case auth email and phone are stored as given.
func NewTransactionRepo(pool *pgxpool.Pool, cipher FieldCipher) *transactionRepo {
	return &transactionRepo{pool: pool, cipher: cipher}
}

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO paynow_transactions (
  id, reference, method, amount, currency, request, status, status_token, poll_url, browser_url, paynow_reference, instructions, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  method=$3, amount=$4, currency=$5, request=$6, status=$7, status_token=$8, poll_url=$9, browser_url=$10, paynow_reference=$11, instructions=$12, updated_at=$14, paid_at=$15;`

	req, err := encodeRequest(t.Request, r.cipher)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.Request.Reference, string(t.Request.Method), t.Request.Amount.String(), t.Request.Currency, req,
		string(t.Status), t.StatusToken, t.PollURL, t.BrowserURL, t.PaynowReference, t.Instructions,
		t.CreatedAt, t.UpdatedAt, t.PaidAt)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
			return domain.ErrAlreadyExists
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return r.findOne(ctx, tx, `SELECT `+transactionColumns+` FROM paynow_transactions WHERE id=$1`, id)
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	return r.findOne(ctx, tx, `SELECT `+transactionColumns+` FROM paynow_transactions WHERE reference=$1`, reference)
}

func (r *transactionRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.Transaction, error) {
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", arg)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row, r.cipher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + transactionColumns + ` FROM paynow_transactions
WHERE status NOT IN ('paid','cancelled','failed') AND poll_url <> '' AND updated_at < $1
ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, before, limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, r.cipher)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *transactionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int64, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM paynow_transactions GROUP BY status;`)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[model.TransactionStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.TransactionStatus(status)] = n
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row, cipher FieldCipher) (*model.Transaction, error) {
	var (
		t      model.Transaction
		req    []byte
		status string
	)
	if err := row.Scan(&t.ID, &req, &status, &t.StatusToken, &t.PollURL, &t.BrowserURL, &t.PaynowReference, &t.Instructions, &t.CreatedAt, &t.UpdatedAt, &t.PaidAt); err != nil {
		return nil, err
	}
	r, err := decodeRequest(req, cipher)
	if err != nil {
		return nil, err
	}
	t.Request = r
	t.Status = model.TransactionStatus(status)
	return &t, nil
}

func encodeRequest(req model.PaymentRequest, cipher FieldCipher) ([]byte, error) {
	if cipher != nil {
		var err error
		if req.AuthEmail, err = cipher.Seal(req.AuthEmail); err != nil {
			return nil, domain.ErrOperationFailed
		}
		if req.Phone, err = cipher.Seal(req.Phone); err != nil {
			return nil, domain.ErrOperationFailed
		}
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	return b, nil
}

func decodeRequest(b []byte, cipher FieldCipher) (model.PaymentRequest, error) {
	var req model.PaymentRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return req, err
	}
	if cipher != nil {
		var err error
		if req.AuthEmail, err = cipher.Open(req.AuthEmail); err != nil {
			return req, err
		}
		if req.Phone, err = cipher.Open(req.Phone); err != nil {
			return req, err
		}
	}
	return req, nil
}
