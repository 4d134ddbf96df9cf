package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/adapter"
	"paynow-client/internal/domain/ports/repository"
	"paynow-client/internal/infra/logging"
	"paynow-client/internal/infra/metrics"
	"paynow-client/internal/infra/paynow"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Initiate starts a web checkout and returns the stored transaction with
	// its browser URL.
	Initiate(ctx context.Context, req model.PaymentRequest) (*model.Transaction, error)
	// InitiateMobile starts an express checkout on a mobile-money wallet.
	InitiateMobile(ctx context.Context, req model.PaymentRequest, phone string, method model.PaymentMethod) (*model.Transaction, error)
	// InitiateCard starts a Visa/Mastercard express checkout.
	InitiateCard(ctx context.Context, req model.PaymentRequest, card model.CardPayment) (*model.Transaction, error)
	// Poll asks the gateway for the current status of reference.
	Poll(ctx context.Context, reference string) (*model.Transaction, error)
	// HandleStatusUpdate applies a result-URL post from the gateway.
	HandleStatusUpdate(ctx context.Context, body []byte) (*model.Transaction, error)
	// Trace looks a transaction up by merchant trace id.
	Trace(ctx context.Context, merchantTrace string) (*model.GatewayResponse, error)
	Get(ctx context.Context, reference string) (*model.Transaction, error)
}

// PaymentConfig carries merchant credentials and defaults.
type PaymentConfig struct {
	IntegrationID paynow.IntegrationID
	Key           paynow.IntegrationKey
	ReturnURL     string
	ResultURL     string
	LockTTL       time.Duration
}

type paymentUC struct {
	txns      repository.TransactionRepository
	transport adapter.PaymentTransport
	builder   *paynow.Builder
	locker    adapter.Locker
	cfg       PaymentConfig
	logger    *zerolog.Logger
	now       func() time.Time
}

// NewPaymentUseCase wires the use case. locker may be nil for single-process use.
func NewPaymentUseCase(
	txns repository.TransactionRepository,
	transport adapter.PaymentTransport,
	currencies adapter.CurrencyValidator,
	locker adapter.Locker,
	cfg PaymentConfig,
	logger *zerolog.Logger,
) *paymentUC {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &paymentUC{
		txns:      txns,
		transport: transport,
		builder:   paynow.NewBuilder(currencies),
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, req model.PaymentRequest) (*model.Transaction, error) {
	req.Method = model.PaymentMethodWeb
	u.applyDefaults(&req)
	payload, err := u.builder.BuildWebRequest(&req, u.cfg.Key, u.cfg.IntegrationID)
	if err != nil {
		return nil, err
	}
	return u.start(ctx, req, payload, paynow.ResponseInitiate)
}

func (u *paymentUC) InitiateMobile(ctx context.Context, req model.PaymentRequest, phone string, method model.PaymentMethod) (*model.Transaction, error) {
	req.Method = method
	u.applyDefaults(&req)
	payload, err := u.builder.BuildMobileRequest(&req, phone, method, u.cfg.Key, u.cfg.IntegrationID)
	if err != nil {
		return nil, err
	}
	req.Phone, _ = payload.Fields.Get(paynow.FieldPhone)
	return u.start(ctx, req, payload, paynow.ResponseRemote)
}

func (u *paymentUC) InitiateCard(ctx context.Context, req model.PaymentRequest, card model.CardPayment) (*model.Transaction, error) {
	req.Method = model.PaymentMethodVMC
	u.applyDefaults(&req)
	payload, err := u.builder.BuildCardRequest(&req, card, u.cfg.Key, u.cfg.IntegrationID)
	if err != nil {
		return nil, err
	}
	return u.start(ctx, req, payload, paynow.ResponseRemote)
}

func (u *paymentUC) applyDefaults(req *model.PaymentRequest) {
	if req.ReturnURL == "" && req.Method == model.PaymentMethodWeb {
		req.ReturnURL = u.cfg.ReturnURL
	}
	if req.ResultURL == "" {
		req.ResultURL = u.cfg.ResultURL
	}
	if req.MerchantTrace == "" {
		req.MerchantTrace = ulid.Make().String()
	}
}

// statusError is the token recorded on a transaction the gateway refused.
const statusError = "Error"

// start stores the transaction as Created, sends payload and applies the reply.
// A reference whose earlier attempt never reached the gateway is reused.
func (u *paymentUC) start(ctx context.Context, req model.PaymentRequest, payload *paynow.SignedPayload, kind paynow.ResponseKind) (*model.Transaction, error) {
	ctx = logging.WithReference(ctx, req.Reference)
	log := logging.With(ctx, u.logger)

	var txn *model.Transaction
	err := u.withLock(ctx, req.Reference, func() error {
		existing, err := u.txns.FindByReference(ctx, nil, req.Reference)
		switch {
		case err == nil && existing.Reusable():
			// an earlier attempt never reached a live gateway transaction
			if err := existing.Restart(req, u.now()); err != nil {
				return err
			}
			txn = existing
			log.Info().Str("transaction_id", txn.ID).Msg("retrying initiation for reference")
		case err == nil:
			return fmt.Errorf("reference %s: %w", req.Reference, domain.ErrAlreadyExists)
		case errors.Is(err, domain.ErrNotFound):
			txn, err = model.NewTransaction(uuid.NewString(), req, u.now())
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("find transaction: %w", err)
		}

		if err := u.txns.Save(ctx, nil, txn); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		metrics.IncTransition(string(txn.Status))

		body, err := u.transport.Post(ctx, payload.Endpoint(), payload.Encode())
		if err != nil {
			log.Error().Err(err).Str("method", string(req.Method)).Msg("paynow initiate failed")
			return fmt.Errorf("initiate %s: %w", req.Reference, err)
		}
		resp, err := u.parse("initiate", kind, body)
		if err != nil {
			log.Warn().Err(err).Str("method", string(req.Method)).Msg("paynow initiate rejected")
			if errors.Is(err, domain.ErrGatewayRejected) && txn.Reject(statusError, u.now()) {
				if saveErr := u.txns.Save(ctx, nil, txn); saveErr != nil {
					log.Error().Err(saveErr).Msg("failed to record rejected initiation")
				} else {
					metrics.IncTransition(string(txn.Status))
				}
			}
			return fmt.Errorf("initiate %s: %w", req.Reference, err)
		}
		return u.apply(ctx, txn, resp)
	})
	if err != nil {
		return txn, err
	}

	log.Info().
		Str("transaction_id", txn.ID).
		Str("method", string(req.Method)).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Msg("paynow transaction started")
	return txn, nil
}

func (u *paymentUC) Poll(ctx context.Context, reference string) (*model.Transaction, error) {
	ctx = logging.WithReference(ctx, reference)
	var txn *model.Transaction
	err := u.withLock(ctx, reference, func() error {
		var err error
		txn, err = u.txns.FindByReference(ctx, nil, reference)
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		if txn.PollURL == "" {
			return fmt.Errorf("%w: transaction %s has no poll url", domain.ErrInvalidArgument, reference)
		}
		body, err := u.transport.Post(ctx, txn.PollURL, "")
		if err != nil {
			return fmt.Errorf("poll %s: %w", reference, err)
		}
		resp, err := u.parse("poll", paynow.ResponseStatus, body)
		if err != nil {
			return fmt.Errorf("poll %s: %w", reference, err)
		}
		return u.apply(ctx, txn, resp)
	})
	return txn, err
}

func (u *paymentUC) HandleStatusUpdate(ctx context.Context, body []byte) (*model.Transaction, error) {
	resp, err := u.parse("result_url", paynow.ResponseStatus, body)
	if err != nil {
		u.logger.Warn().Err(err).Msg("rejected paynow status update")
		return nil, err
	}

	ctx = logging.WithReference(ctx, resp.Reference)
	var txn *model.Transaction
	err = u.withLock(ctx, resp.Reference, func() error {
		var err error
		txn, err = u.txns.FindByReference(ctx, nil, resp.Reference)
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		return u.apply(ctx, txn, resp)
	})
	return txn, err
}

func (u *paymentUC) Trace(ctx context.Context, merchantTrace string) (*model.GatewayResponse, error) {
	payload, err := u.builder.BuildTraceRequest(merchantTrace, u.cfg.Key, u.cfg.IntegrationID)
	if err != nil {
		return nil, err
	}
	body, err := u.transport.Post(ctx, payload.Endpoint(), payload.Encode())
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", merchantTrace, err)
	}
	resp, err := u.parse("trace", paynow.ResponseStatus, body)
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", merchantTrace, err)
	}

	// bring a stored transaction up to date when we know it
	ctx = logging.WithReference(ctx, resp.Reference)
	err = u.withLock(ctx, resp.Reference, func() error {
		txn, err := u.txns.FindByReference(ctx, nil, resp.Reference)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		return u.apply(ctx, txn, resp)
	})
	return resp, err
}

func (u *paymentUC) Get(ctx context.Context, reference string) (*model.Transaction, error) {
	return u.txns.FindByReference(ctx, nil, reference)
}

// apply advances txn with a verified response and persists any change.
func (u *paymentUC) apply(ctx context.Context, txn *model.Transaction, resp *model.GatewayResponse) error {
	log := logging.With(logging.WithTransactionID(ctx, txn.ID), u.logger)
	prev := txn.Status

	changed, err := txn.Advance(resp, u.now())
	if err != nil {
		var conflict *domain.StateConflictError
		if errors.As(err, &conflict) {
			log.Error().Str("current", conflict.Current).Str("incoming", conflict.Incoming).Msg("conflicting terminal status from paynow")
		}
		return err
	}
	if !changed {
		return nil
	}
	if err := u.txns.Save(ctx, nil, txn); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	if txn.Status != prev {
		metrics.IncTransition(string(txn.Status))
		log.Info().Str("from", string(prev)).Str("to", string(txn.Status)).Str("paynow_status", resp.StatusToken).Msg("transaction status changed")
		if txn.Status == model.TransactionStatusPaid {
			metrics.AddRevenue(txn.Request.Currency, txn.Request.Amount)
			if resp.Amount.Valid && !resp.Amount.Decimal.Equal(txn.Request.Amount) {
				log.Warn().Str("expected", txn.Request.Amount.String()).Str("reported", resp.Amount.Decimal.String()).Msg("paid amount differs from requested amount")
			}
		}
	}
	return nil
}

// parse runs the response parser and records the outcome.
func (u *paymentUC) parse(source string, kind paynow.ResponseKind, body []byte) (*model.GatewayResponse, error) {
	resp, err := paynow.Parse(kind, body, u.cfg.Key)
	if err != nil {
		metrics.IncVerification(source, "fail", failureReason(err))
		return nil, err
	}
	metrics.IncVerification(source, "ok", "none")
	return resp, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingHash):
		return "missing_hash"
	case errors.Is(err, domain.ErrHashMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrGatewayRejected):
		return "rejected"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}

func (u *paymentUC) withLock(ctx context.Context, reference string, fn func() error) error {
	if u.locker == nil {
		return fn()
	}
	key := "paynow:txn:" + reference
	token, err := u.locker.TryLock(ctx, key, u.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("lock %s: %w", reference, err)
	}
	defer func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			u.logger.Warn().Err(err).Str("reference", reference).Msg("failed to release transaction lock")
		}
	}()
	return fn()
}
