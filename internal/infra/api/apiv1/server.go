// Package apiv1 is the merchant-facing JSON API. Authentication is applied
// by the caller when mounting it.
package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/infra/logging"
	"paynow-client/internal/usecase"
)

const maxBody = 64 << 10

type Server struct {
	uc  usecase.PaymentUseCase
	log *zerolog.Logger
}

func NewServer(uc usecase.PaymentUseCase, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Server{uc: uc, log: logger}
}

// RegisterAPIV1 mounts the routes with absolute /api/v1 paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/api/v1/payments", s.createPayment)
	r.Get("/api/v1/payments/{reference}", s.getPayment)
	r.Post("/api/v1/payments/{reference}/poll", s.pollPayment)
	r.Post("/api/v1/traces", s.trace)
}

type cardJSON struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	CVV    string `json:"cvv"`
	Expiry string `json:"expiry"`
}

type billingJSON struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country"`
}

type createPaymentRequest struct {
	model.PaymentRequest
	Card    *cardJSON    `json:"card,omitempty"`
	Billing *billingJSON `json:"billing,omitempty"`
	Token   string       `json:"token,omitempty"` // saved card token for vmc
}

type transactionView struct {
	ID              string          `json:"id"`
	Reference       string          `json:"reference"`
	Method          string          `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaynowStatus    string          `json:"paynow_status,omitempty"`
	BrowserURL      string          `json:"browser_url,omitempty"`
	PaynowReference string          `json:"paynow_reference,omitempty"`
	Instructions    string          `json:"instructions,omitempty"`
	MerchantTrace   string          `json:"merchant_trace,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

func toView(t *model.Transaction) transactionView {
	return transactionView{
		ID:              t.ID,
		Reference:       t.Request.Reference,
		Method:          string(t.Request.Method),
		Amount:          t.Request.Amount,
		Currency:        t.Request.Currency,
		Status:          string(t.Status),
		PaynowStatus:    t.StatusToken,
		BrowserURL:      t.BrowserURL,
		PaynowReference: t.PaynowReference,
		Instructions:    t.Instructions,
		MerchantTrace:   t.Request.MerchantTrace,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		PaidAt:          t.PaidAt,
	}
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var body createPaymentRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx := logging.WithReference(r.Context(), body.Reference)

	var (
		txn *model.Transaction
		err error
	)
	switch method := body.Method; {
	case method == "" || method == model.PaymentMethodWeb:
		txn, err = s.uc.Initiate(ctx, body.PaymentRequest)
	case method.IsMobile():
		txn, err = s.uc.InitiateMobile(ctx, body.PaymentRequest, body.Phone, method)
	case method == model.PaymentMethodVMC:
		txn, err = s.uc.InitiateCard(ctx, body.PaymentRequest, body.cardPayment())
	default:
		err = &domain.UnsupportedMethodError{Method: string(method)}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toView(txn))
}

func (b createPaymentRequest) cardPayment() model.CardPayment {
	var cp model.CardPayment
	if b.Card != nil {
		cp.Card = model.Card{Number: b.Card.Number, Name: b.Card.Name, CVV: b.Card.CVV, Expiry: b.Card.Expiry}
	}
	if b.Billing != nil {
		cp.Address = model.BillingAddress{Line1: b.Billing.Line1, Line2: b.Billing.Line2, City: b.Billing.City, Province: b.Billing.Province, Country: b.Billing.Country}
	}
	cp.Token = b.Token
	return cp
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	txn, err := s.uc.Get(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(txn))
}

func (s *Server) pollPayment(w http.ResponseWriter, r *http.Request) {
	txn, err := s.uc.Poll(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(txn))
}

type traceRequest struct {
	MerchantTrace string `json:"merchant_trace"`
}

type traceView struct {
	Reference       string           `json:"reference"`
	PaynowReference string           `json:"paynow_reference,omitempty"`
	Status          string           `json:"status"`
	PaynowStatus    string           `json:"paynow_status"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
}

func (s *Server) trace(w http.ResponseWriter, r *http.Request) {
	var body traceRequest
	if err := decode(w, r, &body); err != nil || body.MerchantTrace == "" {
		writeError(w, http.StatusBadRequest, "merchant_trace is required")
		return
	}
	resp, err := s.uc.Trace(r.Context(), body.MerchantTrace)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := traceView{
		Reference:       resp.Reference,
		PaynowReference: resp.PaynowReference,
		Status:          string(resp.Status),
		PaynowStatus:    resp.StatusToken,
	}
	if resp.Amount.Valid {
		v.Amount = &resp.Amount.Decimal
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if code >= http.StatusInternalServerError {
		l.Error().Err(err).Int("status", code).Msg("api request failed")
		writeError(w, code, http.StatusText(code))
		return
	}
	l.Warn().Err(err).Int("status", code).Msg("api request rejected")
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEncoding),
		errors.Is(err, domain.ErrUnsupportedMethod):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayRejected),
		errors.Is(err, domain.ErrTransport),
		errors.Is(err, domain.ErrIntegrity),
		errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
