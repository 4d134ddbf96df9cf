//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paynow-client/internal/config"
	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/infra/api"
)

type mockPaymentUC struct {
	HandleStatusUpdateFunc func(ctx context.Context, body []byte) (*model.Transaction, error)
	GetFunc                func(ctx context.Context, reference string) (*model.Transaction, error)
	PollFunc               func(ctx context.Context, reference string) (*model.Transaction, error)
	Polls                  int
}

func (m *mockPaymentUC) Initiate(ctx context.Context, req model.PaymentRequest) (*model.Transaction, error) {
	return nil, errors.New("not used")
}
func (m *mockPaymentUC) InitiateMobile(ctx context.Context, req model.PaymentRequest, phone string, method model.PaymentMethod) (*model.Transaction, error) {
	return nil, errors.New("not used")
}
func (m *mockPaymentUC) InitiateCard(ctx context.Context, req model.PaymentRequest, card model.CardPayment) (*model.Transaction, error) {
	return nil, errors.New("not used")
}
func (m *mockPaymentUC) Poll(ctx context.Context, reference string) (*model.Transaction, error) {
	m.Polls++
	return m.PollFunc(ctx, reference)
}
func (m *mockPaymentUC) HandleStatusUpdate(ctx context.Context, body []byte) (*model.Transaction, error) {
	return m.HandleStatusUpdateFunc(ctx, body)
}
func (m *mockPaymentUC) Trace(ctx context.Context, merchantTrace string) (*model.GatewayResponse, error) {
	return nil, errors.New("not used")
}
func (m *mockPaymentUC) Get(ctx context.Context, reference string) (*model.Transaction, error) {
	return m.GetFunc(ctx, reference)
}

type mockLimiter struct {
	allowed int
	err     error
	seen    []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.seen = append(m.seen, key)
	if m.err != nil {
		return false, m.err
	}
	m.allowed++
	return m.allowed <= limit, nil
}

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func txnWith(ref string, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{
		ID:      "7f1c0c4e-2f7a-4a8e-9a57-0c1f3a9b2d11",
		Request: model.PaymentRequest{Reference: ref, Amount: decimal.RequireFromString("10.50"), Currency: "USD"},
		Status:  status,
		PollURL: "https://www.paynow.co.zw/Interface/CheckPayment/?guid=1",
	}
}

func newHandler(uc *mockPaymentUC, limiter api.Limiter, cfg config.APIConfig) http.Handler {
	if cfg.WebhookRateLimit == 0 {
		cfg.WebhookRateLimit = 100
		cfg.WebhookRateWindow = time.Minute
	}
	return api.NewServer(uc, limiter, cfg, time.Second, newTestLogger()).Routes()
}

func postResult(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/paynow/result", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Result(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"should answer 200 when applied", nil, http.StatusOK},
		{"should answer 400 on a bad hash", &domain.ResponseError{Kind: domain.ResponseIntegrity, Err: &domain.IntegrityError{Kind: domain.IntegrityMismatch}}, http.StatusBadRequest},
		{"should answer 400 on a malformed body", &domain.ResponseError{Kind: domain.ResponseMalformed, Detail: "missing status"}, http.StatusBadRequest},
		{"should answer 404 for an unknown reference", fmt.Errorf("find transaction: %w", domain.ErrNotFound), http.StatusNotFound},
		{"should answer 409 on a terminal conflict", &domain.StateConflictError{Reference: "INV-001", Current: "paid", Incoming: "failed"}, http.StatusConflict},
		{"should answer 503 while the transaction is locked", fmt.Errorf("lock INV-001: %w", domain.ErrLockNotAcquired), http.StatusServiceUnavailable},
		{"should answer 500 on storage failure", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			var got []byte
			uc := &mockPaymentUC{HandleStatusUpdateFunc: func(ctx context.Context, body []byte) (*model.Transaction, error) {
				got = body
				if tc.err != nil {
					return nil, tc.err
				}
				return txnWith("INV-001", model.TransactionStatusPaid), nil
			}}

			// --- Act ---
			rec := postResult(newHandler(uc, nil, config.APIConfig{}), "reference=INV-001&status=Paid&hash=ABC")

			// --- Assert ---
			if rec.Code != tc.want {
				t.Errorf("want %d, got %d", tc.want, rec.Code)
			}
			if string(got) != "reference=INV-001&status=Paid&hash=ABC" {
				t.Errorf("expected the raw body to reach the use case, got %q", got)
			}
		})
	}

	t.Run("should rate limit per remote ip", func(t *testing.T) {
		uc := &mockPaymentUC{HandleStatusUpdateFunc: func(ctx context.Context, body []byte) (*model.Transaction, error) {
			return txnWith("INV-001", model.TransactionStatusPaid), nil
		}}
		limiter := &mockLimiter{}
		h := newHandler(uc, limiter, config.APIConfig{WebhookRateLimit: 1, WebhookRateWindow: time.Minute})

		first := postResult(h, "a=b")
		second := postResult(h, "a=b")

		if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
			t.Errorf("want 200 then 429, got %d then %d", first.Code, second.Code)
		}
		if len(limiter.seen) == 0 || limiter.seen[0] != "rate_limit:paynow_result:192.0.2.1" {
			t.Errorf("unexpected limiter key: %v", limiter.seen)
		}
	})

	t.Run("should let requests through when the limiter fails", func(t *testing.T) {
		uc := &mockPaymentUC{HandleStatusUpdateFunc: func(ctx context.Context, body []byte) (*model.Transaction, error) {
			return txnWith("INV-001", model.TransactionStatusPaid), nil
		}}
		h := newHandler(uc, &mockLimiter{err: errors.New("redis down")}, config.APIConfig{})

		if rec := postResult(h, "a=b"); rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
	})
}

func TestServer_Return(t *testing.T) {
	t.Run("should poll a pending transaction and show the result", func(t *testing.T) {
		uc := &mockPaymentUC{
			GetFunc: func(ctx context.Context, reference string) (*model.Transaction, error) {
				return txnWith(reference, model.TransactionStatusSent), nil
			},
			PollFunc: func(ctx context.Context, reference string) (*model.Transaction, error) {
				return txnWith(reference, model.TransactionStatusPaid), nil
			},
		}
		rec := httptest.NewRecorder()

		newHandler(uc, nil, config.APIConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/paynow/return?reference=INV-001", nil))

		if rec.Code != http.StatusOK || uc.Polls != 1 {
			t.Fatalf("want 200 after one poll, got %d after %d", rec.Code, uc.Polls)
		}
		if !strings.Contains(rec.Body.String(), "Payment Successful") || !strings.Contains(rec.Body.String(), "INV-001") {
			t.Errorf("unexpected page: %s", rec.Body.String())
		}
	})

	t.Run("should not poll a finished transaction", func(t *testing.T) {
		uc := &mockPaymentUC{GetFunc: func(ctx context.Context, reference string) (*model.Transaction, error) {
			return txnWith(reference, model.TransactionStatusCancelled), nil
		}}
		rec := httptest.NewRecorder()

		newHandler(uc, nil, config.APIConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/paynow/return?reference=INV-001", nil))

		if rec.Code != http.StatusOK || uc.Polls != 0 {
			t.Errorf("want 200 without polling, got %d after %d polls", rec.Code, uc.Polls)
		}
	})

	t.Run("should escape the reference in the page", func(t *testing.T) {
		uc := &mockPaymentUC{GetFunc: func(ctx context.Context, reference string) (*model.Transaction, error) {
			return nil, domain.ErrNotFound
		}}
		rec := httptest.NewRecorder()

		newHandler(uc, nil, config.APIConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/paynow/return?reference=%3Cscript%3E", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "<script>") {
			t.Error("reference was not escaped")
		}
	})

	t.Run("should answer 400 without a reference", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newHandler(&mockPaymentUC{}, nil, config.APIConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/paynow/return", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("want 400, got %d", rec.Code)
		}
	})
}

func TestServer_MerchantAPI(t *testing.T) {
	secret := "merchant-secret"
	uc := &mockPaymentUC{GetFunc: func(ctx context.Context, reference string) (*model.Transaction, error) {
		return txnWith(reference, model.TransactionStatusSent), nil
	}}

	sign := func(key string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "shop", ExpiresAt: jwt.NewNumericDate(exp)})
		s, err := tok.SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	get := func(h http.Handler, auth string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/INV-001", nil)
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("should accept a valid token", func(t *testing.T) {
		h := newHandler(uc, nil, config.APIConfig{JWTSecret: secret})
		if code := get(h, sign(secret, time.Now().Add(time.Hour))); code != http.StatusOK {
			t.Errorf("want 200, got %d", code)
		}
	})

	t.Run("should reject missing, foreign and expired tokens", func(t *testing.T) {
		h := newHandler(uc, nil, config.APIConfig{JWTSecret: secret})
		for name, tok := range map[string]string{
			"missing": "",
			"foreign": sign("other", time.Now().Add(time.Hour)),
			"expired": sign(secret, time.Now().Add(-time.Hour)),
		} {
			if code := get(h, tok); code != http.StatusUnauthorized {
				t.Errorf("%s: want 401, got %d", name, code)
			}
		}
	})

	t.Run("should not mount the api without a secret", func(t *testing.T) {
		h := newHandler(uc, nil, config.APIConfig{})
		if code := get(h, sign(secret, time.Now().Add(time.Hour))); code != http.StatusNotFound {
			t.Errorf("want 404, got %d", code)
		}
	})
}

func TestServer_HealthAndMetrics(t *testing.T) {
	h := newHandler(&mockPaymentUC{}, nil, config.APIConfig{})
	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, bytes.NewReader(nil)))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: want 200, got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Errorf("%s: expected a request id header", path)
		}
	}
}
