package api

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"paynow-client/internal/config"
	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/infra/api/apiv1"
	"paynow-client/internal/infra/logging"
	"paynow-client/internal/infra/metrics"
	red "paynow-client/internal/infra/redis"
	"paynow-client/internal/usecase"
)

const maxWebhookBody = 64 << 10

// Server exposes the Paynow result webhook, the customer return page and,
// when a JWT secret is configured, the merchant API.
type Server struct {
	payUC   usecase.PaymentUseCase
	limiter Limiter
	cfg     config.APIConfig
	timeout time.Duration
	log     *zerolog.Logger
}

// NewServer builds the HTTP layer. limiter may be nil to disable webhook
// rate limiting.
func NewServer(payUC usecase.PaymentUseCase, limiter Limiter, cfg config.APIConfig, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	srvLog := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{payUC: payUC, limiter: limiter, cfg: cfg, timeout: requestTimeout, log: &srvLog}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, TraceID(s.log), RequestLog(s.log), Recover(s.log), Timeout(s.timeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimit(s.limiter, red.WebhookKey, s.cfg.WebhookRateLimit, s.cfg.WebhookRateWindow, s.log))
		}
		r.Post("/paynow/result", s.handleResult)
	})
	r.Get("/paynow/return", s.handleReturn)

	if s.cfg.JWTSecret != "" {
		r.Group(func(r chi.Router) {
			r.Use(BearerJWT([]byte(s.cfg.JWTSecret)))
			apiv1.RegisterAPIV1(r, apiv1.NewServer(s.payUC, s.log))
		})
	}
	return r
}

// handleResult receives the gateway's server-to-server status update. Any
// non-200 answer makes Paynow retry later.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.answerWebhook(w, http.StatusBadRequest)
		return
	}

	txn, err := s.payUC.HandleStatusUpdate(r.Context(), body)
	code := webhookStatus(err)
	if err != nil {
		log.Warn().Err(err).Int("status", code).Msg("paynow status update not applied")
	} else {
		log.Info().Str("reference", txn.Request.Reference).Str("status", string(txn.Status)).Msg("paynow status update applied")
	}
	s.answerWebhook(w, code)
}

func (s *Server) answerWebhook(w http.ResponseWriter, code int) {
	metrics.IncWebhook(code)
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(http.StatusText(code)))
}

func webhookStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrIntegrity),
		errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrGatewayRejected),
		errors.Is(err, domain.ErrReferenceMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleReturn renders the page the customer lands on after checkout. A
// pending transaction is polled once so the page is current.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		s.renderHTML(w, http.StatusBadRequest, returnView{Msg: "missing reference"})
		return
	}
	ctx := logging.WithReference(r.Context(), ref)
	log := logging.With(ctx, s.log)

	txn, err := s.payUC.Get(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		s.renderHTML(w, http.StatusNotFound, returnView{Reference: ref, Msg: "we could not find this payment"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load transaction for return page failed")
		s.renderHTML(w, http.StatusInternalServerError, returnView{Reference: ref, Msg: "please try again shortly"})
		return
	}

	if !txn.Status.IsTerminal() && txn.PollURL != "" {
		if polled, err := s.payUC.Poll(ctx, ref); err != nil {
			log.Warn().Err(err).Msg("poll on return failed")
		} else {
			txn = polled
		}
	}
	s.renderHTML(w, http.StatusOK, viewOf(txn))
}

type returnView struct {
	Reference string
	Status    string
	Amount    string
	Paid      bool
	Pending   bool
	Msg       string
}

func viewOf(txn *model.Transaction) returnView {
	v := returnView{
		Reference: txn.Request.Reference,
		Status:    string(txn.Status),
		Amount:    txn.Request.Amount.String() + " " + txn.Request.Currency,
		Paid:      txn.Status == model.TransactionStatusPaid,
		Pending:   !txn.Status.IsTerminal(),
	}
	switch {
	case v.Paid:
		v.Msg = "payment received, thank you"
	case v.Pending:
		v.Msg = "your payment is still being processed; this page will not update by itself"
	default:
		v.Msg = "the payment was not completed"
	}
	return v
}

var page = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .Paid}}Success{{else}}Status{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020} .wait{color:#8a6d00}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .Paid}}ok{{else if .Pending}}wait{{else}}fail{{end}}">{{if .Paid}}Payment Successful{{else if .Pending}}Payment Pending{{else}}Payment Status{{end}}</h2>
  <p>{{.Msg}}</p>
  {{if .Amount}}<p>{{.Amount}}</p>{{end}}
  {{if .Reference}}<div class="small">Reference {{.Reference}}{{if .Status}} · {{.Status}}{{end}}</div>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, v returnView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, v)
}
