// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paynow-client/internal/config"
	payAdapters "paynow-client/internal/infra/adapters/payment"
	"paynow-client/internal/infra/api"
	"paynow-client/internal/infra/currency"
	pg "paynow-client/internal/infra/db/postgres"
	"paynow-client/internal/infra/logging"
	"paynow-client/internal/infra/metrics"
	"paynow-client/internal/infra/paynow"
	red "paynow-client/internal/infra/redis"
	"paynow-client/internal/infra/sched"
	"paynow-client/internal/infra/security"
	"paynow-client/internal/infra/worker"
	"paynow-client/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	currencies := flag.String("currencies", "USD", "comma separated ISO 4217 codes the merchant accepts; empty allows all")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Credentials ----
	key := cfg.Paynow.IntegrationKey
	if !key.IsGUID() {
		logger.Warn().Msg("paynow.integration_key is not a GUID; using it as given")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Encryption ----
	var fieldCipher pg.FieldCipher
	if cfg.Security.EncryptionKey != "" {
		encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		fieldCipher = encSvc
	} else {
		logger.Warn().Msg("security.encryption_key not set; customer contact details are stored in plaintext")
	}

	// ---- Repositories ----
	txnRepo := pg.NewTransactionRepoCacheDecorator(pg.NewTransactionRepo(pool, fieldCipher), redisClient, cfg.Redis.TTL, logger)

	// ---- Gateway ----
	gw, err := payAdapters.NewPaynowGateway(cfg.Paynow.BaseURL, cfg.Paynow.Timeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("paynow gateway")
	}

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(txnRepo, gw, currency.New(splitCodes(*currencies)...), locker, usecase.PaymentConfig{
		IntegrationID: paynow.IntegrationID(cfg.Paynow.IntegrationID),
		Key:           key,
		ReturnURL:     cfg.Paynow.ReturnURL,
		ResultURL:     cfg.Paynow.ResultURL,
		LockTTL:       cfg.Redis.LockTTL,
	}, logger)

	// ---- Reconciler ----
	pollPool := worker.NewPool(cfg.Reconciler.Workers, logger)
	pollPool.Start(ctx)
	reconciler := sched.NewPollReconciler(paymentUC, txnRepo, pollPool, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.Batch, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP server ----
	srv := api.NewServer(paymentUC, rateLimiter, cfg.API, cfg.HTTP.RequestTimeout, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Bool("merchant_api", cfg.API.JWTSecret != "").Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	pollPool.Stop()
}
