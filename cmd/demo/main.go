// Command demo walks through a Paynow checkout against the in-memory fake
// gateway. It needs no network, database or Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paynow-client/internal/config"
	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	payAdapters "paynow-client/internal/infra/adapters/payment"
	"paynow-client/internal/infra/currency"
	"paynow-client/internal/infra/logging"
	"paynow-client/internal/infra/paynow"
	"paynow-client/internal/usecase"
)

func main() {
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: *level, Format: "console"}, true)
	ctx := context.Background()

	key := paynow.NewIntegrationKey("s3cr3t")
	gw := payAdapters.NewFakeGateway("1201", key)
	uc := usecase.NewPaymentUseCase(newMemoryRepo(), gw, currency.New("USD"), nil, usecase.PaymentConfig{
		IntegrationID: "1201",
		Key:           key,
		ReturnURL:     "https://shop.example.com/paynow/return?reference=INV-001",
		ResultURL:     "https://shop.example.com/paynow/result",
	}, logger)

	if err := webCheckout(ctx, uc, gw, logger); err != nil {
		logger.Error().Err(err).Msg("web checkout scenario failed")
		os.Exit(1)
	}
	if err := mobileCheckout(ctx, uc, gw, logger); err != nil {
		logger.Error().Err(err).Msg("mobile checkout scenario failed")
		os.Exit(1)
	}
}

func webCheckout(ctx context.Context, uc usecase.PaymentUseCase, gw *payAdapters.FakeGateway, logger *zerolog.Logger) error {
	req := model.PaymentRequest{
		Reference: "INV-001",
		Amount:    decimal.RequireFromString("10.50"),
		Currency:  "USD",
		Items:     []model.LineItem{{Name: "Widget", Amount: decimal.RequireFromString("10.50"), Quantity: 1}},
	}
	txn, err := uc.Initiate(ctx, req)
	if err != nil {
		return err
	}
	logger.Info().Str("browser_url", txn.BrowserURL).Str("status", string(txn.Status)).Msg("customer redirected")

	if err := gw.SetStatus("INV-001", "Paid"); err != nil {
		return err
	}
	body, err := gw.StatusUpdate("INV-001")
	if err != nil {
		return err
	}

	// a result post altered in transit must be refused
	tampered := strings.Replace(body, "amount=10.50", "amount=1.05", 1)
	if _, err := uc.HandleStatusUpdate(ctx, []byte(tampered)); !errors.Is(err, domain.ErrIntegrity) {
		return errors.New("tampered status update was accepted")
	}
	logger.Info().Msg("tampered status update rejected")

	txn, err = uc.HandleStatusUpdate(ctx, []byte(body))
	if err != nil {
		return err
	}
	logger.Info().Str("status", string(txn.Status)).Time("paid_at", *txn.PaidAt).Msg("result url applied")

	// polling a paid transaction again changes nothing
	txn, err = uc.Poll(ctx, "INV-001")
	if err != nil {
		return err
	}
	logger.Info().Str("status", string(txn.Status)).Msg("poll after payment")
	return nil
}

func mobileCheckout(ctx context.Context, uc usecase.PaymentUseCase, gw *payAdapters.FakeGateway, logger *zerolog.Logger) error {
	req := model.PaymentRequest{
		Reference: "INV-002",
		Amount:    decimal.RequireFromString("3.00"),
		Currency:  "USD",
		AuthEmail: "buyer@example.com",
	}
	txn, err := uc.InitiateMobile(ctx, req, "+263 77 123 4567", model.PaymentMethodEcocash)
	if err != nil {
		return err
	}
	logger.Info().Str("instructions", txn.Instructions).Str("phone", txn.Request.Phone).Msg("customer prompted on handset")

	if err := gw.SetStatus("INV-002", "Cancelled"); err != nil {
		return err
	}
	txn, err = uc.Poll(ctx, "INV-002")
	if err != nil {
		return err
	}
	logger.Info().Str("status", string(txn.Status)).Msg("mobile checkout finished")

	resp, err := uc.Trace(ctx, txn.Request.MerchantTrace)
	if err != nil {
		return err
	}
	logger.Info().Str("reference", resp.Reference).Str("paynow_status", resp.StatusToken).Msg("trace lookup")
	return nil
}
