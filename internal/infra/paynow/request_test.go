//go:build !integration

package paynow_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/infra/paynow"
)

func TestBuilder_Validation(t *testing.T) {
	key := paynow.NewIntegrationKey("s3cr3t")
	builder := paynow.NewBuilder(testCurrencies)

	cases := []struct {
		name  string
		field string
		edit  func(r *model.PaymentRequest)
		id    paynow.IntegrationID
	}{
		{"empty reference", "reference", func(r *model.PaymentRequest) { r.Reference = " " }, testID},
		{"zero amount", "amount", func(r *model.PaymentRequest) { r.Amount = decimal.Zero; r.Items = nil }, testID},
		{"negative amount", "amount", func(r *model.PaymentRequest) { r.Amount = decimal.NewFromInt(-1); r.Items = nil }, testID},
		{"unsupported currency", "currency", func(r *model.PaymentRequest) { r.Currency = "EUR" }, testID},
		{"items not adding up", "items", func(r *model.PaymentRequest) { r.Items[0].Quantity = 2 }, testID},
		{"missing result url", "result_url", func(r *model.PaymentRequest) { r.ResultURL = "" }, testID},
		{"missing return url", "return_url", func(r *model.PaymentRequest) { r.ReturnURL = "" }, testID},
		{"non numeric integration id", "integration_id", func(r *model.PaymentRequest) {}, paynow.IntegrationID("12a")},
		{"bad auth email", "auth_email", func(r *model.PaymentRequest) { r.AuthEmail = "nope" }, testID},
	}
	for _, tc := range cases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			// --- Arrange ---
			req := newInvoiceRequest("10.50")
			tc.edit(req)

			// --- Act ---
			payload, err := builder.BuildWebRequest(req, key, tc.id)

			// --- Assert ---
			if payload != nil {
				t.Error("expected no payload")
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got: %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field '%s', got '%s'", tc.field, ve.Field)
			}
		})
	}

	t.Run("should reject a missing key", func(t *testing.T) {
		_, err := builder.BuildWebRequest(newInvoiceRequest("10.50"), paynow.IntegrationKey{}, testID)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got: %v", err)
		}
	})

	t.Run("should surface amounts finer than the currency scale as encoding errors", func(t *testing.T) {
		req := newInvoiceRequest("10.50")
		req.Amount = decimal.RequireFromString("10.505")
		req.Items = nil
		_, err := builder.BuildWebRequest(req, key, testID)
		if !errors.Is(err, domain.ErrEncoding) {
			t.Errorf("expected ErrEncoding, got: %v", err)
		}
	})
}

func TestBuilder_BuildWebRequest(t *testing.T) {
	key := paynow.NewIntegrationKey("s3cr3t")
	builder := paynow.NewBuilder(testCurrencies)

	t.Run("should describe the cart from item names", func(t *testing.T) {
		req := newInvoiceRequest("10.50")
		req.Items = []model.LineItem{
			{Name: "Widget", Amount: decimal.RequireFromString("4.25"), Quantity: 2},
			{Name: "Gadget", Amount: decimal.RequireFromString("2.00"), Quantity: 1},
		}
		payload, err := builder.BuildWebRequest(req, key, testID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got, _ := payload.Fields.Get(paynow.FieldAdditionalInfo); got != "Widget, Gadget" {
			t.Errorf("expected 'Widget, Gadget', got '%s'", got)
		}
		if payload.Endpoint() != "initiatetransaction" {
			t.Errorf("unexpected endpoint %s", payload.Endpoint())
		}
		if got := payload.Values().Get(paynow.FieldStatus); got != "Message" {
			t.Errorf("expected status Message, got %s", got)
		}
	})

	t.Run("should render amounts at the currency scale", func(t *testing.T) {
		req := newInvoiceRequest("1500")
		req.Currency = "JPY"
		payload, err := builder.BuildWebRequest(req, key, testID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got, _ := payload.Fields.Get(paynow.FieldAmount); got != "1500" {
			t.Errorf("expected '1500', got '%s'", got)
		}
	})
}

func TestBuilder_BuildMobileRequest(t *testing.T) {
	key := paynow.NewIntegrationKey("s3cr3t")
	builder := paynow.NewBuilder(testCurrencies)

	mobileRequest := func() *model.PaymentRequest {
		req := newInvoiceRequest("10.50")
		req.ReturnURL = ""
		req.AuthEmail = "buyer@example.com"
		return req
	}

	t.Run("should build a signed remote message with a normalized phone", func(t *testing.T) {
		payload, err := builder.BuildMobileRequest(mobileRequest(), "+263 77 123 4567", model.PaymentMethodEcocash, key, testID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if payload.Fields[0].Name != paynow.FieldMethod {
			t.Errorf("expected method first, got %s", payload.Fields[0].Name)
		}
		if got, _ := payload.Fields.Get(paynow.FieldPhone); got != "0771234567" {
			t.Errorf("expected normalized phone, got %s", got)
		}
		if err := paynow.Verify(payload.Fields, key); err != nil {
			t.Errorf("expected payload to verify, got: %v", err)
		}
	})

	t.Run("should reject an unsupported method", func(t *testing.T) {
		_, err := builder.BuildMobileRequest(mobileRequest(), "0771234567", model.PaymentMethod("zipit"), key, testID)
		var ue *domain.UnsupportedMethodError
		if !errors.As(err, &ue) || ue.Method != "zipit" {
			t.Errorf("expected UnsupportedMethodError, got: %v", err)
		}
	})

	t.Run("should reject a phone from the wrong network", func(t *testing.T) {
		_, err := builder.BuildMobileRequest(mobileRequest(), "0771234567", model.PaymentMethodOneMoney, key, testID)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got: %v", err)
		}
	})

	t.Run("should require an auth email", func(t *testing.T) {
		req := mobileRequest()
		req.AuthEmail = ""
		_, err := builder.BuildMobileRequest(req, "0771234567", model.PaymentMethodEcocash, key, testID)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "auth_email" {
			t.Errorf("expected auth_email ValidationError, got: %v", err)
		}
	})
}

func TestBuilder_BuildCardAndTrace(t *testing.T) {
	key := paynow.NewIntegrationKey("s3cr3t")
	builder := paynow.NewBuilder(testCurrencies)

	t.Run("should build a card payment", func(t *testing.T) {
		req := newInvoiceRequest("10.50")
		req.AuthEmail = "buyer@example.com"
		card := model.CardPayment{
			Card:    model.Card{Number: "4111111111111111", Name: "A Buyer", CVV: "123", Expiry: "1227"},
			Address: model.BillingAddress{Line1: "1 Main St", City: "Harare", Country: "Zimbabwe"},
		}
		payload, err := builder.BuildCardRequest(req, card, key, testID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got, _ := payload.Fields.Get(paynow.FieldMethod); got != "vmc" {
			t.Errorf("expected vmc, got %s", got)
		}
		if _, ok := payload.Fields.Get(paynow.FieldBillingLine2); ok {
			t.Error("expected absent billing line 2 to be omitted")
		}
	})

	t.Run("should reject a card without billing details", func(t *testing.T) {
		req := newInvoiceRequest("10.50")
		req.AuthEmail = "buyer@example.com"
		card := model.CardPayment{Card: model.Card{Number: "4111111111111111", Name: "A", CVV: "1", Expiry: "1227"}}
		if _, err := builder.BuildCardRequest(req, card, key, testID); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got: %v", err)
		}
	})

	t.Run("should build a trace request", func(t *testing.T) {
		payload, err := builder.BuildTraceRequest("01J9ZQ", key, testID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		want := []string{"id", "merchanttrace", "status", "hash"}
		got := names(payload.Fields)
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}
	})
}

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		method model.PaymentMethod
		phone  string
		want   string
		ok     bool
	}{
		{model.PaymentMethodEcocash, "0771234567", "0771234567", true},
		{model.PaymentMethodEcocash, "263781234567", "0781234567", true},
		{model.PaymentMethodEcocash, "077-123-4567", "0771234567", true},
		{model.PaymentMethodEcocash, "0711234567", "", false},
		{model.PaymentMethodOneMoney, "+263711234567", "0711234567", true},
		{model.PaymentMethodOneMoney, "07112345", "", false},
	}
	for _, tc := range cases {
		got, err := paynow.ValidatePhone(tc.method, tc.phone)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("%s %s: expected %s, got %s (%v)", tc.method, tc.phone, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s %s: expected an error", tc.method, tc.phone)
		}
	}
}
