package paynow

import (
	"errors"
	"strings"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
)

// statusTable maps lower-cased gateway status tokens. Anything missing,
// including Disputed and Refunded, classifies as Unknown.
var statusTable = map[string]model.TransactionStatus{
	"ok":                model.TransactionStatusSent,
	"created":           model.TransactionStatusSent,
	"sent":              model.TransactionStatusSent,
	"paid":              model.TransactionStatusPaid,
	"awaiting delivery": model.TransactionStatusPaid,
	"delivered":         model.TransactionStatusPaid,
	"cancelled":         model.TransactionStatusCancelled,
	"failed":            model.TransactionStatusFailed,
}

// ClassifyStatus maps a raw status token, case-insensitively.
func ClassifyStatus(token string) model.TransactionStatus {
	if s, ok := statusTable[strings.ToLower(strings.TrimSpace(token))]; ok {
		return s
	}
	return model.TransactionStatusUnknown
}

// rejections maps the gateway's error texts to sentinels.
var rejections = map[string]error{
	"invalid id.":           domain.ErrInvalidIntegrationID,
	"invalid amount field.": domain.ErrInvalidAmount,
	"conversion overflows.": domain.ErrAmountOverflow,
	"insufficient balance":  domain.ErrInsufficientBalance,
}

func classifyRejection(msg string) error {
	if err, ok := rejections[strings.ToLower(strings.TrimSpace(msg))]; ok {
		return err
	}
	if msg == "" {
		return errors.New("gateway returned an error without a message")
	}
	return errors.New(msg)
}
