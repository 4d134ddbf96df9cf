package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayResponse is a decoded gateway message whose hash has already been
// verified. Parsers must not hand one out before verification succeeds.
type GatewayResponse struct {
	StatusToken     string // raw status text as sent by the gateway
	Status          TransactionStatus
	Reference       string // merchant reference echoed back
	PaynowReference string
	Amount          decimal.NullDecimal
	PollURL         string
	BrowserURL      string
	Instructions    string // mobile checkout prompt text
	Token           string // tokenized instrument, if enabled
	TokenExpiry     *time.Time
	Hash            string
	Extra           map[string]string // verified fields with no typed home
}
