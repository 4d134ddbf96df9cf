package model

import (
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodWeb      PaymentMethod = "web"      // browser redirect checkout
	PaymentMethodEcocash  PaymentMethod = "ecocash"  // Econet mobile wallet
	PaymentMethodOneMoney PaymentMethod = "onemoney" // NetOne mobile wallet
	PaymentMethodVMC      PaymentMethod = "vmc"      // Visa / Mastercard express
)

// IsMobile reports whether the method is a mobile-money wallet.
func (m PaymentMethod) IsMobile() bool {
	return m == PaymentMethodEcocash || m == PaymentMethodOneMoney
}

// LineItem is one cart row. Amount is the unit price.
type LineItem struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity int             `json:"quantity"`
}

// Total returns Amount × Quantity.
func (i LineItem) Total() decimal.Decimal {
	return i.Amount.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentRequest is what the merchant wants to charge.
type PaymentRequest struct {
	Reference      string          `json:"reference"` // merchant reference, unique per merchant
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"` // ISO 4217
	AuthEmail      string          `json:"auth_email,omitempty"`
	ReturnURL      string          `json:"return_url,omitempty"`
	ResultURL      string          `json:"result_url"`
	Items          []LineItem      `json:"items,omitempty"`
	AdditionalInfo string          `json:"additional_info,omitempty"`
	MerchantTrace  string          `json:"merchant_trace,omitempty"`
	Tokenize       *bool           `json:"tokenize,omitempty"`
	Method         PaymentMethod   `json:"method"`
	Phone          string          `json:"phone,omitempty"`
}

// ItemsTotal sums all line items. ok is false when there are none.
func (r PaymentRequest) ItemsTotal() (total decimal.Decimal, ok bool) {
	if len(r.Items) == 0 {
		return decimal.Zero, false
	}
	for _, it := range r.Items {
		total = total.Add(it.Total())
	}
	return total, true
}

// Card holds Visa/Mastercard details for express checkout. Never persisted.
type Card struct {
	Number string
	Name   string
	CVV    string
	Expiry string // MMYY
}

// BillingAddress accompanies a card payment.
type BillingAddress struct {
	Line1    string
	Line2    string // optional
	City     string
	Province string // optional
	Country  string // country name as the gateway expects it, e.g. "Zimbabwe"
}

// CardPayment bundles everything the vmc express method needs.
type CardPayment struct {
	Card    Card
	Address BillingAddress
	Token   string
}
