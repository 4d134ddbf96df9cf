package paynow

import (
	"net/mail"
	"net/url"
	"strings"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
)

const defaultScale int32 = 2

// CurrencyValidator reports whether an ISO 4217 code is acceptable.
type CurrencyValidator interface {
	IsValid(code string) bool
}

// currencyScaler is optionally implemented by a CurrencyValidator that knows
// minor-unit digits per currency.
type currencyScaler interface {
	Scale(code string) int32
}

// SignedPayload is an encoded message with its hash as the final field.
type SignedPayload struct {
	Kind   MessageKind
	Fields Fields
}

func (p *SignedPayload) Hash() string {
	v, _ := p.Fields.Get(FieldHash)
	return v
}

// Encode is the application/x-www-form-urlencoded body.
func (p *SignedPayload) Encode() string { return p.Fields.Encode() }

func (p *SignedPayload) Values() url.Values { return p.Fields.Values() }

func (p *SignedPayload) Endpoint() string { return p.Kind.Endpoint() }

// Builder validates merchant input and produces signed payloads. It does no I/O.
type Builder struct {
	currencies CurrencyValidator
}

func NewBuilder(currencies CurrencyValidator) *Builder {
	return &Builder{currencies: currencies}
}

// BuildWebRequest builds an initiate message for browser checkout.
func (b *Builder) BuildWebRequest(req *model.PaymentRequest, key IntegrationKey, id IntegrationID) (*SignedPayload, error) {
	if err := b.validate(req, key, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		return nil, &domain.ValidationError{Field: "return_url", Reason: "required for web checkout"}
	}
	values := b.paymentValues(req, id)
	return signPayload(MessageInitiate, values, key)
}

// BuildMobileRequest builds a remote message for a mobile-money wallet.
func (b *Builder) BuildMobileRequest(req *model.PaymentRequest, phone string, method model.PaymentMethod, key IntegrationKey, id IntegrationID) (*SignedPayload, error) {
	if !method.IsMobile() {
		return nil, &domain.UnsupportedMethodError{Method: string(method)}
	}
	if err := b.validate(req, key, id); err != nil {
		return nil, err
	}
	if err := requireAuthEmail(req); err != nil {
		return nil, err
	}
	normalized, err := ValidatePhone(method, phone)
	if err != nil {
		return nil, err
	}
	values := b.paymentValues(req, id)
	values[FieldMethod] = Ident(string(method))
	values[FieldPhone] = Ident(normalized)
	return signPayload(MessageRemote, values, key)
}

// BuildCardRequest builds a remote message for Visa/Mastercard express checkout.
func (b *Builder) BuildCardRequest(req *model.PaymentRequest, card model.CardPayment, key IntegrationKey, id IntegrationID) (*SignedPayload, error) {
	if err := b.validate(req, key, id); err != nil {
		return nil, err
	}
	if err := requireAuthEmail(req); err != nil {
		return nil, err
	}
	if card.Token == "" {
		if err := validateCard(card); err != nil {
			return nil, err
		}
	}
	values := b.paymentValues(req, id)
	values[FieldMethod] = Ident(string(model.PaymentMethodVMC))
	values[FieldCardNumber] = Ident(card.Card.Number)
	values[FieldCardName] = Text(card.Card.Name)
	values[FieldCardCVV] = Ident(card.Card.CVV)
	values[FieldCardExpiry] = Ident(card.Card.Expiry)
	values[FieldBillingLine1] = Text(card.Address.Line1)
	values[FieldBillingLine2] = Text(card.Address.Line2)
	values[FieldBillingCity] = Text(card.Address.City)
	values[FieldBillingProvince] = Text(card.Address.Province)
	values[FieldBillingCountry] = Text(card.Address.Country)
	values[FieldToken] = Ident(card.Token)
	return signPayload(MessageRemote, values, key)
}

// BuildTraceRequest asks the gateway for the transaction behind merchantTrace.
func (b *Builder) BuildTraceRequest(merchantTrace string, key IntegrationKey, id IntegrationID) (*SignedPayload, error) {
	if err := checkCredentials(key, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(merchantTrace) == "" {
		return nil, &domain.ValidationError{Field: "merchant_trace", Reason: "required"}
	}
	return signPayload(MessageTrace, Values{
		FieldID:            Ident(string(id)),
		FieldMerchantTrace: Ident(merchantTrace),
		FieldStatus:        Ident(statusMessage),
	}, key)
}

func checkCredentials(key IntegrationKey, id IntegrationID) error {
	if !id.valid() {
		return &domain.ValidationError{Field: "integration_id", Reason: "must be numeric"}
	}
	if key.IsZero() {
		return &domain.ValidationError{Field: "integration_key", Reason: "required"}
	}
	return nil
}

func (b *Builder) validate(req *model.PaymentRequest, key IntegrationKey, id IntegrationID) error {
	if req == nil {
		return &domain.ValidationError{Field: "request", Reason: "required"}
	}
	if err := checkCredentials(key, id); err != nil {
		return err
	}
	if strings.TrimSpace(req.Reference) == "" {
		return &domain.ValidationError{Field: "reference", Reason: "required"}
	}
	if !req.Amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if b.currencies == nil || !b.currencies.IsValid(req.Currency) {
		return &domain.ValidationError{Field: "currency", Reason: "unsupported currency"}
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return &domain.ValidationError{Field: "items", Reason: "quantity must be positive"}
		}
		if it.Amount.IsNegative() {
			return &domain.ValidationError{Field: "items", Reason: "item amount is negative"}
		}
	}
	if total, ok := req.ItemsTotal(); ok && !total.Equal(req.Amount) {
		return &domain.ValidationError{Field: "items", Reason: "line items do not add up to amount"}
	}
	if strings.TrimSpace(req.ResultURL) == "" {
		return &domain.ValidationError{Field: "result_url", Reason: "required"}
	}
	if req.AuthEmail != "" {
		if _, err := mail.ParseAddress(req.AuthEmail); err != nil {
			return &domain.ValidationError{Field: "auth_email", Reason: "not an email address"}
		}
	}
	return nil
}

func requireAuthEmail(req *model.PaymentRequest) error {
	if strings.TrimSpace(req.AuthEmail) == "" {
		return &domain.ValidationError{Field: "auth_email", Reason: "required for express checkout"}
	}
	return nil
}

func validateCard(card model.CardPayment) error {
	switch {
	case card.Card.Number == "":
		return &domain.ValidationError{Field: "card_number", Reason: "required"}
	case card.Card.Name == "":
		return &domain.ValidationError{Field: "card_name", Reason: "required"}
	case card.Card.CVV == "":
		return &domain.ValidationError{Field: "card_cvv", Reason: "required"}
	case card.Card.Expiry == "":
		return &domain.ValidationError{Field: "card_expiry", Reason: "required"}
	case card.Address.Line1 == "", card.Address.City == "", card.Address.Country == "":
		return &domain.ValidationError{Field: "billing_address", Reason: "line1, city and country are required"}
	}
	return nil
}

func (b *Builder) scale(code string) int32 {
	if s, ok := b.currencies.(currencyScaler); ok {
		return s.Scale(code)
	}
	return defaultScale
}

func (b *Builder) paymentValues(req *model.PaymentRequest, id IntegrationID) Values {
	info := req.AdditionalInfo
	if info == "" && len(req.Items) > 0 {
		names := make([]string, 0, len(req.Items))
		for _, it := range req.Items {
			names = append(names, it.Name)
		}
		info = strings.Join(names, ", ")
	}
	values := Values{
		FieldID:             Ident(string(id)),
		FieldReference:      Ident(req.Reference),
		FieldAmount:         Decimal(req.Amount, b.scale(req.Currency)),
		FieldAdditionalInfo: Text(info),
		FieldReturnURL:      URL(req.ReturnURL),
		FieldResultURL:      URL(req.ResultURL),
		FieldAuthEmail:      Text(req.AuthEmail),
		FieldMerchantTrace:  Ident(req.MerchantTrace),
		FieldStatus:         Ident(statusMessage),
	}
	if req.Tokenize != nil {
		values[FieldTokenize] = Bool(*req.Tokenize)
	}
	return values
}

func signPayload(kind MessageKind, values Values, key IntegrationKey) (*SignedPayload, error) {
	fields, err := Encode(kind, values)
	if err != nil {
		return nil, err
	}
	return &SignedPayload{Kind: kind, Fields: Seal(fields, key)}, nil
}

