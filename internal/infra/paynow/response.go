package paynow

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
)

// ResponseKind selects the required fields for a gateway reply.
type ResponseKind int

const (
	ResponseInitiate ResponseKind = iota + 1 // reply to initiatetransaction
	ResponseRemote                           // reply to remotetransaction
	ResponseStatus                           // poll reply, result-URL post or trace reply
)

const (
	statusError    = "error"
	statusNotFound = "notfound"
)

var requiredFields = map[ResponseKind][]string{
	ResponseInitiate: {FieldStatus, FieldPollURL},
	ResponseRemote:   {FieldStatus, FieldPollURL},
	ResponseStatus:   {FieldStatus, FieldReference},
}

// typed fields that do not go into GatewayResponse.Extra
var knownResponseFields = map[string]struct{}{
	FieldStatus: {}, FieldReference: {}, FieldPaynowReference: {}, FieldAmount: {},
	FieldPollURL: {}, FieldBrowserURL: {}, FieldInstructions: {}, FieldToken: {},
	FieldTokenExpiry: {}, FieldHash: {},
}

// Parse decodes a gateway body, verifies its hash against key and maps it to
// a GatewayResponse. Nothing from an unverified body is returned.
func Parse(kind ResponseKind, body []byte, key IntegrationKey) (*model.GatewayResponse, error) {
	fields, err := DecodeBody(body)
	if err != nil {
		return nil, err
	}

	status, ok := fields.Get(FieldStatus)
	if !ok {
		return nil, malformed("missing status", nil)
	}

	if strings.EqualFold(status, statusError) {
		// error replies are unsigned; a hash, when present, must still match
		if _, signed := fields.Get(FieldHash); signed {
			if err := Verify(fields, key); err != nil {
				return nil, &domain.ResponseError{Kind: domain.ResponseIntegrity, Err: err}
			}
		}
		msg, _ := fields.Get(FieldError)
		return nil, &domain.ResponseError{Kind: domain.ResponseRejected, Detail: msg, Err: classifyRejection(msg)}
	}

	if err := Verify(fields, key); err != nil {
		return nil, &domain.ResponseError{Kind: domain.ResponseIntegrity, Err: err}
	}

	if strings.EqualFold(status, statusNotFound) {
		return nil, fmt.Errorf("paynow: %w", domain.ErrNotFound)
	}

	for _, name := range requiredFields[kind] {
		if v, ok := fields.Get(name); !ok || v == "" {
			return nil, malformed("missing "+name, nil)
		}
	}

	return toResponse(fields, status)
}

// DecodeBody splits a form body into fields, keeping wire order. Names are
// lower-cased; values are percent-decoded.
func DecodeBody(body []byte) (Fields, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, malformed("empty body", nil)
	}
	parts := strings.Split(string(body), "&")
	fields := make(Fields, 0, len(parts))
	for _, part := range parts {
		rawKey, rawValue, found := strings.Cut(part, "=")
		if !found {
			return nil, malformed("pair without '='", nil)
		}
		name, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, malformed("bad escape in name", nil)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, malformed("bad escape in value of "+name, nil)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, malformed("empty name", nil)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	checked, err := canonicalReceived(fields)
	if err != nil {
		return nil, malformed("", err)
	}
	return checked, nil
}

func toResponse(fields Fields, status string) (*model.GatewayResponse, error) {
	get := func(name string) string {
		v, _ := fields.Get(name)
		return v
	}
	resp := &model.GatewayResponse{
		StatusToken:     status,
		Status:          ClassifyStatus(status),
		Reference:       get(FieldReference),
		PaynowReference: get(FieldPaynowReference),
		PollURL:         get(FieldPollURL),
		BrowserURL:      get(FieldBrowserURL),
		Instructions:    get(FieldInstructions),
		Token:           get(FieldToken),
		Hash:            get(FieldHash),
	}
	if raw := get(FieldAmount); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, malformed("amount is not a decimal", nil)
		}
		resp.Amount = decimal.NewNullDecimal(d)
	}
	if raw := get(FieldTokenExpiry); raw != "" {
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			return nil, malformed("bad tokenexpiry", nil)
		}
		resp.TokenExpiry = &t
	}
	for _, f := range fields {
		if _, ok := knownResponseFields[f.Name]; ok {
			continue
		}
		if resp.Extra == nil {
			resp.Extra = make(map[string]string)
		}
		resp.Extra[f.Name] = f.Value
	}
	return resp, nil
}

func malformed(detail string, err error) *domain.ResponseError {
	return &domain.ResponseError{Kind: domain.ResponseMalformed, Detail: detail, Err: err}
}
