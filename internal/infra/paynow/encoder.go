package paynow

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"paynow-client/internal/domain"
)

// DateLayout is the gateway's date form, e.g. 05Mar2025.
const DateLayout = "02Jan2006"

// Value is one typed field value. Rendering is fixed per kind so the same
// input always produces the same bytes. ok is false for an absent value.
type Value interface {
	render(field string) (s string, ok bool, err error)
}

// Values maps field name to value. Nil entries are treated as absent.
type Values map[string]Value

type textValue string

// Text is free text. Control characters are rejected.
func Text(s string) Value { return textValue(s) }

func (v textValue) render(field string) (string, bool, error) {
	if v == "" {
		return "", false, nil
	}
	if err := checkControl(field, string(v)); err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

type identValue string

// Ident is an identifier rendered as-is. It may not contain & or =.
func Ident(s string) Value { return identValue(s) }

func (v identValue) render(field string) (string, bool, error) {
	if v == "" {
		return "", false, nil
	}
	if err := checkControl(field, string(v)); err != nil {
		return "", false, err
	}
	if strings.ContainsAny(string(v), "&=") {
		return "", false, &domain.EncodingError{Field: field, Reason: "identifier contains a reserved character"}
	}
	return string(v), true, nil
}

type urlValue string

// URL is an absolute URL. The canonical form is its percent-decoded text.
func URL(s string) Value { return urlValue(s) }

func (v urlValue) render(field string) (string, bool, error) {
	if v == "" {
		return "", false, nil
	}
	u, err := url.Parse(string(v))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false, &domain.EncodingError{Field: field, Reason: "not an absolute URL"}
	}
	s, err := url.PathUnescape(string(v))
	if err != nil {
		return "", false, &domain.EncodingError{Field: field, Reason: "bad percent-encoding"}
	}
	if err := checkControl(field, s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

type decimalValue struct {
	d     decimal.Decimal
	scale int32
}

// Decimal renders d with exactly scale fractional digits. A value that would
// need rounding to fit is an error, never silently rounded.
func Decimal(d decimal.Decimal, scale int32) Value { return decimalValue{d: d, scale: scale} }

func (v decimalValue) render(field string) (string, bool, error) {
	if v.scale < 0 {
		return "", false, &domain.EncodingError{Field: field, Reason: "negative scale"}
	}
	if !v.d.Equal(v.d.Round(v.scale)) {
		return "", false, &domain.EncodingError{Field: field, Reason: fmt.Sprintf("more than %d fractional digits", v.scale)}
	}
	return v.d.StringFixed(v.scale), true, nil
}

type boolValue bool

// Bool renders true or false.
func Bool(b bool) Value { return boolValue(b) }

func (v boolValue) render(string) (string, bool, error) {
	return strconv.FormatBool(bool(v)), true, nil
}

type dateValue time.Time

// Date renders in DateLayout.
func Date(t time.Time) Value { return dateValue(t) }

func (v dateValue) render(string) (string, bool, error) {
	t := time.Time(v)
	if t.IsZero() {
		return "", false, nil
	}
	return t.Format(DateLayout), true, nil
}

type intValue int64

// Int renders in base 10.
func Int(n int64) Value { return intValue(n) }

func (v intValue) render(string) (string, bool, error) {
	return strconv.FormatInt(int64(v), 10), true, nil
}

type currencyValue string

// Currency is an ISO 4217 code rendered upper case.
func Currency(code string) Value { return currencyValue(code) }

func (v currencyValue) render(field string) (string, bool, error) {
	if v == "" {
		return "", false, nil
	}
	unit, err := currency.ParseISO(string(v))
	if err != nil {
		return "", false, &domain.EncodingError{Field: field, Reason: "unknown currency code"}
	}
	return unit.String(), true, nil
}

func checkControl(field, s string) error {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return &domain.EncodingError{Field: field, Reason: "control character"}
		}
	}
	return nil
}

// Encode renders values in the canonical order of kind. Absent values are
// omitted, and a name outside the message's field set is an error.
func Encode(kind MessageKind, values Values) (Fields, error) {
	order, ok := canonicalOrder[kind]
	if !ok {
		return nil, &domain.EncodingError{Field: kind.String(), Reason: "unknown message kind"}
	}
	known := make(map[string]struct{}, len(order))
	for _, name := range order {
		known[name] = struct{}{}
	}
	for name := range values {
		if _, ok := known[name]; !ok {
			return nil, &domain.EncodingError{Field: name, Reason: "not part of " + kind.String() + " message"}
		}
	}

	out := make(Fields, 0, len(values)+1)
	for _, name := range order {
		v := values[name]
		if v == nil {
			continue
		}
		s, present, err := v.render(name)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		out = append(out, Field{Name: name, Value: s})
	}
	return out, nil
}

// canonicalReceived checks a received field list. Wire order is kept since
// it is the order the sender hashed in.
func canonicalReceived(fields Fields) (Fields, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, &domain.EncodingError{Field: f.Name, Reason: "empty field name"}
		}
		if _, dup := seen[f.Name]; dup {
			return nil, &domain.EncodingError{Field: f.Name, Reason: "duplicate field"}
		}
		seen[f.Name] = struct{}{}
		if err := checkControl(f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	return fields, nil
}
