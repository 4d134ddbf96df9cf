package currency

import (
	"strings"

	"golang.org/x/text/currency"
)

const fallbackScale int32 = 2

// Validator checks ISO 4217 codes against the x/text currency table and,
// when configured, a merchant allowlist.
type Validator struct {
	allowed map[string]struct{}
}

// New returns a Validator. With no codes every recognised currency is accepted.
func New(allowed ...string) *Validator {
	v := &Validator{}
	for _, code := range allowed {
		if v.allowed == nil {
			v.allowed = make(map[string]struct{}, len(allowed))
		}
		v.allowed[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	return v
}

func (v *Validator) IsValid(code string) bool {
	unit, ok := parse(code)
	if !ok {
		return false
	}
	if v.allowed == nil {
		return true
	}
	_, ok = v.allowed[unit.String()]
	return ok
}

// Scale returns the number of minor-unit digits for code.
func (v *Validator) Scale(code string) int32 {
	unit, ok := parse(code)
	if !ok {
		return fallbackScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

func parse(code string) (currency.Unit, bool) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return currency.Unit{}, false
	}
	// ParseISO maps XXX to the zero Unit
	if unit == (currency.Unit{}) {
		return currency.Unit{}, false
	}
	return unit, true
}
