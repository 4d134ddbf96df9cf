package paynow

import (
	"regexp"
	"strings"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
)

var phonePatterns = map[model.PaymentMethod]*regexp.Regexp{
	model.PaymentMethodEcocash:  regexp.MustCompile(`^07[78][0-9]{7}$`),
	model.PaymentMethodOneMoney: regexp.MustCompile(`^071[0-9]{7}$`),
}

// NormalizePhone strips separators and rewrites the +263/263 country prefix
// to the local 0 prefix.
func NormalizePhone(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(s, "+263"):
		s = "0" + s[len("+263"):]
	case strings.HasPrefix(s, "263") && len(s) == 12:
		s = "0" + s[len("263"):]
	}
	return s
}

// ValidatePhone normalizes phone and checks it belongs to the wallet's network.
func ValidatePhone(method model.PaymentMethod, phone string) (string, error) {
	pattern, ok := phonePatterns[method]
	if !ok {
		return "", &domain.UnsupportedMethodError{Method: string(method)}
	}
	n := NormalizePhone(phone)
	if !pattern.MatchString(n) {
		return "", &domain.ValidationError{Field: "phone", Reason: "not a valid " + string(method) + " number"}
	}
	return n, nil
}
