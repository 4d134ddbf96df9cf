package paynow

import (
	"crypto/sha512"
	"encoding/hex"
	"io"
	"strings"

	"paynow-client/internal/domain"
)

// Sign returns the upper-case hex SHA-512 of every field value in order,
// followed by the integration key. Any hash field present is skipped.
func Sign(fields Fields, key IntegrationKey) string {
	h := sha512.New()
	for _, f := range fields {
		if f.Name == FieldHash {
			continue
		}
		_, _ = io.WriteString(h, f.Value)
	}
	_, _ = io.WriteString(h, key.raw)
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Seal returns a copy of fields with the hash appended last.
func Seal(fields Fields, key IntegrationKey) Fields {
	out := make(Fields, 0, len(fields)+1)
	for _, f := range fields {
		if f.Name != FieldHash {
			out = append(out, f)
		}
	}
	return append(out, Field{Name: FieldHash, Value: Sign(out, key)})
}

// Verify recomputes the digest of fields and compares it against their
// hash field. It returns a *domain.IntegrityError on any failure.
func Verify(fields Fields, key IntegrationKey) error {
	supplied, ok := fields.Get(FieldHash)
	if !ok || supplied == "" {
		return &domain.IntegrityError{Kind: domain.IntegrityMissingHash}
	}
	if !constantTimeEqual(strings.ToUpper(supplied), Sign(fields, key)) {
		return &domain.IntegrityError{Kind: domain.IntegrityMismatch}
	}
	return nil
}

// constantTimeEqual touches every byte once the lengths match.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var acc byte
	for i := 0; i < len(a); i++ {
		acc |= a[i] ^ b[i]
	}
	return acc == 0
}
