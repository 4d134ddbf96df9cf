package paynow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

// IntegrationKey is the shared secret issued by Paynow. Every textual
// rendering of it is redacted; only the signer reads the raw value.
type IntegrationKey struct {
	raw string
}

// NewIntegrationKey wraps a raw key without checking its shape.
func NewIntegrationKey(raw string) IntegrationKey {
	return IntegrationKey{raw: raw}
}

// ParseIntegrationKey accepts the GUID-shaped keys Paynow issues.
func ParseIntegrationKey(raw string) (IntegrationKey, error) {
	raw = strings.TrimSpace(raw)
	if _, err := uuid.Parse(raw); err != nil {
		// the parse error echoes its input, so it is dropped here
		return IntegrationKey{}, fmt.Errorf("integration key is not a valid GUID")
	}
	return IntegrationKey{raw: raw}, nil
}

func (k IntegrationKey) IsZero() bool { return k.raw == "" }

// IsGUID reports whether the key has the shape Paynow issues.
func (k IntegrationKey) IsGUID() bool {
	_, err := uuid.Parse(k.raw)
	return err == nil
}

func (k IntegrationKey) String() string   { return redacted }
func (k IntegrationKey) GoString() string { return redacted }

// Format covers %v, %+v, %#v, %s, %q, %x and friends.
func (k IntegrationKey) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (k IntegrationKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (k IntegrationKey) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalText lets config decoders fill the key directly.
func (k *IntegrationKey) UnmarshalText(text []byte) error {
	k.raw = strings.TrimSpace(string(text))
	return nil
}

func (k IntegrationKey) MarshalZerologObject(e *zerolog.Event) {
	e.Str("value", redacted)
}

// IntegrationID is the numeric merchant integration identifier.
type IntegrationID string

func (id IntegrationID) valid() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
