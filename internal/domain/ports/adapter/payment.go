package adapter

import (
	"context"
	"time"
)

// PaymentTransport carries a pre-encoded form body to the gateway and returns
// the raw reply. Field order in form is significant and must be preserved.
type PaymentTransport interface {
	Name() string

	// Post sends form to endpoint, which is either a path under the gateway
	// interface base URL (initiatetransaction, remotetransaction, trace) or an
	// absolute poll URL. A non-2xx reply is an error wrapping domain.ErrTransport.
	Post(ctx context.Context, endpoint string, form string) ([]byte, error)
}

// CurrencyValidator reports whether an ISO 4217 code can be charged.
type CurrencyValidator interface {
	IsValid(code string) bool
}

// Locker serializes work on one key across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
