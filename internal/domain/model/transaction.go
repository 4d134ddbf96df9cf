package model

import (
	"fmt"
	"strings"
	"time"

	"paynow-client/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusCreated   TransactionStatus = "created"   // built locally, not yet acknowledged
	TransactionStatusSent      TransactionStatus = "sent"      // gateway acknowledged; awaiting customer
	TransactionStatusPaid      TransactionStatus = "paid"      // terminal
	TransactionStatusCancelled TransactionStatus = "cancelled" // terminal
	TransactionStatusFailed    TransactionStatus = "failed"    // terminal
	TransactionStatusUnknown   TransactionStatus = "unknown"   // gateway status we could not classify
)

// IsTerminal reports whether no further legitimate transition is expected.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusPaid, TransactionStatusCancelled, TransactionStatusFailed:
		return true
	}
	return false
}

// Transaction tracks one payment. It is not safe for concurrent use.
type Transaction struct {
	ID              string
	Request         PaymentRequest
	Status          TransactionStatus
	StatusToken     string // last raw gateway status
	PollURL         string
	BrowserURL      string
	PaynowReference string
	Instructions    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
}

// NewTransaction starts a transaction in the Created state.
func NewTransaction(id string, req PaymentRequest, now time.Time) (*Transaction, error) {
	if id == "" || strings.TrimSpace(req.Reference) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Transaction{
		ID:        id,
		Request:   req,
		Status:    TransactionStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Advance applies a verified gateway response. It only moves forward:
// repeating a terminal status is a no-op, a different terminal status is a
// StateConflictError, and non-terminal statuses after a terminal one are
// ignored. changed reports whether anything on t was modified.
func (t *Transaction) Advance(resp *GatewayResponse, now time.Time) (changed bool, err error) {
	if resp == nil {
		return false, domain.ErrInvalidArgument
	}
	if resp.Reference != "" && resp.Reference != t.Request.Reference {
		return false, fmt.Errorf("%w: transaction %s, response %s", domain.ErrReferenceMismatch, t.Request.Reference, resp.Reference)
	}

	next := resp.Status
	if next == "" {
		next = TransactionStatusUnknown
	}

	if t.Status.IsTerminal() {
		if next.IsTerminal() && next != t.Status {
			return false, &domain.StateConflictError{
				Reference: t.Request.Reference,
				Current:   string(t.Status),
				Incoming:  string(next),
			}
		}
		if next != t.Status {
			return false, nil
		}
	}

	changed = t.absorb(resp)
	if t.Status != next {
		t.Status = next
		changed = true
		if next == TransactionStatusPaid && t.PaidAt == nil {
			paidAt := now
			t.PaidAt = &paidAt
		}
	}
	if changed {
		t.UpdatedAt = now
	}
	return changed, nil
}

// Reusable reports whether the gateway never took the transaction on, so its
// reference may be initiated again.
func (t *Transaction) Reusable() bool {
	return t.PollURL == "" && (t.Status == TransactionStatusCreated || t.Status == TransactionStatusFailed)
}

// Restart puts a reusable transaction back to Created with a fresh request.
func (t *Transaction) Restart(req PaymentRequest, now time.Time) error {
	if !t.Reusable() {
		return &domain.StateConflictError{
			Reference: t.Request.Reference,
			Current:   string(t.Status),
			Incoming:  string(TransactionStatusCreated),
		}
	}
	if req.Reference != t.Request.Reference {
		return fmt.Errorf("%w: transaction %s, request %s", domain.ErrReferenceMismatch, t.Request.Reference, req.Reference)
	}
	t.Request = req
	t.Status = TransactionStatusCreated
	t.StatusToken = ""
	t.BrowserURL = ""
	t.PaynowReference = ""
	t.Instructions = ""
	t.UpdatedAt = now
	return nil
}

// Reject marks a transaction the gateway refused at initiation as Failed.
func (t *Transaction) Reject(reason string, now time.Time) bool {
	if t.Status != TransactionStatusCreated {
		return false
	}
	t.Status = TransactionStatusFailed
	t.StatusToken = reason
	t.UpdatedAt = now
	return true
}

func (t *Transaction) absorb(resp *GatewayResponse) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&t.StatusToken, resp.StatusToken)
	set(&t.PollURL, resp.PollURL)
	set(&t.BrowserURL, resp.BrowserURL)
	set(&t.PaynowReference, resp.PaynowReference)
	set(&t.Instructions, resp.Instructions)
	return changed
}
