package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLockNotAcquired    = errors.New("lock not acquired")

	// Payment protocol errors
	ErrValidation        = errors.New("validation failed")
	ErrEncoding          = errors.New("value cannot be canonically encoded")
	ErrIntegrity         = errors.New("integrity check failed")
	ErrHashMismatch      = fmt.Errorf("%w: hash mismatch", ErrIntegrity)
	ErrMissingHash       = fmt.Errorf("%w: hash missing", ErrIntegrity)
	ErrMalformedResponse = errors.New("malformed gateway response")
	ErrGatewayRejected   = errors.New("gateway rejected the request")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrStateConflict     = errors.New("transaction state conflict")
	ErrReferenceMismatch = errors.New("response reference does not match transaction")
	ErrTransport         = errors.New("gateway transport failed")

	// Gateway rejection reasons
	ErrInvalidIntegrationID = fmt.Errorf("%w: invalid integration id", ErrGatewayRejected)
	ErrInvalidAmount        = fmt.Errorf("%w: invalid amount", ErrGatewayRejected)
	ErrAmountOverflow       = fmt.Errorf("%w: amount too large", ErrGatewayRejected)
	ErrInsufficientBalance  = fmt.Errorf("%w: insufficient balance", ErrGatewayRejected)
)

// ValidationError reports caller input rejected before any hashing happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// EncodingError reports a field value with no canonical text form.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed: %s: %s", e.Field, e.Reason)
}

func (e *EncodingError) Unwrap() error { return ErrEncoding }

type IntegrityKind int

const (
	IntegrityMismatch IntegrityKind = iota + 1
	IntegrityMissingHash
)

func (k IntegrityKind) String() string {
	switch k {
	case IntegrityMismatch:
		return "mismatch"
	case IntegrityMissingHash:
		return "missing_hash"
	default:
		return "unknown"
	}
}

// IntegrityError never carries the key, the digest input or either hash.
type IntegrityError struct {
	Kind IntegrityKind
}

func (e *IntegrityError) Error() string {
	if e.Kind == IntegrityMissingHash {
		return ErrMissingHash.Error()
	}
	return ErrHashMismatch.Error()
}

func (e *IntegrityError) Unwrap() error {
	if e.Kind == IntegrityMissingHash {
		return ErrMissingHash
	}
	return ErrHashMismatch
}

type ResponseKind int

const (
	ResponseMalformed ResponseKind = iota + 1
	ResponseIntegrity
	ResponseRejected
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseMalformed:
		return "malformed"
	case ResponseIntegrity:
		return "integrity"
	case ResponseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ResponseError wraps every failure to turn a gateway body into trusted data.
type ResponseError struct {
	Kind   ResponseKind
	Detail string
	Err    error
}

func (e *ResponseError) Error() string {
	msg := "gateway response " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResponseError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Kind {
	case ResponseMalformed:
		errs = append(errs, ErrMalformedResponse)
	case ResponseRejected:
		errs = append(errs, ErrGatewayRejected)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported payment method %q", e.Method)
}

func (e *UnsupportedMethodError) Unwrap() error { return ErrUnsupportedMethod }

// StateConflictError means the gateway reported two different terminal
// statuses for one transaction.
type StateConflictError struct {
	Reference string
	Current   string
	Incoming  string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("transaction %s: state conflict: %s -> %s", e.Reference, e.Current, e.Incoming)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }
