package model

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies provider failures into the categories the
// pipeline boundary distinguishes (spec §6.4, §7): transient-and-retryable
// versus fatal.
type ProviderErrorKind string

const (
	// ProviderErrorKindAuth indicates an authentication/authorization or
	// quota failure. Maps to the pipeline's AuthOrQuota (fatal, §7).
	ProviderErrorKindAuth ProviderErrorKind = "auth"
	// ProviderErrorKindInvalidRequest indicates the request itself is
	// malformed; retrying unchanged will not succeed. Maps to BadRequest
	// (fatal, §7).
	ProviderErrorKindInvalidRequest ProviderErrorKind = "invalid_request"
	// ProviderErrorKindRateLimited indicates throttling. Transient (§7).
	ProviderErrorKindRateLimited ProviderErrorKind = "rate_limited"
	// ProviderErrorKindUnavailable indicates a transient failure (5xx,
	// network) where a retry may succeed. Transient (§7).
	ProviderErrorKindUnavailable ProviderErrorKind = "unavailable"
	// ProviderErrorKindUnknown indicates an unclassified failure.
	ProviderErrorKindUnknown ProviderErrorKind = "unknown"
)

// Retryable reports whether kind is recoverable by the transient-retry path
// described in spec §6.4 (base 500ms, cap 8s, max 3 attempts).
func (k ProviderErrorKind) Retryable() bool {
	switch k {
	case ProviderErrorKindRateLimited, ProviderErrorKindUnavailable:
		return true
	default:
		return false
	}
}

// ProviderError describes a failure returned by a model provider adapter.
// It crosses package boundaries so the Executor/Planner/Pipeline can surface
// stable, structured information without depending on any one SDK's error
// types.
type ProviderError struct {
	provider  string
	operation string
	http      int
	kind      ProviderErrorKind
	code      string
	message   string
	cause     error
}

// NewProviderError constructs a ProviderError. provider and kind are required.
func NewProviderError(provider, operation string, httpStatus int, kind ProviderErrorKind, code, message string, cause error) *ProviderError {
	if provider == "" {
		panic("model: provider is required")
	}
	if kind == "" {
		panic("model: provider error kind is required")
	}
	return &ProviderError{provider: provider, operation: operation, http: httpStatus, kind: kind, code: code, message: message, cause: cause}
}

func (e *ProviderError) Provider() string            { return e.provider }
func (e *ProviderError) Operation() string            { return e.operation }
func (e *ProviderError) HTTPStatus() int              { return e.http }
func (e *ProviderError) Kind() ProviderErrorKind      { return e.kind }
func (e *ProviderError) Code() string                 { return e.code }
func (e *ProviderError) Message() string              { return e.message }
func (e *ProviderError) Retryable() bool              { return e.kind.Retryable() }
func (e *ProviderError) Unwrap() error                { return e.cause }

func (e *ProviderError) Error() string {
	op := e.operation
	if op == "" {
		op = "request"
	}
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		msg = "provider error"
	}
	code := ""
	if e.code != "" {
		code = e.code + ": "
	}
	status := ""
	if e.http > 0 {
		status = fmt.Sprintf("%d ", e.http)
	}
	return fmt.Sprintf("%s %s %s(%s): %s", e.provider, e.kind, status, op, code+msg)
}

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
