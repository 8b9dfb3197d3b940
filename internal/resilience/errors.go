// Package resilience provides the error taxonomy, retry and circuit breaker
// patterns shared by external provider calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
)

// ProviderError is a failure from one external backend.
type ProviderError struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Unavailable returns a ProviderUnavailable error.
func Unavailable(provider string, err error) *ProviderError {
	return &ProviderError{Kind: KindUnavailable, Provider: provider, Err: err}
}

// Timeout returns a ProviderTimeout error.
func Timeout(provider string, err error) *ProviderError {
	return &ProviderError{Kind: KindTimeout, Provider: provider, Err: err}
}

// RateLimited returns a ProviderRateLimited error.
func RateLimited(provider string, err error) *ProviderError {
	return &ProviderError{Kind: KindRateLimited, Provider: provider, StatusCode: http.StatusTooManyRequests, Err: err}
}

// FromStatus maps an HTTP response status to a provider error kind.
func FromStatus(provider string, status int, body string) *ProviderError {
	err := fmt.Errorf("http %d: %s", status, truncate(body, 200))
	kind := KindUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	}
	return &ProviderError{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

// ClassifyStatus classifies a client error using the HTTP status the
// client reported, falling back to Classify when the status is unknown (0).
// The original error stays in the chain.
func ClassifyStatus(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if status == 0 {
		return Classify(provider, err)
	}
	pe := FromStatus(provider, status, err.Error())
	pe.Err = err
	return pe
}

// Classify turns an arbitrary call error into a ProviderError. Existing
// provider errors pass through; deadline and network timeouts become
// timeouts; everything else is unavailable.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if isTimeout(err) {
		return Timeout(provider, err)
	}
	return Unavailable(provider, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "tls handshake timeout")
}

// KindOf returns the provider error kind in err's chain, or "".
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRateLimited reports whether err is a ProviderRateLimited failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsUnavailable reports whether err is a ProviderUnavailable failure.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// IsTransient reports whether err looks like a network-level hiccup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if isTimeout(err) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection reset by peer", "broken pipe", "no such host", "server closed idle connection"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ProviderFailure is one entry in an exhausted chain.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every provider in a chain failed.
type ExhaustedError struct {
	Failures []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "all providers exhausted: no providers configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("[%s] %v", f.Provider, f.Err))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

// IsExhausted reports whether err is an ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// ParseError marks a malformed backend response. Callers degrade rather
// than fail on it.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError marks malformed input or internally inconsistent data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError. Nil stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
