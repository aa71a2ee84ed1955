package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrorRateLimited    ErrorKind = "rate_limited"
	ErrorTimeout        ErrorKind = "timeout"
	ErrorUnavailable    ErrorKind = "unavailable"
	ErrorServer         ErrorKind = "server_error"
	ErrorInvalidRequest ErrorKind = "invalid_request"
	ErrorAuthentication ErrorKind = "authentication"
	ErrorPermission     ErrorKind = "permission"
	ErrorNotFound       ErrorKind = "not_found"
	ErrorContentFilter  ErrorKind = "content_filter"
	ErrorUnknown        ErrorKind = "unknown"
)

// Transient reports whether failures of this kind are worth retrying.
func (kind ErrorKind) Transient() bool {
	switch kind {
	case ErrorRateLimited, ErrorTimeout, ErrorUnavailable, ErrorServer:
		return true
	default:
		return false
	}
}

// ProviderError is the typed failure returned by providers and the gateway.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (providerError *ProviderError) Error() string {
	prefix := providerError.Provider
	if prefix == "" {
		prefix = "provider"
	}
	if providerError.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", prefix, providerError.Kind, providerError.StatusCode, providerError.Message)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, providerError.Kind, providerError.Message)
}

func (providerError *ProviderError) Unwrap() error { return providerError.Err }

// Transient reports whether the failure is worth retrying.
func (providerError *ProviderError) Transient() bool { return providerError.Kind.Transient() }

// KindFromStatus maps an HTTP status code to an error kind. 529 is the
// "overloaded" status some backends use.
func KindFromStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorRateLimited
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return ErrorTimeout
	case statusCode == http.StatusServiceUnavailable || statusCode == http.StatusBadGateway || statusCode == 529:
		return ErrorUnavailable
	case statusCode >= 500:
		return ErrorServer
	case statusCode == http.StatusUnauthorized:
		return ErrorAuthentication
	case statusCode == http.StatusForbidden:
		return ErrorPermission
	case statusCode == http.StatusNotFound:
		return ErrorNotFound
	case statusCode >= 400:
		return ErrorInvalidRequest
	default:
		return ErrorUnknown
	}
}

// NewStatusError builds a ProviderError from an HTTP status and response body.
func NewStatusError(provider string, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       KindFromStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Classify converts an arbitrary error into a ProviderError. Errors that
// already are ProviderErrors are returned unchanged; deadline and network
// timeouts become ErrorTimeout; cancellation is permanent.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var providerError *ProviderError
	if errors.As(err, &providerError) {
		return providerError
	}

	kind := ErrorUnknown
	var netError net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrorTimeout
	case errors.Is(err, context.Canceled):
		kind = ErrorUnknown
	case errors.As(err, &netError) && netError.Timeout():
		kind = ErrorTimeout
	case errors.As(err, &netError):
		kind = ErrorUnavailable
	}

	return &ProviderError{Provider: provider, Kind: kind, Message: err.Error(), Err: err}
}

// IsTransient reports whether err is a provider failure worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return Classify("", err).Transient()
}
