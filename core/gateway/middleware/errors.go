package middleware

import "errors"

// ErrRetryExhausted is returned when every attempt failed with a transient
// error. It wraps the last provider error, so errors.As still finds the
// underlying *ai.ProviderError.
var ErrRetryExhausted = errors.New("gateway: all retry attempts exhausted")
