// Package middleware provides the standard gateway middlewares: bounded
// retry with exponential backoff, a per-attempt timeout, a process-wide
// concurrency limit on outbound calls, and zap logging of every attempt.
//
// The recommended order, outermost first, is Retry, Limit, Timeout, Logging:
// each retry attempt acquires a slot, gets a fresh deadline and is logged.
package middleware
