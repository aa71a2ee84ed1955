// Package gateway is the single entry point capabilities use to reach a
// language model. A Gateway wraps an ai.Provider in a middleware chain
// (logging, retry, concurrency limit, per-attempt timeout; see the middleware
// subpackage), fills in default generation settings, and records token usage
// on the overview attached to the request context.
package gateway
