// Package observability defines the tracing, metrics and logging interfaces
// used across agentflow, together with the attribute and metric names that
// keep recorded data consistent.
//
// A [Provider] travels through a [context.Context] via [ContextWithObserver]
// and is read back with [ObserverFromContext]. [Nop] discards everything and
// is the fallback when no provider is configured. The zapobs subpackage is the
// concrete implementation used by the server and CLI.
package observability
