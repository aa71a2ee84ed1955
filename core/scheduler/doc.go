// Package scheduler executes a validated workflow graph.
//
// Execution is event driven. Every node starts with a countdown of its
// incoming edges; source nodes are ready immediately. Ready nodes are
// dispatched lowest insertion index first, up to the per-run concurrency
// limit. When a node settles, each successor's countdown drops by one; at zero
// the successor is dispatched if every predecessor succeeded, or settled as
// upstream_failed without running its handler otherwise.
//
// Every settlement produces one node emission and the run ends with one
// summary emission. If an emission cannot be written the run is cancelled:
// nodes not yet dispatched settle as canceled and results still in flight are
// discarded.
package scheduler
