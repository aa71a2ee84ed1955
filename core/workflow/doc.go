// Package workflow defines the graph model executed by the scheduler: nodes
// tagged with a capability type, directed edges expressing data dependencies,
// and the validation that must pass before any node runs.
//
// A [Graph] is plain data. [Validate] rejects dangling edges first and then
// walks the graph depth-first with "visiting" and "visited" marks to reject
// cycles. [NewPlan] validates and precomputes the index-addressed in-degree,
// successor and predecessor tables the scheduler consumes, so no live pointers
// exist between nodes.
package workflow
