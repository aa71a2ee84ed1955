// Package capability holds the registry that maps a node type tag to the
// handler that executes it, together with the public template catalog shown
// by the workflow editor.
//
// Handlers share one contract, [Handler.Execute], which receives the node
// configuration and the ordered payloads of the node's direct dependencies.
// Registration happens at process start; [Registry.Resolve] is read-only and
// safe for concurrent use by any number of runs.
package capability
