// Package utils holds small helpers shared by providers and capabilities:
// a JSON POST helper with typed status errors, string truncation for log
// previews, and pointer construction for optional fields.
package utils
