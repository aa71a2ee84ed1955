// Package parse recovers structured data from raw model output. Models wrap
// JSON in prose or code fences and sometimes emit slightly broken JSON, so
// [JSONAs] extracts a candidate, repairs it and only then reports an error.
package parse
