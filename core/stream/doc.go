// Package stream frames run and task emissions as newline-delimited JSON.
//
// Each emission is one compact JSON object followed by '\n'. Objects never
// contain a raw newline (JSON escapes them inside strings), so a consumer can
// split on '\n' without tracking nesting. [Decoder] does that incrementally
// over arbitrary transport chunks and reports a truncated trailing frame at
// Close.
package stream
