package capability

import "context"

// ProgressFunc receives partial payloads while a handler is still running.
type ProgressFunc func(partial Payload)

type progressKey struct{}

// WithProgress returns a context that forwards ReportProgress calls to report.
func WithProgress(ctx context.Context, report ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, report)
}

// ReportProgress publishes a partial payload when the caller asked for
// progress; otherwise it does nothing.
func ReportProgress(ctx context.Context, partial Payload) {
	if report, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && report != nil {
		report(partial)
	}
}
