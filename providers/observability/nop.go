package observability

import "context"

// Nop is a Provider that discards everything. It is used when no observer is
// configured so callers never need nil checks.
type Nop struct{}

var _ Provider = Nop{}

func (Nop) StartSpan(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, nopSpan{}
}

func (Nop) Counter(string) Counter     { return nopInstrument{} }
func (Nop) Histogram(string) Histogram { return nopInstrument{} }

func (Nop) Debug(context.Context, string, ...Attribute) {}
func (Nop) Info(context.Context, string, ...Attribute)  {}
func (Nop) Warn(context.Context, string, ...Attribute)  {}
func (Nop) Error(context.Context, string, ...Attribute) {}

type nopSpan struct{}

func (nopSpan) End()                          {}
func (nopSpan) SetAttributes(...Attribute)    {}
func (nopSpan) SetStatus(StatusCode, string)  {}
func (nopSpan) RecordError(error)             {}
func (nopSpan) AddEvent(string, ...Attribute) {}

type nopInstrument struct{}

func (nopInstrument) Add(context.Context, int64, ...Attribute)      {}
func (nopInstrument) Record(context.Context, float64, ...Attribute) {}
