package observability

import (
	"context"
	"time"
)

// Provider bundles the three signals the scheduler, the task runner and the
// gateway report through. Nop and zapobs.Observer implement it.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer opens a span per workflow run, node execution or task. The returned
// context carries the span so nested work can attach to it.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is an open unit of work. End must be called exactly once; calls after
// End are ignored by the bundled implementations.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	SetStatus(code StatusCode, description string)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (code StatusCode) String() string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Metrics hands out named instruments. Asking twice for the same name
// returns the same instrument.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records a distribution. Run and node durations are recorded in
// milliseconds.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute is one key/value annotation on a span, metric point or log line.
// Keys come from semconv.go.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute                 { return Attribute{Key: key, Value: value} }
func Int(key string, value int) Attribute                { return Attribute{Key: key, Value: value} }
func Int64(key string, value int64) Attribute            { return Attribute{Key: key, Value: value} }
func Float64(key string, value float64) Attribute        { return Attribute{Key: key, Value: value} }
func Bool(key string, value bool) Attribute              { return Attribute{Key: key, Value: value} }
func Duration(key string, value time.Duration) Attribute { return Attribute{Key: key, Value: value} }

// Error records err under AttrError. A nil error yields an empty value.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: AttrError, Value: ""}
	}
	return Attribute{Key: AttrError, Value: err.Error()}
}
