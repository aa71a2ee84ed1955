// Package zapobs implements observability.Provider on top of zap. Spans are
// logged when they end, counters are kept in memory and histograms are backed
// by HDR histograms so the metrics endpoint can report percentiles.
package zapobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leofalp/agentflow/providers/observability"
)

const (
	histogramMin     = 0
	histogramMax     = 3_600_000 // one hour in milliseconds
	histogramSigFigs = 3
)

// Observer is a zap backed observability.Provider.
type Observer struct {
	logger *zap.Logger

	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
}

var _ observability.Provider = (*Observer)(nil)

// New returns an Observer that writes through logger. A nil logger discards
// log output but still aggregates metrics.
func New(logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		logger:     logger,
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}
}

// --- TRACING ---

func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	s := &span{
		observer: o,
		name:     name,
		start:    time.Now(),
		attrs:    append([]observability.Attribute(nil), attrs...),
	}
	return observability.ContextWithSpan(ctx, s), s
}

type span struct {
	observer *Observer
	name     string
	start    time.Time

	mu          sync.Mutex
	attrs       []observability.Attribute
	status      observability.StatusCode
	description string
	events      []string
	err         error
	ended       bool
}

func (s *span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	fields := append(toFields(s.attrs),
		zap.String("span", s.name),
		zap.Duration("duration", time.Since(s.start)),
		zap.Stringer("status", s.status),
	)
	if s.description != "" {
		fields = append(fields, zap.String("description", s.description))
	}
	if len(s.events) > 0 {
		fields = append(fields, zap.Strings("events", s.events))
	}
	if s.err != nil {
		fields = append(fields, zap.Error(s.err))
	}
	status := s.status
	s.mu.Unlock()

	if status == observability.StatusError {
		s.observer.logger.Warn("span ended", fields...)
		return
	}
	s.observer.logger.Debug("span ended", fields...)
}

func (s *span) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *span) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
	s.description = description
}

func (s *span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *span) AddEvent(name string, attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	s.attrs = append(s.attrs, attrs...)
}

// --- METRICS ---

type counter struct {
	value atomic.Int64
}

func (c *counter) Add(_ context.Context, value int64, _ ...observability.Attribute) {
	c.value.Add(value)
}

type histogram struct {
	mu  sync.Mutex
	hdr *hdrhistogram.Histogram
}

func (h *histogram) Record(_ context.Context, value float64, _ ...observability.Attribute) {
	recorded := int64(value)
	if recorded < histogramMin {
		recorded = histogramMin
	}
	if recorded > histogramMax {
		recorded = histogramMax
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.hdr.RecordValue(recorded)
}

// Counter returns the counter series for name. Attributes passed to Add are
// folded into the series key at lookup time, so callers that want labelled
// series use CounterWith.
func (o *Observer) Counter(name string) observability.Counter {
	return o.counterFor(name)
}

// CounterWith returns the counter series for name labelled with attrs.
func (o *Observer) CounterWith(name string, attrs ...observability.Attribute) observability.Counter {
	return o.counterFor(seriesKey(name, attrs))
}

func (o *Observer) counterFor(key string) *counter {
	o.mu.Lock()
	defer o.mu.Unlock()
	existing, ok := o.counters[key]
	if !ok {
		existing = &counter{}
		o.counters[key] = existing
	}
	return existing
}

func (o *Observer) Histogram(name string) observability.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()
	existing, ok := o.histograms[name]
	if !ok {
		existing = &histogram{hdr: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)}
		o.histograms[name] = existing
	}
	return existing
}

// HistogramSnapshot summarizes one histogram.
type HistogramSnapshot struct {
	Count int64   `json:"count"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Mean  float64 `json:"mean"`
	P50   int64   `json:"p50"`
	P90   int64   `json:"p90"`
	P99   int64   `json:"p99"`
}

// Snapshot is a point-in-time copy of every metric.
type Snapshot struct {
	Counters   map[string]int64             `json:"counters"`
	Histograms map[string]HistogramSnapshot `json:"histograms"`
}

// Snapshot copies the current metric values.
func (o *Observer) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := Snapshot{
		Counters:   make(map[string]int64, len(o.counters)),
		Histograms: make(map[string]HistogramSnapshot, len(o.histograms)),
	}
	for key, c := range o.counters {
		snapshot.Counters[key] = c.value.Load()
	}
	for key, h := range o.histograms {
		h.mu.Lock()
		snapshot.Histograms[key] = HistogramSnapshot{
			Count: h.hdr.TotalCount(),
			Min:   h.hdr.Min(),
			Max:   h.hdr.Max(),
			Mean:  h.hdr.Mean(),
			P50:   h.hdr.ValueAtQuantile(50),
			P90:   h.hdr.ValueAtQuantile(90),
			P99:   h.hdr.ValueAtQuantile(99),
		}
		h.mu.Unlock()
	}
	return snapshot
}

// --- LOGGING ---

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, zapcore.DebugLevel, msg, attrs)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, zapcore.InfoLevel, msg, attrs)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, zapcore.WarnLevel, msg, attrs)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, zapcore.ErrorLevel, msg, attrs)
}

func (o *Observer) log(_ context.Context, level zapcore.Level, msg string, attrs []observability.Attribute) {
	if checked := o.logger.Check(level, msg); checked != nil {
		checked.Write(toFields(attrs)...)
	}
}

// Logger exposes the underlying zap logger.
func (o *Observer) Logger() *zap.Logger { return o.logger }

func toFields(attrs []observability.Attribute) []zap.Field {
	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		switch value := attr.Value.(type) {
		case time.Duration:
			fields = append(fields, zap.Duration(attr.Key, value))
		case string:
			fields = append(fields, zap.String(attr.Key, value))
		case error:
			fields = append(fields, zap.NamedError(attr.Key, value))
		default:
			fields = append(fields, zap.Any(attr.Key, value))
		}
	}
	return fields
}

func seriesKey(name string, attrs []observability.Attribute) string {
	if len(attrs) == 0 {
		return name
	}
	labels := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		labels = append(labels, fmt.Sprintf("%s=%v", attr.Key, attr.Value))
	}
	sort.Strings(labels)
	return name + "{" + strings.Join(labels, ",") + "}"
}
