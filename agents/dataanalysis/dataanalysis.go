// Package dataanalysis implements the dataAnalyzer capability. It produces
// chart payloads whose values are seeded from the data source name, so the
// same request always yields the same chart.
package dataanalysis

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/providers/artifact"
)

const (
	Type     = "dataAnalyzer"
	TaskName = "analyze_data"
)

// Analysis types.
const (
	Statistical = "统计分析"
	Trend       = "趋势分析"
	Forecast    = "预测分析"
)

const (
	DefaultTimeRange = 30
	MaxTimeRange     = 365
	DefaultSource    = "default"
)

const excerptChars = 200

var analysisAliases = map[string]string{
	Statistical:   Statistical,
	Trend:         Trend,
	Forecast:      Forecast,
	"statistical": Statistical,
	"statistics":  Statistical,
	"trend":       Trend,
	"forecast":    Forecast,
	"prediction":  Forecast,
}

var Template = capability.Template{
	Type:        Type,
	Label:       "数据分析器",
	Description: "分析和处理数据",
	Category:    "分析",
	ConfigFields: []capability.ConfigField{
		{Name: "dataSource", Type: "text", Label: "数据来源"},
		{Name: "analysisType", Type: "select", Label: "分析类型", Options: []string{Statistical, Trend, Forecast}},
	},
}

// Clock supplies the day charts end at. market.DataSource satisfies it.
type Clock interface {
	Now() time.Time
}

// Analyzer builds analysis charts.
type Analyzer struct {
	seed  uint64
	clock Clock
	store *artifact.Store
}

// New returns an Analyzer. A nil store rejects export requests.
func New(seed uint64, clock Clock, store *artifact.Store) *Analyzer {
	return &Analyzer{seed: seed, clock: clock, store: store}
}

// Execute implements capability.Handler.
func (a *Analyzer) Execute(ctx context.Context, config capability.Config, upstream []capability.Payload) (capability.Payload, error) {
	analysisType, known := analysisAliases[strings.ToLower(config.String("analysisType", Statistical))]
	if !known {
		return nil, capability.InvalidConfig("unknown analysisType %q", config.String("analysisType", ""))
	}
	timeRange := config.Int("timeRange", DefaultTimeRange)
	if timeRange <= 0 || timeRange > MaxTimeRange {
		return nil, capability.InvalidConfig("timeRange must be between 1 and %d days", MaxTimeRange)
	}
	dataSource := config.String("dataSource", DefaultSource)

	chart := a.chart(analysisType, dataSource, timeRange)
	payload := capability.Payload{
		"type":         chart.Type,
		"title":        chart.Title,
		"labels":       chart.Labels,
		"datasets":     chart.Datasets,
		"analysisType": analysisType,
		"dataSource":   dataSource,
		"inputs":       len(upstream),
		"context":      shared.Excerpts(upstream, excerptChars),
	}

	if export := strings.ToLower(config.String("export", "")); export != "" {
		if export != "xlsx" {
			return nil, capability.InvalidConfig("unsupported export format %q", export)
		}
		if a.store == nil {
			return nil, capability.InvalidConfig("export requires an artifact directory")
		}
		saved, err := a.store.SaveChart(ctx, config.String("filename", dataSource+"_"+chart.Title), chart)
		if errors.Is(err, artifact.ErrInvalidName) {
			return nil, capability.InvalidConfig("cannot derive a file name for %q", dataSource)
		}
		if err != nil {
			return nil, capability.Failed(err, "export chart")
		}
		payload["artifact"] = saved
	}
	return payload, nil
}

func (a *Analyzer) chart(analysisType, dataSource string, timeRange int) artifact.Chart {
	rng := a.rng(dataSource, analysisType)

	switch analysisType {
	case Statistical:
		return artifact.Chart{
			Type:   "bar",
			Title:  "数据分布统计",
			Labels: []string{"类别A", "类别B", "类别C", "类别D", "类别E"},
			Datasets: []artifact.Dataset{
				{Label: "数量", Data: randomInts(rng, 5, 50, 200)},
			},
		}
	case Trend:
		return artifact.Chart{
			Type:   "line",
			Title:  "趋势分析",
			Labels: a.dates(timeRange),
			Datasets: []artifact.Dataset{
				{Label: "指标A", Data: randomInts(rng, timeRange, 100, 200)},
				{Label: "指标B", Data: randomInts(rng, timeRange, 50, 150)},
			},
		}
	default:
		return artifact.Chart{
			Type:   "line",
			Title:  "预测分析",
			Labels: a.dates(timeRange),
			Datasets: []artifact.Dataset{
				{Label: "实际值", Data: randomInts(rng, timeRange, 100, 200)},
				{Label: "预测值", Data: randomInts(rng, timeRange, 90, 210), BorderColor: "#2196F3"},
			},
		}
	}
}

func (a *Analyzer) rng(dataSource, analysisType string) *rand.Rand {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(dataSource))
	_, _ = hash.Write([]byte{0})
	_, _ = hash.Write([]byte(analysisType))
	return rand.New(rand.NewPCG(a.seed, hash.Sum64()))
}

// dates returns count calendar days ending at the clock's day, oldest first.
func (a *Analyzer) dates(count int) []string {
	end := a.clock.Now()
	labels := make([]string, count)
	for index := range labels {
		labels[index] = end.AddDate(0, 0, index-count+1).Format(time.DateOnly)
	}
	return labels
}

// randomInts draws count integers in [low, high).
func randomInts(rng *rand.Rand, count, low, high int) []any {
	values := make([]any, count)
	for index := range values {
		values[index] = low + rng.IntN(high-low)
	}
	return values
}
