// Package stocks implements the stockAnalyzer capability: price, volume and
// technical charts, fundamentals comparisons and news sentiment for up to
// five symbols.
package stocks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/artifact"
	"github.com/leofalp/agentflow/providers/market"
)

const (
	Type     = "stockAnalyzer"
	TaskName = "analyze_stocks"
)

// Analysis kinds.
const (
	Price        = "price"
	Volume       = "volume"
	Technical    = "technical"
	Fundamentals = "fundamentals"
	News         = "news"
)

const (
	// newsSymbols and newsPerSymbol bound the news analysis.
	newsSymbols   = 3
	newsPerSymbol = 5

	// warmup bars are fetched before the charted window so that long
	// moving averages are defined from its first day.
	warmup = 50
)

var analysisAliases = map[string]string{
	Price:        Price,
	Volume:       Volume,
	Technical:    Technical,
	Fundamentals: Fundamentals,
	News:         News,
	"价格趋势":       Price,
	"成交量分析":      Volume,
	"技术指标":       Technical,
	"基本面分析":      Fundamentals,
	"新闻分析":       News,
}

var Template = capability.Template{
	Type:        Type,
	Label:       "股票分析器",
	Description: "分析股票价格、成交量、技术指标、基本面和新闻",
	Category:    "分析",
	ConfigFields: []capability.ConfigField{
		{Name: "symbols", Type: "text", Label: "股票代码"},
		{Name: "period", Type: "select", Label: "时间范围", Options: []string{"5d", "1mo", "3mo", "6mo", "1y"}},
		{Name: "analysisType", Type: "select", Label: "分析类型", Options: []string{"价格趋势", "成交量分析", "技术指标", "基本面分析", "新闻分析"}},
	},
}

// Analyzer analyzes stocks from a market data source.
type Analyzer struct {
	source market.DataSource
	model  shared.Completer
}

// New returns an Analyzer. The model is only used for news sentiment.
func New(source market.DataSource, model shared.Completer) *Analyzer {
	return &Analyzer{source: source, model: model}
}

// Execute implements capability.Handler.
func (a *Analyzer) Execute(ctx context.Context, config capability.Config, _ []capability.Payload) (capability.Payload, error) {
	requested := config.String("analysisType", Price)
	analysis, known := analysisAliases[strings.ToLower(requested)]
	if !known {
		return nil, capability.InvalidConfig("unknown analysisType %q", requested)
	}
	symbols := market.ResolveSymbols(config.Strings("symbols"))
	period := config.String("period", market.DefaultPeriod)

	switch analysis {
	case Fundamentals:
		return a.fundamentals(ctx, symbols)
	case News:
		return a.news(ctx, symbols, config.String("model", ""))
	}

	days := market.PeriodDays(period)
	fetchDays := days
	if analysis == Technical {
		fetchDays += warmup
	}
	histories, err := shared.FetchHistories(ctx, a.source, symbols, fetchDays)
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	if len(histories) == 0 {
		return nil, shared.NoData(symbols)
	}

	var chart artifact.Chart
	var indicators map[string]any
	switch analysis {
	case Volume:
		chart = volumeChart(histories)
	case Technical:
		chart, indicators = technicalChart(histories, days)
	default:
		chart = priceChart(histories)
	}

	payload := capability.Payload{
		"type":         chart.Type,
		"title":        chart.Title,
		"labels":       chart.Labels,
		"datasets":     chart.Datasets,
		"analysisType": analysis,
		"symbols":      analyzedSymbols(histories),
		"period":       period,
	}
	if indicators != nil {
		payload["indicators"] = indicators
	}
	return payload, nil
}

func analyzedSymbols(histories []shared.History) []string {
	symbols := make([]string, len(histories))
	for index, history := range histories {
		symbols[index] = history.Symbol
	}
	return symbols
}

func priceChart(histories []shared.History) artifact.Chart {
	chart := artifact.Chart{Type: "line", Title: "股票价格趋势分析", Labels: market.Dates(histories[0].Bars)}
	for index, history := range histories {
		chart.Datasets = append(chart.Datasets, artifact.Dataset{
			Label:       history.Symbol,
			Data:        market.Series(market.Closes(history.Bars), 2),
			BorderColor: shared.Color(index, 1),
			Fill:        utils.Ptr(false),
		})
	}
	return chart
}

func volumeChart(histories []shared.History) artifact.Chart {
	chart := artifact.Chart{Type: "bar", Title: "股票成交量分析（百万股）", Labels: market.Dates(histories[0].Bars)}
	for index, history := range histories {
		volumes := market.Volumes(history.Bars)
		for position := range volumes {
			volumes[position] /= 1_000_000
		}
		chart.Datasets = append(chart.Datasets, artifact.Dataset{
			Label:           history.Symbol + " 成交量",
			Data:            market.Series(volumes, 2),
			BackgroundColor: shared.Color(index, 0.5),
			Type:            "bar",
		})
	}
	return chart
}

// technicalChart charts closes with SMA20 and SMA50 over the last days bars
// and reports the latest RSI14 and MACD histogram per symbol.
func technicalChart(histories []shared.History, days int) (artifact.Chart, map[string]any) {
	chart := artifact.Chart{Type: "line", Title: "技术指标分析"}
	indicators := make(map[string]any, len(histories))

	for _, history := range histories {
		closes := market.Closes(history.Bars)
		sma20 := market.SMA(closes, 20)
		sma50 := market.SMA(closes, 50)
		rsi := market.RSI(closes, 14)
		macd := market.MACDHistogram(closes)

		start := max(len(closes)-days, 0)
		if chart.Labels == nil {
			chart.Labels = market.Dates(history.Bars[start:])
		}

		colorIndex := len(chart.Datasets)
		chart.Datasets = append(chart.Datasets,
			artifact.Dataset{
				Label:       history.Symbol + " 收盘价",
				Data:        market.Series(closes[start:], 2),
				BorderColor: shared.Color(colorIndex, 1),
				Fill:        utils.Ptr(false),
			},
			artifact.Dataset{
				Label:       history.Symbol + " 20日均线",
				Data:        market.Series(sma20[start:], 2),
				BorderColor: shared.Color(colorIndex+1, 1),
				BorderDash:  []int{5, 5},
			},
			artifact.Dataset{
				Label:       history.Symbol + " 50日均线",
				Data:        market.Series(sma50[start:], 2),
				BorderColor: shared.Color(colorIndex+2, 1),
				BorderDash:  []int{2, 2},
			},
		)

		indicators[history.Symbol] = map[string]any{
			"sma20":         market.Round(market.Last(sma20), 2),
			"sma50":         market.Round(market.Last(sma50), 2),
			"rsi14":         market.Round(market.Last(rsi), 2),
			"macdHistogram": market.Round(market.Last(macd), 4),
		}
	}
	return chart, indicators
}

// Metric is one row of the fundamentals comparison.
type Metric struct {
	Symbol       string  `json:"symbol"`
	PE           float64 `json:"pe"`
	MarketCap    float64 `json:"marketCap"`
	Revenue      float64 `json:"revenue"`
	ProfitMargin float64 `json:"profitMargin"`
}

func (a *Analyzer) fundamentals(ctx context.Context, symbols []string) (capability.Payload, error) {
	metrics := make([]Metric, 0, len(symbols))
	for _, symbol := range symbols {
		fundamentals, err := a.source.Fundamentals(ctx, symbol)
		if errors.Is(err, market.ErrNoData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load fundamentals for %s: %w", symbol, err)
		}
		metrics = append(metrics, Metric{
			Symbol:       symbol,
			PE:           market.Round(fundamentals.PE, 2),
			MarketCap:    market.Round(fundamentals.MarketCap, 2),
			Revenue:      market.Round(fundamentals.Revenue, 2),
			ProfitMargin: market.Round(fundamentals.ProfitMargin, 2),
		})
	}
	if len(metrics) == 0 {
		return nil, shared.NoData(symbols)
	}

	labels := make([]string, len(metrics))
	marketCaps := make([]any, len(metrics))
	peRatios := make([]any, len(metrics))
	margins := make([]any, len(metrics))
	for index, metric := range metrics {
		labels[index] = metric.Symbol
		marketCaps[index] = metric.MarketCap
		peRatios[index] = metric.PE
		margins[index] = metric.ProfitMargin
	}

	comparison := func(title, label string, data []any, colorIndex int) artifact.Chart {
		return artifact.Chart{
			Type:   "bar",
			Title:  title,
			Labels: labels,
			Datasets: []artifact.Dataset{
				{Label: label, Data: data, BackgroundColor: shared.Color(colorIndex, 0.5)},
			},
		}
	}

	return capability.Payload{
		"type": "fundamental",
		"charts": []artifact.Chart{
			comparison("市值对比（十亿美元）", "市值", marketCaps, 0),
			comparison("市盈率(P/E)对比", "P/E比率", peRatios, 1),
			comparison("利润率对比(%)", "利润率", margins, 2),
		},
		"metrics":      metrics,
		"analysisType": Fundamentals,
	}, nil
}

// SymbolNews groups headlines by symbol.
type SymbolNews struct {
	Symbol string            `json:"symbol"`
	News   []market.NewsItem `json:"news"`
}

// Sentiment is the model's reading of a symbol's headlines. Score is the mean
// sentiment of the headlines.
type Sentiment struct {
	Symbol   string  `json:"symbol"`
	Analysis string  `json:"analysis"`
	Score    float64 `json:"score"`
}

func (a *Analyzer) news(ctx context.Context, symbols []string, model string) (capability.Payload, error) {
	if len(symbols) > newsSymbols {
		symbols = symbols[:newsSymbols]
	}

	newsData := make([]SymbolNews, 0, len(symbols))
	sentiments := make([]Sentiment, 0, len(symbols))
	for _, symbol := range symbols {
		items, err := a.source.News(ctx, symbol, newsPerSymbol)
		if errors.Is(err, market.ErrNoData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load news for %s: %w", symbol, err)
		}

		analysis, err := a.model.Complete(ctx, sentimentPrompt(symbol, items), gateway.Options{Model: model})
		if err != nil {
			return nil, fmt.Errorf("analyze news sentiment for %s: %w", symbol, err)
		}

		newsData = append(newsData, SymbolNews{Symbol: symbol, News: items})
		sentiments = append(sentiments, Sentiment{Symbol: symbol, Analysis: analysis, Score: meanSentiment(items)})
	}
	if len(newsData) == 0 {
		return nil, shared.NoData(symbols)
	}

	return capability.Payload{
		"type":              "news",
		"newsData":          newsData,
		"sentimentAnalysis": sentiments,
		"analysisType":      News,
	}, nil
}

func sentimentPrompt(symbol string, items []market.NewsItem) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "分析以下%s股票的新闻标题，总结整体市场情绪（积极/中性/消极）并给出简要理由：\n", symbol)
	for _, item := range items {
		fmt.Fprintf(&builder, "标题: %s\n", item.Title)
	}
	return builder.String()
}

func meanSentiment(items []market.NewsItem) float64 {
	if len(items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range items {
		total += item.Sentiment
	}
	return market.Round(total/float64(len(items)), 2)
}
