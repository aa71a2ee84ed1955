// Package advisor implements the investmentAdvisor capability. It combines
// fundamentals and a year of price history into model-written advice.
package advisor

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
	Type     = "investmentAdvisor"
	TaskName = "analyze_investment"
)

const (
	DefaultRiskLevel = "moderate"
	DefaultHorizon   = "medium"

	historyPeriod    = "1y"
	volatilityWindow = 30
)

// Valuation statuses derived from the trailing P/E.
const (
	ValuationUnknown     = "unknown"
	ValuationOvervalued  = "overvalued"
	ValuationUndervalued = "undervalued"
	ValuationFair        = "fair"
)

// Risk levels derived from beta.
const (
	RiskUnknown = "unknown"
	RiskHigh    = "high"
	RiskLow     = "low"
	RiskMedium  = "medium"
)

const systemPrompt = "你是一个专业的投资顾问，请用清晰的普通文本格式（不使用markdown）提供投资建议。"

var Template = capability.Template{
	Type:        Type,
	Label:       "投资顾问",
	Description: "基于基本面和价格走势生成投资建议",
	Category:    "分析",
	ConfigFields: []capability.ConfigField{
		{Name: "symbols", Type: "text", Label: "股票代码或公司名称"},
		{Name: "riskLevel", Type: "select", Label: "风险偏好", Options: []string{"conservative", "moderate", "aggressive"}},
		{Name: "investmentHorizon", Type: "select", Label: "投资期限", Options: []string{"short", "medium", "long"}},
	},
}

// ValuationStatus classifies a trailing P/E ratio.
func ValuationStatus(pe float64) string {
	switch {
	case pe <= 0:
		return ValuationUnknown
	case pe > 30:
		return ValuationOvervalued
	case pe < 15:
		return ValuationUndervalued
	default:
		return ValuationFair
	}
}

// RiskLevel classifies a beta coefficient.
func RiskLevel(beta float64) string {
	switch {
	case beta <= 0:
		return RiskUnknown
	case beta > 1.5:
		return RiskHigh
	case beta < 0.5:
		return RiskLow
	default:
		return RiskMedium
	}
}

// Profile is the per-symbol view placed in the payload.
type Profile struct {
	Name            string  `json:"name"`
	Sector          string  `json:"sector"`
	MarketCap       float64 `json:"marketCap"`
	PE              float64 `json:"pe"`
	ForwardPE       float64 `json:"forwardPE"`
	ProfitMargin    float64 `json:"profitMargin"`
	DividendYield   float64 `json:"dividendYield"`
	Beta            float64 `json:"beta"`
	ValuationStatus string  `json:"valuation_status"`
	RiskLevel       string  `json:"risk_level"`
	AnnualReturn    float64 `json:"annualReturn"`
	Volatility      float64 `json:"volatility"`
}

// Advisor produces investment advice. Fundamentals are read through source,
// which is expected to be cached in production wiring.
type Advisor struct {
	source market.DataSource
	model  shared.Completer
}

// New returns an Advisor.
func New(source market.DataSource, model shared.Completer) *Advisor {
	return &Advisor{source: source, model: model}
}

// Execute implements capability.Handler.
func (a *Advisor) Execute(ctx context.Context, config capability.Config, _ []capability.Payload) (capability.Payload, error) {
	symbols := market.ResolveSymbols(config.Strings("symbols"))
	riskLevel := config.String("riskLevel", DefaultRiskLevel)
	horizon := config.String("investmentHorizon", DefaultHorizon)

	histories, err := shared.FetchHistories(ctx, a.source, symbols, market.PeriodDays(historyPeriod))
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}

	profiles := make(map[string]Profile, len(histories))
	analyzed := make([]shared.History, 0, len(histories))
	for _, history := range histories {
		fundamentals, err := a.source.Fundamentals(ctx, history.Symbol)
		if errors.Is(err, market.ErrNoData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load fundamentals for %s: %w", history.Symbol, err)
		}
		profiles[history.Symbol] = newProfile(fundamentals, market.Closes(history.Bars))
		analyzed = append(analyzed, history)
	}
	if len(analyzed) == 0 {
		return nil, shared.NoData(symbols)
	}

	analyzedSymbols := make([]string, len(analyzed))
	for index, history := range analyzed {
		analyzedSymbols[index] = history.Symbol
	}

	advice, err := a.model.Complete(ctx, advicePrompt(analyzedSymbols, profiles, riskLevel, horizon), gateway.Options{
		Model:        config.String("model", ""),
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generate investment advice: %w", err)
	}

	history := capability.StateFromContext(ctx).RecentSearches()
	return capability.Payload{
		"advice":            advice,
		"fundamentals":      profiles,
		"charts":            charts(analyzed),
		"analyzed_symbols":  analyzedSymbols,
		"riskLevel":         riskLevel,
		"investmentHorizon": horizon,
		"recentSearches":    capability.RecordSearches(history, analyzedSymbols...),
	}, nil
}

func newProfile(fundamentals market.Fundamentals, closes []float64) Profile {
	return Profile{
		Name:            fundamentals.Name,
		Sector:          fundamentals.Sector,
		MarketCap:       market.Round(fundamentals.MarketCap, 2),
		PE:              market.Round(fundamentals.PE, 2),
		ForwardPE:       market.Round(fundamentals.ForwardPE, 2),
		ProfitMargin:    market.Round(fundamentals.ProfitMargin, 2),
		DividendYield:   market.Round(fundamentals.DividendYield, 2),
		Beta:            market.Round(fundamentals.Beta, 2),
		ValuationStatus: ValuationStatus(fundamentals.PE),
		RiskLevel:       RiskLevel(fundamentals.Beta),
		AnnualReturn:    market.Round(market.Change(closes), 2),
		Volatility:      market.Round(market.Volatility(closes), 2),
	}
}

func advicePrompt(symbols []string, profiles map[string]Profile, riskLevel, horizon string) string {
	var builder strings.Builder
	builder.WriteString("作为一个投资顾问，请用简单的文字格式（不要使用markdown）为投资者提供详细的投资建议。请使用中文回答。\n\n")
	fmt.Fprintf(&builder, "投资者风险偏好: %s\n投资期限: %s\n\n分析的股票基本面数据:\n", riskLevel, horizon)
	for _, symbol := range symbols {
		profile := profiles[symbol]
		fmt.Fprintf(&builder, "\n%s (%s):\n", symbol, profile.Name)
		fmt.Fprintf(&builder, "- 行业: %s\n", profile.Sector)
		fmt.Fprintf(&builder, "- 市值: %.2fB\n", profile.MarketCap)
		fmt.Fprintf(&builder, "- 市盈率: %.2f (%s)\n", profile.PE, profile.ValuationStatus)
		fmt.Fprintf(&builder, "- 预期市盈率: %.2f\n", profile.ForwardPE)
		fmt.Fprintf(&builder, "- 利润率: %.2f%%\n", profile.ProfitMargin)
		fmt.Fprintf(&builder, "- 股息率: %.2f%%\n", profile.DividendYield)
		fmt.Fprintf(&builder, "- Beta系数: %.2f (%s)\n", profile.Beta, profile.RiskLevel)
		fmt.Fprintf(&builder, "- 年回报率: %.2f%%\n", profile.AnnualReturn)
		fmt.Fprintf(&builder, "- 波动率: %.2f%%\n", profile.Volatility)
	}
	builder.WriteString(`
请提供以下方面的建议（使用普通文本格式，不要使用markdown或特殊格式）：

1. 总体市场评估
2. 各个股票的投资建议（买入/持有/卖出）及理由
3. 建议的投资组合配置
4. 风险提示
5. 投资时间建议

请用清晰的语言表达，避免使用任何特殊格式或标记。确保建议符合投资者的风险偏好和投资期限。`)
	return builder.String()
}

// charts returns the relative price chart, every series rebased to 100 on
// the first common day, and the trailing 30-day volatility comparison.
func charts(histories []shared.History) []artifact.Chart {
	common := len(histories[0].Bars)
	for _, history := range histories[1:] {
		common = min(common, len(history.Bars))
	}

	relative := artifact.Chart{
		Type:   "line",
		Title:  "股票价格相对变化",
		Labels: market.Dates(histories[0].Bars[len(histories[0].Bars)-common:]),
	}
	volatilityData := make([]any, 0, len(histories))
	labels := make([]string, 0, len(histories))

	for index, history := range histories {
		closes := market.Closes(history.Bars[len(history.Bars)-common:])
		rebased := make([]float64, len(closes))
		for position, value := range closes {
			rebased[position] = value / closes[0] * 100
		}
		relative.Datasets = append(relative.Datasets, artifact.Dataset{
			Label:       history.Symbol,
			Data:        market.Series(rebased, 2),
			BorderColor: shared.Color(index, 1),
			Fill:        utils.Ptr(false),
		})

		window := closes[max(len(closes)-volatilityWindow-1, 0):]
		labels = append(labels, history.Symbol)
		volatilityData = append(volatilityData, market.Round(market.Volatility(window), 2))
	}

	volatility := artifact.Chart{
		Type:   "bar",
		Title:  "30日波动率对比",
		Labels: labels,
		Datasets: []artifact.Dataset{
			{Label: "波动率 (%)", Data: volatilityData, BackgroundColor: "rgba(54, 162, 235, 0.5)"},
		},
	}
	return []artifact.Chart{relative, volatility}
}
