// Package marketreport implements the marketAnalyzer capability: a market
// overview built section by section and summarized by the model. Each
// finished section is published through capability.ReportProgress so that
// task callers see it before the report is complete.
package marketreport

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/market"
)

const (
	Type     = "marketAnalyzer"
	TaskName = "analyze_market"
)

// Section names, in the order they are produced.
const (
	SectionOverview  = "market_overview"
	SectionSectors   = "hot_sectors"
	SectionMacro     = "macro_indicators"
	SectionNews      = "news_summary"
	SectionPotential = "potential_stocks"
	SectionSentiment = "market_sentiment"
	SectionReport    = "analysis_report"
)

const noNewsPlaceholder = "暂无最新市场新闻"

// Sections lists every section name in production order.
var Sections = []string{SectionOverview, SectionSectors, SectionMacro, SectionNews, SectionPotential, SectionSentiment, SectionReport}

var Template = capability.Template{
	Type:        Type,
	Label:       "市场分析器",
	Description: "分析市场指数、板块、情绪并筛选潜力股",
	Category:    "分析",
	ConfigFields: []capability.ConfigField{
		{Name: "universe", Type: "text", Label: "候选股票池"},
	},
}

// Analyzer builds market reports.
type Analyzer struct {
	source market.DataSource
	model  shared.Completer
}

// New returns an Analyzer.
func New(source market.DataSource, model shared.Completer) *Analyzer {
	return &Analyzer{source: source, model: model}
}

// Execute implements capability.Handler.
func (a *Analyzer) Execute(ctx context.Context, config capability.Config, _ []capability.Payload) (capability.Payload, error) {
	model := config.String("model", "")
	universe := config.Strings("universe")
	if len(universe) == 0 {
		universe = DefaultUniverse
	}
	if len(universe) > maxUniverse {
		universe = universe[:maxUniverse]
	}

	report := capability.Payload{}
	publish := func(section string, value any) {
		report[section] = value
		capability.ReportProgress(ctx, capability.Payload{"section": section, section: value})
	}

	overview, err := a.indices(ctx)
	if err != nil {
		return nil, err
	}
	publish(SectionOverview, overview)

	sectors, err := a.sectors(ctx)
	if err != nil {
		return nil, err
	}
	publish(SectionSectors, sectors)

	macro, err := a.macro(ctx)
	if err != nil {
		return nil, err
	}
	publish(SectionMacro, macro)

	headlines, err := a.headlines(ctx)
	if err != nil {
		return nil, err
	}
	newsSummary := noNewsPlaceholder
	if len(headlines) > 0 {
		newsSummary, err = a.model.Complete(ctx, newsPrompt(headlines), gateway.Options{Model: model})
		if err != nil {
			return nil, fmt.Errorf("summarize market news: %w", err)
		}
	}
	publish(SectionNews, newsSummary)

	candidates, err := a.screen(ctx, universe)
	if err != nil {
		return nil, err
	}
	publish(SectionPotential, candidates)

	sentiment, err := a.sentiment(ctx, headlines)
	if err != nil {
		return nil, err
	}
	publish(SectionSentiment, sentiment)

	prompt, err := reportPrompt(overview, macro, sectors, newsSummary, sentiment, candidates)
	if err != nil {
		return nil, capability.Failed(err, "encode report data")
	}
	analysis, err := a.model.Complete(ctx, prompt, gateway.Options{Model: model})
	if err != nil {
		return nil, fmt.Errorf("generate market report: %w", err)
	}
	publish(SectionReport, analysis)

	return report, nil
}

func newsPrompt(headlines []market.NewsItem) string {
	type brief struct {
		Title     string  `json:"title"`
		Summary   string  `json:"summary"`
		Sentiment float64 `json:"sentiment"`
	}
	briefs := make([]brief, len(headlines))
	for index, item := range headlines {
		briefs[index] = brief{Title: item.Title, Summary: item.Summary, Sentiment: item.Sentiment}
	}
	encoded, err := sonic.ConfigStd.MarshalIndent(briefs, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprint(briefs))
	}

	return fmt.Sprintf(`请基于以下最新的市场新闻，进行深入分析并提供见解：

最新新闻：
%s

请分析以下方面：
1. 主要市场趋势和热点
2. 整体市场情绪（看多/看空/中性）
3. 值得关注的重要事件及其潜在影响
4. 可能影响市场的风险因素

请用清晰的语言表达，避免使用任何特殊格式。重点关注这些新闻对投资者的实际影响。`, encoded)
}

func reportPrompt(overview, macro, sectors any, news string, sentiment, candidates any) (string, error) {
	sections := make([]any, 0, 5)
	for _, section := range []any{overview, macro, sectors, sentiment, candidates} {
		encoded, err := sonic.ConfigStd.MarshalIndent(section, "", "  ")
		if err != nil {
			return "", err
		}
		sections = append(sections, string(encoded))
	}

	return fmt.Sprintf(`请基于以下数据生成一份市场分析报告，使用清晰的文字格式（不使用markdown）：

市场指数表现：
%s

宏观经济指标：
%s

热门行业板块：
%s

最新市场新闻：
%s

市场情绪指标：
%s

潜力股票：
%s

请分析以下方面：
1. 市场整体趋势和投资机会
2. 最具潜力的行业板块
3. 推荐关注的潜力股及理由
4. 风险提示

请用清晰的语言表达，避免使用任何特殊格式。`, sections[0], sections[1], sections[2], news, sections[3], sections[4]), nil
}
