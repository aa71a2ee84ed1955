package marketreport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/providers/market"
)

type named struct {
	symbol string
	name   string
}

var indexSeries = []named{
	{"^GSPC", "S&P 500"},
	{"^DJI", "道琼斯工业平均指数"},
	{"^IXIC", "纳斯达克综合指数"},
	{"^VIX", "VIX波动率指数"},
	{"^TNX", "10年期国债收益率"},
	{"GC=F", "黄金期货"},
	{"CL=F", "原油期货"},
	{"EURUSD=X", "欧元/美元"},
}

var sectorETFs = []named{
	{"XLK", "Technology Select Sector SPDR"},
	{"XLF", "Financial Select Sector SPDR"},
	{"XLV", "Health Care Select Sector SPDR"},
	{"XLE", "Energy Select Sector SPDR"},
	{"XLI", "Industrial Select Sector SPDR"},
	{"XLC", "Communication Services Select Sector SPDR"},
	{"XLP", "Consumer Staples Select Sector SPDR"},
	{"XLY", "Consumer Discretionary Select Sector SPDR"},
	{"XLB", "Materials Select Sector SPDR"},
	{"XLRE", "Real Estate Select Sector SPDR"},
}

var macroSeries = []named{
	{"GDP", "GDP"},
	{"UNRATE", "失业率"},
	{"CPIAUCSL", "CPI通胀率"},
	{"FEDFUNDS", "联邦基金利率"},
	{"M2", "M2货币供应量"},
	{"INDPRO", "工业生产指数"},
}

// newsTickers are the broad-market funds whose headlines feed the news
// summary and news sentiment.
var newsTickers = []string{"SPY", "QQQ", "DIA"}

const (
	benchmark          = "SPY"
	headlinesPerTicker = 5
	maxHeadlines       = 10
	maxUniverse        = 50
	topCandidates      = 10
	minTotalScore      = 60
	screenWorkers      = 5
	sentimentBand      = 0.2
)

// DefaultUniverse is screened when the request names no candidates.
var DefaultUniverse = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA", "JPM", "V", "JNJ", "WMT", "PG", "MA", "UNH", "HD"}

// IndexMetrics summarizes one market index.
type IndexMetrics struct {
	Current       float64 `json:"current"`
	DailyChange   float64 `json:"daily_change"`
	MonthlyChange float64 `json:"monthly_change"`
	Volatility    float64 `json:"volatility"`
	SMA20Diff     float64 `json:"sma20_diff"`
	SMA50Diff     float64 `json:"sma50_diff"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
}

// SectorMetrics summarizes one sector ETF over a month.
type SectorMetrics struct {
	Change       float64 `json:"change"`
	VolumeChange float64 `json:"volume_change"`
}

// MacroIndicator is the latest reading of an economic series.
type MacroIndicator struct {
	Value  float64  `json:"value"`
	Change *float64 `json:"change"`
	Trend  string   `json:"trend"`
}

func histories(ctx context.Context, source market.DataSource, series []named, period string) ([]shared.History, map[string]string, error) {
	symbols := make([]string, len(series))
	names := make(map[string]string, len(series))
	for index, entry := range series {
		symbols[index] = entry.symbol
		names[entry.symbol] = entry.name
	}
	loaded, err := shared.FetchHistories(ctx, source, symbols, market.PeriodDays(period))
	return loaded, names, err
}

func (a *Analyzer) indices(ctx context.Context) (map[string]IndexMetrics, error) {
	loaded, names, err := histories(ctx, a.source, indexSeries, "6mo")
	if err != nil {
		return nil, fmt.Errorf("load index history: %w", err)
	}

	overview := make(map[string]IndexMetrics, len(loaded))
	for _, history := range loaded {
		closes := market.Closes(history.Bars)
		if len(closes) < 2 {
			continue
		}
		last := closes[len(closes)-1]
		monthAgo := closes[0]
		if len(closes) >= 22 {
			monthAgo = closes[len(closes)-22]
		}
		overview[names[history.Symbol]] = IndexMetrics{
			Current:       market.Round(last, 2),
			DailyChange:   market.Round(relative(last, closes[len(closes)-2]), 2),
			MonthlyChange: market.Round(relative(last, monthAgo), 2),
			Volatility:    market.Round(market.Volatility(closes), 2),
			SMA20Diff:     market.Round(relative(last, market.Last(market.SMA(closes, 20))), 2),
			SMA50Diff:     market.Round(relative(last, market.Last(market.SMA(closes, 50))), 2),
			RSI:           market.Round(market.Last(market.RSI(closes, 14)), 2),
			MACD:          market.Round(market.Last(market.MACDHistogram(closes)), 4),
		}
	}
	return overview, nil
}

func (a *Analyzer) sectors(ctx context.Context) (map[string]SectorMetrics, error) {
	loaded, names, err := histories(ctx, a.source, sectorETFs, "1mo")
	if err != nil {
		return nil, fmt.Errorf("load sector history: %w", err)
	}

	performance := make(map[string]SectorMetrics, len(loaded))
	for _, history := range loaded {
		volumes := market.Volumes(history.Bars)
		performance[names[history.Symbol]] = SectorMetrics{
			Change:       market.Round(market.Change(market.Closes(history.Bars)), 2),
			VolumeChange: market.Round(relative(market.Last(volumes), mean(volumes)), 2),
		}
	}
	return performance, nil
}

func (a *Analyzer) macro(ctx context.Context) (map[string]MacroIndicator, error) {
	indicators := make(map[string]MacroIndicator, len(macroSeries))
	for _, series := range macroSeries {
		bars, err := a.source.History(ctx, series.symbol, 2)
		if errors.Is(err, market.ErrNoData) || len(bars) == 0 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", series.symbol, err)
		}

		latest := bars[len(bars)-1].Close
		indicator := MacroIndicator{Value: market.Round(latest, 2), Trend: "neutral"}
		if len(bars) > 1 {
			previous := bars[len(bars)-2].Close
			change := market.Round(latest-previous, 2)
			indicator.Change = &change
			indicator.Trend = "down"
			if latest > previous {
				indicator.Trend = "up"
			}
		}
		indicators[series.name] = indicator
	}
	return indicators, nil
}

// headlines collects the newest broad-market headlines, newest first.
func (a *Analyzer) headlines(ctx context.Context) ([]market.NewsItem, error) {
	var collected []market.NewsItem
	for _, ticker := range newsTickers {
		items, err := a.source.News(ctx, ticker, headlinesPerTicker)
		if errors.Is(err, market.ErrNoData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load news for %s: %w", ticker, err)
		}
		collected = append(collected, items...)
	}
	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].Published.After(collected[j].Published)
	})
	if len(collected) > maxHeadlines {
		collected = collected[:maxHeadlines]
	}
	return collected, nil
}

// Candidate is a screened stock with its component scores.
type Candidate struct {
	Symbol      string             `json:"symbol"`
	Name        string             `json:"name"`
	Sector      string             `json:"sector"`
	Industry    string             `json:"industry"`
	Technical   TechnicalReadings  `json:"technical_indicators"`
	Momentum    MomentumReadings   `json:"momentum_indicators"`
	Fundamental FundamentalReading `json:"fundamental_indicators"`
	Scores      Scores             `json:"scores"`
	TotalScore  float64            `json:"total_score"`
}

type TechnicalReadings struct {
	RSI   float64 `json:"rsi"`
	MACD  float64 `json:"macd"`
	SMA20 float64 `json:"sma_20"`
	SMA50 float64 `json:"sma_50"`
	Close float64 `json:"close"`
}

type MomentumReadings struct {
	PriceMomentum  float64 `json:"price_momentum"`
	VolumeMomentum float64 `json:"volume_momentum"`
}

type FundamentalReading struct {
	PERatio       float64 `json:"pe_ratio"`
	PBRatio       float64 `json:"pb_ratio"`
	ProfitMargin  float64 `json:"profit_margin"`
	RevenueGrowth float64 `json:"revenue_growth"`
	DebtToEquity  float64 `json:"debt_to_equity"`
	CurrentRatio  float64 `json:"current_ratio"`
}

type Scores struct {
	Technical   int `json:"technical_score"`
	Momentum    int `json:"momentum_score"`
	Fundamental int `json:"fundamental_score"`
}

// screen scores every symbol of the universe concurrently and returns the
// best candidates reaching minTotalScore, highest first.
func (a *Analyzer) screen(ctx context.Context, universe []string) ([]Candidate, error) {
	scored := make([]*Candidate, len(universe))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(screenWorkers)
	for index, symbol := range universe {
		group.Go(func() error {
			candidate, err := a.evaluate(groupCtx, market.ResolveSymbol(symbol))
			if errors.Is(err, market.ErrNoData) {
				return nil
			}
			scored[index] = candidate
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("screen stocks: %w", err)
	}

	candidates := make([]Candidate, 0, len(universe))
	for _, candidate := range scored {
		if candidate != nil && candidate.TotalScore >= minTotalScore {
			candidates = append(candidates, *candidate)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})
	if len(candidates) > topCandidates {
		candidates = candidates[:topCandidates]
	}
	return candidates, nil
}

// evaluate scores one symbol. It returns nil without error when the symbol
// lacks enough history.
func (a *Analyzer) evaluate(ctx context.Context, symbol string) (*Candidate, error) {
	bars, err := a.source.History(ctx, symbol, market.PeriodDays("6mo"))
	if err != nil {
		return nil, err
	}
	if len(bars) < 50 {
		return nil, nil
	}
	fundamentals, err := a.source.Fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	closes := market.Closes(bars)
	volumes := market.Volumes(bars)
	technical := TechnicalReadings{
		RSI:   market.Last(market.RSI(closes, 14)),
		MACD:  market.Last(market.MACDHistogram(closes)),
		SMA20: market.Last(market.SMA(closes, 20)),
		SMA50: market.Last(market.SMA(closes, 50)),
		Close: market.Last(closes),
	}
	momentum := MomentumReadings{
		PriceMomentum:  relative(technical.Close, closes[len(closes)-20]),
		VolumeMomentum: relative(mean(volumes[len(volumes)-5:]), mean(volumes[len(volumes)-20:len(volumes)-5])),
	}
	fundamental := FundamentalReading{
		PERatio:       fundamentals.ForwardPE,
		PBRatio:       fundamentals.PriceToBook,
		ProfitMargin:  fundamentals.ProfitMargin,
		RevenueGrowth: fundamentals.RevenueGrowth,
		DebtToEquity:  fundamentals.DebtToEquity,
		CurrentRatio:  fundamentals.CurrentRatio,
	}
	scores := Scores{
		Technical:   technicalScore(technical),
		Momentum:    momentumScore(momentum),
		Fundamental: fundamentalScore(fundamental),
	}

	return &Candidate{
		Symbol:      symbol,
		Name:        fundamentals.Name,
		Sector:      fundamentals.Sector,
		Industry:    fundamentals.Industry,
		Technical:   roundTechnical(technical),
		Momentum:    MomentumReadings{PriceMomentum: market.Round(momentum.PriceMomentum, 2), VolumeMomentum: market.Round(momentum.VolumeMomentum, 2)},
		Fundamental: fundamental,
		Scores:      scores,
		TotalScore:  market.Round(float64(scores.Technical+scores.Momentum+scores.Fundamental)/3, 2),
	}, nil
}

func roundTechnical(readings TechnicalReadings) TechnicalReadings {
	return TechnicalReadings{
		RSI:   market.Round(readings.RSI, 2),
		MACD:  market.Round(readings.MACD, 4),
		SMA20: market.Round(readings.SMA20, 2),
		SMA50: market.Round(readings.SMA50, 2),
		Close: market.Round(readings.Close, 2),
	}
}

// technicalScore rates RSI (up to 20), MACD (up to 30) and the moving
// average alignment (up to 30).
func technicalScore(readings TechnicalReadings) int {
	score := 0
	switch rsi := readings.RSI; {
	case rsi >= 40 && rsi <= 60:
		score += 20
	case (rsi >= 30 && rsi < 40) || (rsi > 60 && rsi <= 70):
		score += 15
	case rsi < 30:
		score += 10
	}

	if readings.MACD > 0 {
		score += 15
		if readings.MACD > readings.Close*0.01 {
			score += 15
		}
	}

	switch {
	case readings.Close > readings.SMA20 && readings.SMA20 > readings.SMA50:
		score += 30
	case readings.Close > readings.SMA20:
		score += 15
	case readings.Close > readings.SMA50:
		score += 10
	}
	return min(score, 100)
}

func momentumScore(readings MomentumReadings) int {
	score := 0
	switch {
	case readings.PriceMomentum > 0:
		score += 25
	case readings.PriceMomentum > -5:
		score += 15
	}
	switch {
	case readings.VolumeMomentum > 0:
		score += 25
	case readings.VolumeMomentum > -10:
		score += 15
	}
	return score
}

func fundamentalScore(readings FundamentalReading) int {
	score := 0
	switch pe := readings.PERatio; {
	case pe > 0 && pe < 30:
		score += 20
	case pe >= 30 && pe < 50:
		score += 10
	}
	switch {
	case readings.ProfitMargin > 20:
		score += 20
	case readings.ProfitMargin > 10:
		score += 10
	}
	switch {
	case readings.RevenueGrowth > 20:
		score += 20
	case readings.RevenueGrowth > 10:
		score += 10
	}
	return score
}

// TechnicalSentiment reads the benchmark's momentum and trend.
type TechnicalSentiment struct {
	RSI         float64 `json:"rsi"`
	MACDSignal  string  `json:"macd_signal"`
	Trend       string  `json:"trend"`
	Volatility  float64 `json:"volatility"`
	VolumeTrend string  `json:"volume_trend"`
}

// NewsSentiment is the mean headline sentiment.
type NewsSentiment struct {
	Overall string  `json:"overall"`
	Score   float64 `json:"score"`
}

// Sentiment groups the sentiment readings.
type Sentiment struct {
	Technical *TechnicalSentiment `json:"technical"`
	News      NewsSentiment       `json:"news"`
}

func (a *Analyzer) sentiment(ctx context.Context, headlines []market.NewsItem) (Sentiment, error) {
	sentiment := Sentiment{News: newsSentiment(headlines)}

	bars, err := a.source.History(ctx, benchmark, market.PeriodDays("3mo"))
	if errors.Is(err, market.ErrNoData) {
		return sentiment, nil
	}
	if err != nil {
		return Sentiment{}, fmt.Errorf("load %s history: %w", benchmark, err)
	}
	if len(bars) >= 50 {
		technical := technicalSentiment(bars)
		sentiment.Technical = &technical
	}
	return sentiment, nil
}

func technicalSentiment(bars []market.Bar) TechnicalSentiment {
	closes := market.Closes(bars)
	volumes := market.Volumes(bars)
	last := market.Last(closes)
	sma20 := market.Last(market.SMA(closes, 20))
	sma50 := market.Last(market.SMA(closes, 50))

	readings := TechnicalSentiment{
		RSI:         market.Round(market.Last(market.RSI(closes, 14)), 2),
		MACDSignal:  "bearish",
		Trend:       "bearish",
		Volatility:  market.Round(averageTrueRange(bars, 14), 2),
		VolumeTrend: "down",
	}
	if market.Last(market.MACDHistogram(closes)) > 0 {
		readings.MACDSignal = "bullish"
	}
	if last > sma20 && sma20 > sma50 {
		readings.Trend = "bullish"
	}
	if market.Last(volumes) > market.Last(market.SMA(volumes, 20)) {
		readings.VolumeTrend = "up"
	}
	return readings
}

func newsSentiment(headlines []market.NewsItem) NewsSentiment {
	if len(headlines) == 0 {
		return NewsSentiment{Overall: "neutral"}
	}
	scores := make([]float64, len(headlines))
	for index, item := range headlines {
		scores[index] = item.Sentiment
	}
	average := mean(scores)

	overall := "neutral"
	switch {
	case average > sentimentBand:
		overall = "bullish"
	case average < -sentimentBand:
		overall = "bearish"
	}
	return NewsSentiment{Overall: overall, Score: market.Round(average, 2)}
}

// averageTrueRange is the mean true range over the last window bars.
func averageTrueRange(bars []market.Bar, window int) float64 {
	if len(bars) < 2 {
		return 0
	}
	start := max(len(bars)-window, 1)
	total := 0.0
	for index := start; index < len(bars); index++ {
		previousClose := bars[index-1].Close
		trueRange := math.Max(bars[index].High-bars[index].Low,
			math.Max(math.Abs(bars[index].High-previousClose), math.Abs(bars[index].Low-previousClose)))
		total += trueRange
	}
	return total / float64(len(bars)-start)
}

// relative is the percent difference of value over base; 0 when base is
// zero or undefined.
func relative(value, base float64) float64 {
	if base == 0 || math.IsNaN(base) {
		return 0
	}
	return (value/base - 1) * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}
