// Package market provides the price history, fundamentals and news that the
// stock, investment and market capabilities analyze. Capabilities depend on
// the [DataSource] interface; [Synthetic] is a deterministic offline source
// and [Cached] memoizes fundamentals through a [cache.Provider].
package market

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoData is returned when a source has nothing for a symbol.
var ErrNoData = errors.New("no market data")

// Bar is one trading day.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Fundamentals holds company metrics. MarketCap and Revenue are in billions;
// margins, growth and yield are percentages.
type Fundamentals struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	MarketCap     float64 `json:"marketCap"`
	Revenue       float64 `json:"revenue"`
	PE            float64 `json:"pe"`
	ForwardPE     float64 `json:"forwardPE"`
	PriceToBook   float64 `json:"priceToBook"`
	ProfitMargin  float64 `json:"profitMargin"`
	RevenueGrowth float64 `json:"revenueGrowth"`
	DividendYield float64 `json:"dividendYield"`
	Beta          float64 `json:"beta"`
	DebtToEquity  float64 `json:"debtToEquity"`
	CurrentRatio  float64 `json:"currentRatio"`
}

// NewsItem is one headline. Sentiment ranges from -1 (bearish) to 1 (bullish).
type NewsItem struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Publisher string    `json:"publisher"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
	Sentiment float64   `json:"sentiment"`
}

// DataSource supplies market data. Implementations must be safe for
// concurrent use.
type DataSource interface {
	// History returns up to days trading bars ending at the source clock,
	// oldest first.
	History(ctx context.Context, symbol string, days int) ([]Bar, error)

	// Fundamentals returns the latest company metrics.
	Fundamentals(ctx context.Context, symbol string) (Fundamentals, error)

	// News returns up to limit recent headlines, newest first.
	News(ctx context.Context, symbol string, limit int) ([]NewsItem, error)

	// Now is the reference time the data ends at.
	Now() time.Time
}

// DefaultSymbols are analyzed when a request names none.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// MaxSymbols bounds how many symbols one analysis covers.
const MaxSymbols = 5

var companySymbols = map[string]string{
	"APPLE":     "AAPL",
	"TESLA":     "TSLA",
	"MICROSOFT": "MSFT",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"AMAZON":    "AMZN",
	"META":      "META",
	"FACEBOOK":  "META",
	"NETFLIX":   "NFLX",
	"NVIDIA":    "NVDA",
}

// ResolveSymbol maps a company name to its ticker. Unknown inputs are
// returned upper-cased.
func ResolveSymbol(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if symbol, known := companySymbols[upper]; known {
		return symbol
	}
	return upper
}

// ResolveSymbols resolves every name, drops blanks and duplicates, and caps
// the result at MaxSymbols. An empty input yields DefaultSymbols.
func ResolveSymbols(names []string) []string {
	seen := make(map[string]bool, len(names))
	symbols := make([]string, 0, MaxSymbols)
	for _, name := range names {
		symbol := ResolveSymbol(name)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
		if len(symbols) == MaxSymbols {
			break
		}
	}
	if len(symbols) == 0 {
		return append([]string(nil), DefaultSymbols...)
	}
	return symbols
}

var periodDays = map[string]int{
	"5d":  5,
	"1mo": 22,
	"3mo": 66,
	"6mo": 126,
	"1y":  252,
	"2y":  504,
}

// DefaultPeriod is used when a request names no period or an unknown one.
const DefaultPeriod = "1mo"

// PeriodDays converts a period such as "1mo" or "6mo" to trading days.
func PeriodDays(period string) int {
	if days, known := periodDays[strings.ToLower(strings.TrimSpace(period))]; known {
		return days
	}
	return periodDays[DefaultPeriod]
}

// Closes extracts closing prices.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for index, bar := range bars {
		closes[index] = bar.Close
	}
	return closes
}

// Volumes extracts volumes as floats.
func Volumes(bars []Bar) []float64 {
	volumes := make([]float64, len(bars))
	for index, bar := range bars {
		volumes[index] = float64(bar.Volume)
	}
	return volumes
}

// Dates formats bar dates as YYYY-MM-DD labels.
func Dates(bars []Bar) []string {
	dates := make([]string, len(bars))
	for index, bar := range bars {
		dates[index] = bar.Date.Format(time.DateOnly)
	}
	return dates
}
