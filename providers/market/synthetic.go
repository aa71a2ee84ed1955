package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"regexp"
	"time"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9^=.\-]{1,12}$`)

type profile struct {
	name     string
	sector   string
	industry string
}

var knownProfiles = map[string]profile{
	"AAPL":  {"Apple Inc.", "Technology", "Consumer Electronics"},
	"GOOGL": {"Alphabet Inc.", "Communication Services", "Internet Content & Information"},
	"MSFT":  {"Microsoft Corporation", "Technology", "Software - Infrastructure"},
	"AMZN":  {"Amazon.com, Inc.", "Consumer Cyclical", "Internet Retail"},
	"META":  {"Meta Platforms, Inc.", "Communication Services", "Internet Content & Information"},
	"TSLA":  {"Tesla, Inc.", "Consumer Cyclical", "Auto Manufacturers"},
	"NFLX":  {"Netflix, Inc.", "Communication Services", "Entertainment"},
	"NVDA":  {"NVIDIA Corporation", "Technology", "Semiconductors"},
}

var fallbackSectors = []string{"Technology", "Financial Services", "Healthcare", "Energy", "Industrials", "Consumer Defensive"}

var headlineTemplates = []struct {
	format    string
	sentiment float64
}{
	{"%s beats quarterly earnings expectations", 0.6},
	{"Analysts raise price target on %s", 0.4},
	{"%s announces share buyback program", 0.3},
	{"%s holds steady as markets await rate decision", 0.0},
	{"Regulators open inquiry into %s", -0.5},
	{"%s shares slip on supply chain concerns", -0.3},
	{"%s unveils new product line", 0.2},
}

// Synthetic generates deterministic market data from a seed. The same seed,
// symbol and reference day always yield the same bars, so analyses are
// reproducible offline.
type Synthetic struct {
	seed      uint64
	reference time.Time
}

// Ensure Synthetic implements DataSource at compile time.
var _ DataSource = (*Synthetic)(nil)

// NewSynthetic returns a source whose data ends at reference. A zero
// reference selects the current UTC day.
func NewSynthetic(seed uint64, reference time.Time) *Synthetic {
	if reference.IsZero() {
		reference = time.Now().UTC()
	}
	reference = time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, time.UTC)
	return &Synthetic{seed: seed, reference: reference}
}

// Now returns the reference day.
func (s *Synthetic) Now() time.Time { return s.reference }

func (s *Synthetic) rng(symbol, stream string) *rand.Rand {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(symbol))
	_, _ = hash.Write([]byte{0})
	_, _ = hash.Write([]byte(stream))
	return rand.New(rand.NewPCG(s.seed, hash.Sum64()))
}

func validate(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w for symbol %q", ErrNoData, symbol)
	}
	return nil
}

// History walks backwards from the reference day, so the last n bars are the
// same whatever n is requested.
func (s *Synthetic) History(ctx context.Context, symbol string, days int) ([]Bar, error) {
	if err := validate(ctx, symbol); err != nil {
		return nil, err
	}
	if days <= 0 {
		return []Bar{}, nil
	}

	rng := s.rng(symbol, "history")
	price := 20 + rng.Float64()*480
	dailyVolatility := 0.008 + rng.Float64()*0.02
	baseVolume := 1e6 + rng.Float64()*4e7

	bars := make([]Bar, days)
	day := s.reference
	for index := days - 1; index >= 0; index-- {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, -1)
		}

		open := price * (1 + rng.NormFloat64()*dailyVolatility/2)
		high := math.Max(open, price) * (1 + rng.Float64()*dailyVolatility)
		low := math.Min(open, price) * (1 - rng.Float64()*dailyVolatility)
		bars[index] = Bar{
			Date:   day,
			Open:   Round(open, 2),
			High:   Round(high, 2),
			Low:    Round(low, 2),
			Close:  Round(price, 2),
			Volume: int64(baseVolume * (0.6 + rng.Float64()*0.8)),
		}

		price /= 1 + rng.NormFloat64()*dailyVolatility
		price = math.Max(price, 1)
		day = day.AddDate(0, 0, -1)
	}
	return bars, nil
}

// Fundamentals returns generated metrics; well-known tickers keep their
// company name and sector.
func (s *Synthetic) Fundamentals(ctx context.Context, symbol string) (Fundamentals, error) {
	if err := validate(ctx, symbol); err != nil {
		return Fundamentals{}, err
	}

	rng := s.rng(symbol, "fundamentals")
	company, known := knownProfiles[symbol]
	if !known {
		company = profile{
			name:     symbol + " Holdings",
			sector:   fallbackSectors[rng.IntN(len(fallbackSectors))],
			industry: "Diversified",
		}
	}

	pe := 8 + rng.Float64()*45
	return Fundamentals{
		Symbol:        symbol,
		Name:          company.name,
		Sector:        company.sector,
		Industry:      company.industry,
		MarketCap:     Round(5+rng.Float64()*2900, 2),
		Revenue:       Round(1+rng.Float64()*400, 2),
		PE:            Round(pe, 2),
		ForwardPE:     Round(pe*(0.75+rng.Float64()*0.3), 2),
		PriceToBook:   Round(1+rng.Float64()*40, 2),
		ProfitMargin:  Round(-5+rng.Float64()*40, 2),
		RevenueGrowth: Round(-10+rng.Float64()*45, 2),
		DividendYield: Round(rng.Float64()*3, 2),
		Beta:          Round(0.3+rng.Float64()*1.7, 2),
		DebtToEquity:  Round(rng.Float64()*200, 2),
		CurrentRatio:  Round(0.5+rng.Float64()*2.5, 2),
	}, nil
}

// News returns generated headlines, one per trading day back from the
// reference day.
func (s *Synthetic) News(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	if err := validate(ctx, symbol); err != nil {
		return nil, err
	}

	rng := s.rng(symbol, "news")
	items := make([]NewsItem, 0, limit)
	for index := 0; index < limit; index++ {
		template := headlineTemplates[rng.IntN(len(headlineTemplates))]
		published := s.reference.Add(-time.Duration(index*24+rng.IntN(12)) * time.Hour)
		items = append(items, NewsItem{
			Title:     fmt.Sprintf(template.format, symbol),
			Publisher: "Market Wire",
			Link:      fmt.Sprintf("https://news.example.com/%s/%d", symbol, published.Unix()),
			Published: published,
			Sentiment: Round(template.sentiment+rng.NormFloat64()*0.1, 2),
		})
	}
	return items, nil
}
