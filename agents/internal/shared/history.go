package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/agentflow/providers/market"
)

// maxParallelFetches bounds concurrent data-source calls per node.
const maxParallelFetches = 4

// History is the price history of one symbol.
type History struct {
	Symbol string
	Bars   []market.Bar
}

// FetchHistories loads days bars for every symbol concurrently. Results keep
// the order of symbols; symbols without data are skipped. Any other error
// aborts the whole fetch.
func FetchHistories(ctx context.Context, source market.DataSource, symbols []string, days int) ([]History, error) {
	fetched := make([][]market.Bar, len(symbols))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelFetches)
	for index, symbol := range symbols {
		group.Go(func() error {
			bars, err := source.History(groupCtx, symbol, days)
			if errors.Is(err, market.ErrNoData) {
				return nil
			}
			fetched[index] = bars
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	histories := make([]History, 0, len(symbols))
	for index, bars := range fetched {
		if len(bars) > 0 {
			histories = append(histories, History{Symbol: symbols[index], Bars: bars})
		}
	}
	return histories, nil
}

// NoData reports that none of the requested symbols had data.
func NoData(symbols []string) error {
	return fmt.Errorf("%w for %s", market.ErrNoData, strings.Join(symbols, ", "))
}
