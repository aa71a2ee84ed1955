package advisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/artifact"
	"github.com/leofalp/agentflow/providers/cache/inmemory"
	"github.com/leofalp/agentflow/providers/market"
)

type fakeModel struct {
	mu      sync.Mutex
	err     error
	prompts []string
	options []gateway.Options
}

func (model *fakeModel) Complete(_ context.Context, prompt string, options gateway.Options) (string, error) {
	model.mu.Lock()
	defer model.mu.Unlock()
	model.prompts = append(model.prompts, prompt)
	model.options = append(model.options, options)
	return "建议持有", model.err
}

type countingSource struct {
	market.DataSource
	fundamentals atomic.Int32
}

func (source *countingSource) Fundamentals(ctx context.Context, symbol string) (market.Fundamentals, error) {
	source.fundamentals.Add(1)
	return source.DataSource.Fundamentals(ctx, symbol)
}

func synthetic() *market.Synthetic {
	return market.NewSynthetic(9, time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC))
}

func TestValuationStatus(t *testing.T) {
	assert.Equal(t, ValuationUnknown, ValuationStatus(0))
	assert.Equal(t, ValuationUnknown, ValuationStatus(-4))
	assert.Equal(t, ValuationOvervalued, ValuationStatus(30.5))
	assert.Equal(t, ValuationFair, ValuationStatus(30))
	assert.Equal(t, ValuationFair, ValuationStatus(15))
	assert.Equal(t, ValuationUndervalued, ValuationStatus(14.9))
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskUnknown, RiskLevel(0))
	assert.Equal(t, RiskHigh, RiskLevel(1.6))
	assert.Equal(t, RiskMedium, RiskLevel(1.5))
	assert.Equal(t, RiskMedium, RiskLevel(0.5))
	assert.Equal(t, RiskLow, RiskLevel(0.4))
}

func TestAdvisor_ProducesAdviceAndCharts(t *testing.T) {
	model := &fakeModel{}
	advisor := New(synthetic(), model)

	payload, err := advisor.Execute(context.Background(), capability.Config{
		"symbols":           "apple, Nvidia",
		"riskLevel":         "aggressive",
		"investmentHorizon": "long",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "建议持有", payload["advice"])
	assert.Equal(t, []string{"AAPL", "NVDA"}, payload["analyzed_symbols"])

	profiles := payload["fundamentals"].(map[string]Profile)
	require.Contains(t, profiles, "NVDA")
	assert.Equal(t, "NVIDIA Corporation", profiles["NVDA"].Name)
	assert.Equal(t, ValuationStatus(profiles["NVDA"].PE), profiles["NVDA"].ValuationStatus)
	assert.Equal(t, RiskLevel(profiles["NVDA"].Beta), profiles["NVDA"].RiskLevel)

	charts := payload["charts"].([]artifact.Chart)
	require.Len(t, charts, 2)
	assert.Equal(t, "股票价格相对变化", charts[0].Title)
	for _, dataset := range charts[0].Datasets {
		assert.Equal(t, 100.0, dataset.Data[0])
	}
	assert.Equal(t, []string{"AAPL", "NVDA"}, charts[1].Labels)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "投资者风险偏好: aggressive")
	assert.Contains(t, model.prompts[0], "投资期限: long")
	assert.Contains(t, model.prompts[0], "AAPL (Apple Inc.)")
	assert.Equal(t, systemPrompt, model.options[0].SystemPrompt)
}

func TestAdvisor_UpdatesRecentSearches(t *testing.T) {
	ctx := capability.WithState(context.Background(), capability.State{
		"recentSearches": []any{"MSFT", "TSLA"},
	})

	payload, err := New(synthetic(), &fakeModel{}).Execute(ctx, capability.Config{"symbols": "AAPL,MSFT"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT", "AAPL", "TSLA"}, payload["recentSearches"])
}

func TestAdvisor_ServesFundamentalsFromCache(t *testing.T) {
	source := &countingSource{DataSource: synthetic()}
	cached := market.NewCached(source, inmemory.New(), time.Minute)
	advisor := New(cached, &fakeModel{})

	for range 3 {
		_, err := advisor.Execute(context.Background(), capability.Config{"symbols": "AAPL,GOOGL"}, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), source.fundamentals.Load())
}

func TestAdvisor_NoUsableSymbols(t *testing.T) {
	model := &fakeModel{}

	_, err := New(synthetic(), model).Execute(context.Background(), capability.Config{"symbols": "??"}, nil)

	assert.ErrorIs(t, err, market.ErrNoData)
	assert.Empty(t, model.prompts)
}

func TestAdvisor_PropagatesModelError(t *testing.T) {
	modelErr := errors.New("quota exceeded")

	_, err := New(synthetic(), &fakeModel{err: modelErr}).Execute(context.Background(), capability.Config{"symbols": "AAPL"}, nil)

	assert.ErrorIs(t, err, modelErr)
}
