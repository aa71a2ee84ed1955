// Package agents registers the built-in capabilities: document generation,
// research, data analysis, stock analysis, investment advice, market reports
// and direct model queries. Each capability lives in its own subpackage; RegisterDefaults
// wires them into a registry under their node types and task aliases.
package agents

import (
	"errors"
	"fmt"
	"time"

	"github.com/leofalp/agentflow/agents/advisor"
	"github.com/leofalp/agentflow/agents/dataanalysis"
	"github.com/leofalp/agentflow/agents/document"
	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/agents/llm"
	"github.com/leofalp/agentflow/agents/marketreport"
	"github.com/leofalp/agentflow/agents/research"
	"github.com/leofalp/agentflow/agents/stocks"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/providers/artifact"
	"github.com/leofalp/agentflow/providers/market"
)

// Completer is the model interface the capabilities call.
type Completer = shared.Completer

// DefaultTimeouts bounds each capability when the configuration does not.
var DefaultTimeouts = map[string]time.Duration{
	document.Type:     2 * time.Minute,
	research.Type:     3 * time.Minute,
	dataanalysis.Type: 30 * time.Second,
	stocks.Type:       time.Minute,
	advisor.Type:      2 * time.Minute,
	marketreport.Type: 5 * time.Minute,
	llm.Type:          time.Minute,
}

// Dependencies are the collaborators shared by the built-in capabilities.
type Dependencies struct {
	Model  Completer
	Market market.DataSource

	// Artifacts persists documents and exported charts. Nil disables both.
	Artifacts *artifact.Store

	// Fetcher loads research sources. Nil ignores configured sources.
	Fetcher research.PageFetcher

	// Searcher backs the research webSearch option. Nil disables it.
	Searcher research.Searcher

	// Seed makes generated analysis data reproducible.
	Seed uint64

	// Timeouts overrides DefaultTimeouts per capability type.
	Timeouts map[string]time.Duration
}

func (deps Dependencies) validate() error {
	if deps.Model == nil {
		return errors.New("agents: a model is required")
	}
	if deps.Market == nil {
		return errors.New("agents: a market data source is required")
	}
	return nil
}

func (deps Dependencies) timeout(typeTag string) time.Duration {
	if timeout, ok := deps.Timeouts[typeTag]; ok && timeout > 0 {
		return timeout
	}
	return DefaultTimeouts[typeTag]
}

type builtin struct {
	typeTag  string
	alias    string
	template capability.Template
	handler  capability.Handler
}

// RegisterDefaults registers every built-in capability with its template,
// timeout and task alias, in catalog order.
func RegisterDefaults(registry *capability.Registry, deps Dependencies) error {
	if err := deps.validate(); err != nil {
		return err
	}

	builtins := []builtin{
		{document.Type, document.TaskName, document.Template, document.New(deps.Model, deps.Artifacts)},
		{research.Type, research.TaskName, research.Template, research.New(deps.Model, deps.Fetcher).WithSearcher(deps.Searcher)},
		{dataanalysis.Type, dataanalysis.TaskName, dataanalysis.Template, dataanalysis.New(deps.Seed, deps.Market, deps.Artifacts)},
		{stocks.Type, stocks.TaskName, stocks.Template, stocks.New(deps.Market, deps.Model)},
		{advisor.Type, advisor.TaskName, advisor.Template, advisor.New(deps.Market, deps.Model)},
		{marketreport.Type, marketreport.TaskName, marketreport.Template, marketreport.New(deps.Market, deps.Model)},
		{llm.Type, llm.TaskName, llm.Template, llm.New(deps.Model)},
	}

	for _, entry := range builtins {
		err := registry.Register(entry.typeTag, entry.handler,
			capability.WithTemplate(entry.template),
			capability.WithTimeout(deps.timeout(entry.typeTag)),
		)
		if err != nil {
			return fmt.Errorf("register %s: %w", entry.typeTag, err)
		}
		if err := registry.RegisterAlias(entry.alias, entry.typeTag); err != nil {
			return fmt.Errorf("register %s: %w", entry.alias, err)
		}
	}
	return nil
}
