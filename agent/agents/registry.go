package agents

import (
	"context"
	"fmt"

	"github.com/Nicolassaint/grist-ai-api/agent/agents/analysis"
	"github.com/Nicolassaint/grist-ai-api/agent/agents/generic"
	"github.com/Nicolassaint/grist-ai-api/agent/agents/router"
	"github.com/Nicolassaint/grist-ai-api/agent/agents/sqlagent"
	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	llmx "github.com/Nicolassaint/grist-ai-api/agent/llm"
	promptx "github.com/Nicolassaint/grist-ai-api/agent/prompt"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

// Registry builds and holds the four specialized agents, each backed by its
// own chat model configuration.
type Registry struct {
	router   *router.Agent
	generic  *generic.Agent
	sql      *sqlagent.Agent
	analysis *analysis.Agent
}

func NewRegistry(
	ctx context.Context,
	cfg llmx.Config,
	executor contractx.QueryExecutor,
	usage *statsx.Registry,
) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	routerCfg := cfg.OpenRouterFor(contractx.AgentRouter)
	routerModel, err := routerCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build router model: %w", err)
	}
	routerAgent, err := router.New(ctx, routerModel, prompts.Router, cfg.RouterHistory, usage)
	if err != nil {
		return nil, fmt.Errorf("build router agent: %w", err)
	}

	genericCfg := cfg.OpenRouterFor(contractx.AgentGeneric)
	genericModel, err := genericCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build generic model: %w", err)
	}
	genericAgent, err := generic.New(ctx, genericModel, prompts.Generic, cfg.GenericHistory, usage)
	if err != nil {
		return nil, fmt.Errorf("build generic agent: %w", err)
	}

	sqlCfg := cfg.OpenRouterFor(contractx.AgentSQL)
	sqlModel, err := sqlCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build sql model: %w", err)
	}
	sqlAgent, err := sqlagent.New(ctx, sqlModel, prompts.SQL, executor, cfg.SQLMaxAttempts, cfg.SQLHistory, usage)
	if err != nil {
		return nil, fmt.Errorf("build sql agent: %w", err)
	}

	analysisCfg := cfg.OpenRouterFor(contractx.AgentAnalysis)
	analysisModel, err := analysisCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build analysis model: %w", err)
	}
	analysisAgent, err := analysis.New(ctx, analysisModel, prompts.Analysis, cfg.AnalysisMaxRows, usage)
	if err != nil {
		return nil, fmt.Errorf("build analysis agent: %w", err)
	}

	return &Registry{
		router:   routerAgent,
		generic:  genericAgent,
		sql:      sqlAgent,
		analysis: analysisAgent,
	}, nil
}

func (r *Registry) Router() contractx.Router     { return r.router }
func (r *Registry) Generic() contractx.Generic   { return r.generic }
func (r *Registry) SQL() contractx.SQL           { return r.sql }
func (r *Registry) Analysis() contractx.Analysis { return r.analysis }
