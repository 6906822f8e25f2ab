package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	nodex "github.com/Nicolassaint/grist-ai-api/agent/nodes"
)

func (o *Orchestrator) compileChatGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.PipelineState, error) {
			return nodex.ValidateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("route_intent",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PipelineState) (*nodex.PipelineState, error) {
			return nodex.RouteIntent(ctx, in, o.agents.Router(), o.usage)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node route_intent: %w", err)
	}

	if err := graph.AddLambdaNode("fetch_schema",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PipelineState) (*nodex.PipelineState, error) {
			return nodex.FetchSchema(ctx, in, o.schemas)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node fetch_schema: %w", err)
	}

	if err := graph.AddLambdaNode("run_sql",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PipelineState) (*nodex.PipelineState, error) {
			return nodex.RunSQL(ctx, in, o.agents.SQL())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_sql: %w", err)
	}

	if err := graph.AddLambdaNode("analyze_results",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PipelineState) (*nodex.PipelineState, error) {
			return nodex.AnalyzeResults(ctx, in, o.agents.Analysis())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node analyze_results: %w", err)
	}

	if err := graph.AddLambdaNode("run_generic",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PipelineState) (*nodex.PipelineState, error) {
			return nodex.RunGeneric(ctx, in, o.agents.Generic())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_generic: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PipelineState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.PipelineState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
			}
			if in.Decision.Intent == contractx.IntentDataRequest {
				return "fetch_schema", nil
			}
			return "run_generic", nil
		},
		map[string]bool{
			"fetch_schema": true,
			"run_generic":  true,
		},
	)

	if err := graph.AddBranch("route_intent", branch); err != nil {
		return nil, fmt.Errorf("add intent branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "route_intent"},
		{"fetch_schema", "run_sql"},
		{"run_sql", "analyze_results"},
		{"analyze_results", "finalize_reply"},
		{"run_generic", "finalize_reply"},
		{"finalize_reply", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_chat"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
