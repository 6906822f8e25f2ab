package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

// Agent classifies a conversation into one of the two intents with a single
// LLM call. Classification never fails a well-formed request: an unusable or
// erroring completion falls back to the generic intent.
type Agent struct {
	runner        compose.Runnable[map[string]any, *schema.Message]
	usage         *statsx.Registry
	historyWindow int
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, historyWindow int, usage *statsx.Registry) (*Agent, error) {
	runner, err := compileRouterGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Agent{
		runner:        runner,
		usage:         usage,
		historyWindow: historyWindow,
	}, nil
}

func (a *Agent) Classify(ctx context.Context, convo contractx.ConversationContext) (contractx.RoutingDecision, error) {
	last, ok := convo.LastUserMessage()
	if !ok {
		return contractx.RoutingDecision{}, fmt.Errorf("%w: aucun message utilisateur", contractx.ErrValidation)
	}

	start := time.Now()
	out, err := a.runner.Invoke(ctx, map[string]any{
		"input": a.buildInput(convo, last),
	})
	if err != nil {
		// Fail-open: a wrong generic answer is safer than a blocked request.
		a.usage.RecordInvocation(contractx.AgentRouter, time.Since(start), true)
		log.Warn().
			Str("request_id", convo.RequestID).
			Err(err).
			Msg("classification indisponible, repli sur generic")
		return contractx.RoutingDecision{
			Intent:    contractx.IntentGeneric,
			Rationale: "classification indisponible, repli sur generic",
		}, nil
	}

	decision := parseDecision(out.Content)
	a.usage.RecordInvocation(contractx.AgentRouter, time.Since(start), false)

	log.Debug().
		Str("request_id", convo.RequestID).
		Str("intent", string(decision.Intent)).
		Msg("intention classifiée")

	return decision, nil
}

func (a *Agent) buildInput(convo contractx.ConversationContext, last contractx.Message) string {
	var b strings.Builder

	recent := convo.RecentMessages(a.historyWindow)
	if len(recent) > 1 {
		b.WriteString("Contexte récent:\n")
		for _, msg := range recent[:len(recent)-1] {
			content := msg.Content
			if len(content) > 100 {
				content = content[:100]
			}
			fmt.Fprintf(&b, "- %s: %s\n", msg.Role, content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Message à router: %s", last.Content)
	return b.String()
}

// parseDecision maps the completion onto exactly one intent, defaulting to
// generic when the text is ambiguous or malformed.
func parseDecision(completion string) contractx.RoutingDecision {
	normalized := strings.ToLower(strings.TrimSpace(completion))

	if strings.Contains(normalized, string(contractx.IntentDataRequest)) {
		return contractx.RoutingDecision{Intent: contractx.IntentDataRequest, Rationale: normalized}
	}
	if strings.Contains(normalized, string(contractx.IntentGeneric)) {
		return contractx.RoutingDecision{Intent: contractx.IntentGeneric, Rationale: normalized}
	}
	return contractx.RoutingDecision{
		Intent:    contractx.IntentGeneric,
		Rationale: "réponse ambiguë, repli sur generic: " + normalized,
	}
}

func compileRouterGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add router prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add router model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add router edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add router edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add router edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.classify_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}
