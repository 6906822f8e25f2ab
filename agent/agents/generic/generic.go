package generic

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

// Agent produces the conversational reply for non-data intents. A single LLM
// attempt; failure surfaces upward instead of retrying.
type Agent struct {
	runner        compose.Runnable[map[string]any, *schema.Message]
	usage         *statsx.Registry
	historyWindow int
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, historyWindow int, usage *statsx.Registry) (*Agent, error) {
	runner, err := compileGenericGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile generic graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Agent{
		runner:        runner,
		usage:         usage,
		historyWindow: historyWindow,
	}, nil
}

func (a *Agent) Respond(ctx context.Context, convo contractx.ConversationContext) (string, error) {
	last, ok := convo.LastUserMessage()
	if !ok {
		return "", fmt.Errorf("%w: aucun message utilisateur", contractx.ErrValidation)
	}

	start := time.Now()
	out, err := a.runner.Invoke(ctx, map[string]any{
		"input": a.buildInput(convo, last),
	})
	if err != nil {
		a.usage.RecordInvocation(contractx.AgentGeneric, time.Since(start), true)
		return "", fmt.Errorf("%w: generic invoke: %v", contractx.ErrModelInvoke, err)
	}

	reply := strings.TrimSpace(out.Content)
	if reply == "" {
		a.usage.RecordInvocation(contractx.AgentGeneric, time.Since(start), true)
		return "", fmt.Errorf("%w: réponse générique vide", contractx.ErrModelInvoke)
	}

	a.usage.RecordInvocation(contractx.AgentGeneric, time.Since(start), false)
	return reply, nil
}

func (a *Agent) buildInput(convo contractx.ConversationContext, last contractx.Message) string {
	var b strings.Builder

	recent := convo.RecentMessages(a.historyWindow)
	if len(recent) > 1 {
		b.WriteString("HISTORIQUE DE CONVERSATION:\n")
		for _, msg := range recent[:len(recent)-1] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "MESSAGE: %s", last.Content)
	return b.String()
}

func compileGenericGraph(
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
		return nil, fmt.Errorf("add generic prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add generic model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add generic edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add generic edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add generic edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("generic.respond_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile generic graph: %w", err)
	}
	return runner, nil
}
