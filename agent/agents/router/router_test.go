package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

type fakeChatModel struct {
	reply  string
	err    error
	calls  int
	inputs []string
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	for _, msg := range input {
		if msg.Role == schema.User {
			f.inputs = append(f.inputs, msg.Content)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func newTestRouter(t *testing.T, chatModel einomodel.BaseChatModel) *Agent {
	t.Helper()
	agent, err := New(context.Background(), chatModel, "Tu es un routeur.", 3, statsx.NewRegistry())
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return agent
}

func convoWith(messages ...contractx.Message) contractx.ConversationContext {
	return contractx.ConversationContext{
		RequestID:  "req-1",
		DocumentID: "doc-1",
		Messages:   messages,
	}
}

func TestClassifyDataRequest(t *testing.T) {
	t.Parallel()

	agent := newTestRouter(t, &fakeChatModel{reply: "data_query"})
	decision, err := agent.Classify(context.Background(), convoWith(
		contractx.Message{Role: contractx.RoleUser, Content: "Combien de lignes dans la table ?"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Intent != contractx.IntentDataRequest {
		t.Fatalf("expected data_query, got %s", decision.Intent)
	}
}

func TestClassifyGeneric(t *testing.T) {
	t.Parallel()

	agent := newTestRouter(t, &fakeChatModel{reply: "generic"})
	decision, err := agent.Classify(context.Background(), convoWith(
		contractx.Message{Role: contractx.RoleUser, Content: "Bonjour !"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Intent != contractx.IntentGeneric {
		t.Fatalf("expected generic, got %s", decision.Intent)
	}
}

func TestClassifyAmbiguousFallsBackToGeneric(t *testing.T) {
	t.Parallel()

	agent := newTestRouter(t, &fakeChatModel{reply: "je ne sais pas"})
	decision, err := agent.Classify(context.Background(), convoWith(
		contractx.Message{Role: contractx.RoleUser, Content: "???"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Intent != contractx.IntentGeneric {
		t.Fatalf("expected generic fallback, got %s", decision.Intent)
	}
	if !strings.Contains(decision.Rationale, "ambiguë") {
		t.Fatalf("expected fallback rationale, got %q", decision.Rationale)
	}
}

func TestClassifyModelErrorFailsOpen(t *testing.T) {
	t.Parallel()

	agent := newTestRouter(t, &fakeChatModel{err: fmt.Errorf("upstream down")})
	decision, err := agent.Classify(context.Background(), convoWith(
		contractx.Message{Role: contractx.RoleUser, Content: "Combien de clients ?"},
	))
	if err != nil {
		t.Fatalf("fail-open must not return an error, got %v", err)
	}
	if decision.Intent != contractx.IntentGeneric {
		t.Fatalf("expected generic on failure, got %s", decision.Intent)
	}
}

func TestClassifyRequiresUserMessage(t *testing.T) {
	t.Parallel()

	agent := newTestRouter(t, &fakeChatModel{reply: "generic"})
	_, err := agent.Classify(context.Background(), convoWith(
		contractx.Message{Role: contractx.RoleAssistant, Content: "Bonjour, comment puis-je aider ?"},
	))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestClassifyIncludesRecentContext(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{reply: "data_query"}
	agent := newTestRouter(t, chatModel)

	_, err := agent.Classify(context.Background(), convoWith(
		contractx.Message{Role: contractx.RoleUser, Content: "Montre-moi les ventes"},
		contractx.Message{Role: contractx.RoleAssistant, Content: "Voici les ventes."},
		contractx.Message{Role: contractx.RoleUser, Content: "Et par région ?"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chatModel.inputs) != 1 {
		t.Fatalf("expected one prompt, got %d", len(chatModel.inputs))
	}
	prompt := chatModel.inputs[0]
	if !strings.Contains(prompt, "Message à router: Et par région ?") {
		t.Fatalf("expected last message in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "Voici les ventes.") {
		t.Fatalf("expected context in prompt, got %q", prompt)
	}
}
