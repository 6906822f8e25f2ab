package analysis

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

func newTestAgent(t *testing.T, chatModel einomodel.BaseChatModel) *Agent {
	t.Helper()
	agent, err := New(context.Background(), chatModel, "Tu analyses des résultats.", 20, statsx.NewRegistry())
	if err != nil {
		t.Fatalf("failed to build agent: %v", err)
	}
	return agent
}

func testConvo() contractx.ConversationContext {
	return contractx.ConversationContext{
		RequestID:  "req-1",
		DocumentID: "doc-1",
		Messages: []contractx.Message{
			{Role: contractx.RoleUser, Content: "Quelle est la moyenne d'âge ?"},
		},
	}
}

func TestSummarizeEmptyResultSkipsModel(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{reply: "ne doit pas être appelé"}
	agent := newTestAgent(t, chatModel)

	reply, err := agent.Summarize(context.Background(), testConvo(),
		contractx.GeneratedQuery{SQL: "SELECT age FROM Data WHERE age > 200"},
		contractx.QueryOutcome{Success: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "aucun résultat") {
		t.Fatalf("expected empty-result reply, got %q", reply)
	}
	if chatModel.calls != 0 {
		t.Fatalf("model must not be invoked for empty results, got %d calls", chatModel.calls)
	}
}

func TestSummarizeSuccess(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{reply: "La moyenne d'âge est de 35 ans."}
	agent := newTestAgent(t, chatModel)

	outcome := contractx.QueryOutcome{
		Success: true,
		Rows:    []contractx.Row{{"moyenne_age": 35.0}},
		Columns: []string{"moyenne_age"},
	}
	reply, err := agent.Summarize(context.Background(), testConvo(),
		contractx.GeneratedQuery{SQL: "SELECT AVG(age) AS moyenne_age FROM Data"},
		outcome,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "La moyenne d'âge est de 35 ans." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	prompt := chatModel.inputs[0]
	for _, want := range []string{"moyenne_age", "NOMBRE TOTAL DE LIGNES: 1", "SELECT AVG(age)"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in prompt, got:\n%s", want, prompt)
		}
	}
}

func TestSummarizeRejectsFailedOutcome(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, &fakeChatModel{})
	_, err := agent.Summarize(context.Background(), testConvo(),
		contractx.GeneratedQuery{},
		contractx.ExecutionFailure("boom"),
	)
	if !errors.Is(err, contractx.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
}

func TestSummarizeModelError(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, &fakeChatModel{err: errors.New("timeout")})
	_, err := agent.Summarize(context.Background(), testConvo(),
		contractx.GeneratedQuery{SQL: "SELECT age FROM Data"},
		contractx.QueryOutcome{Success: true, Rows: []contractx.Row{{"age": 30}}},
	)
	if !errors.Is(err, contractx.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
}

func TestFormatRowsMarkdownTruncatesSample(t *testing.T) {
	t.Parallel()

	rows := make([]contractx.Row, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, contractx.Row{"nom": fmt.Sprintf("client-%d", i)})
	}

	text := formatRowsMarkdown([]string{"nom"}, rows, 20)
	if !strings.Contains(text, "... et 5 autres lignes") {
		t.Fatalf("expected truncation marker, got:\n%s", text)
	}
	if strings.Contains(text, "client-20") {
		t.Fatalf("rows past the sample must not be rendered:\n%s", text)
	}
}

func TestFormatRowsMarkdownTruncatesCells(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 50)
	text := formatRowsMarkdown([]string{"description"}, []contractx.Row{{"description": long}}, 20)
	if !strings.Contains(text, strings.Repeat("x", 30)+"...") {
		t.Fatalf("expected truncated cell, got:\n%s", text)
	}
	if strings.Contains(text, strings.Repeat("x", 31)) {
		t.Fatalf("cell exceeds limit:\n%s", text)
	}
}

func TestNumericSummary(t *testing.T) {
	t.Parallel()

	rows := []contractx.Row{
		{"age": 20.0, "ville": "Paris"},
		{"age": 40.0, "ville": "Lyon"},
	}
	summary := numericSummary([]string{"age", "ville"}, rows)
	if !strings.Contains(summary, "age: count=2 sum=60 avg=30 min=20 max=40") {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if strings.Contains(summary, "ville") {
		t.Fatalf("text column must not appear in numeric summary: %q", summary)
	}
}
