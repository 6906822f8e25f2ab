package sqlagent

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
	replies []string
	err     error
	calls   int
	inputs  []string
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
	idx := f.calls - 1
	if idx >= len(f.replies) {
		return nil, fmt.Errorf("no reply left at call=%d", f.calls)
	}
	return &schema.Message{Role: schema.Assistant, Content: f.replies[idx]}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

type fakeExecutor struct {
	outcome contractx.QueryOutcome
	err     error
	calls   int
	lastSQL string
}

func (f *fakeExecutor) Run(ctx context.Context, documentID string, sql string, requestID string) (contractx.QueryOutcome, error) {
	f.calls++
	f.lastSQL = sql
	if f.err != nil {
		return contractx.QueryOutcome{}, f.err
	}
	return f.outcome, nil
}

func newTestAgent(t *testing.T, chatModel einomodel.BaseChatModel, executor contractx.QueryExecutor) *Agent {
	t.Helper()
	agent, err := New(context.Background(), chatModel, "Tu es un expert SQL.\n\n{schemas}", executor, 3, 3, statsx.NewRegistry())
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

func TestGenerateAndExecuteRetriesUntilValid(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{
		replies: []string{
			"```sql\nSELECT age FROM Inconnue\n```",
			"```sql\nDELETE FROM Data\n```",
			"```sql\nSELECT AVG(age) AS moyenne_age FROM Data\n```",
		},
	}
	executor := &fakeExecutor{
		outcome: contractx.QueryOutcome{
			Success: true,
			Rows:    []contractx.Row{{"moyenne_age": 35.0}},
			Columns: []string{"moyenne_age"},
		},
	}

	agent := newTestAgent(t, chatModel, executor)
	query, outcome, err := agent.GenerateAndExecute(context.Background(), testConvo(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if query.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", query.Attempts)
	}
	if executor.calls != 1 {
		t.Fatalf("expected a single execution, got %d", executor.calls)
	}
	if executor.lastSQL != "SELECT AVG(age) AS moyenne_age FROM Data" {
		t.Fatalf("unexpected executed sql: %q", executor.lastSQL)
	}
	if !outcome.Success || outcome.RowCount() != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestGenerateAndExecuteFeedsRejectionBack(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{
		replies: []string{
			"```sql\nSELECT age FROM Inconnue\n```",
			"```sql\nSELECT age FROM Data\n```",
		},
	}
	executor := &fakeExecutor{outcome: contractx.QueryOutcome{Success: true}}

	agent := newTestAgent(t, chatModel, executor)
	if _, _, err := agent.GenerateAndExecute(context.Background(), testConvo(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chatModel.inputs) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(chatModel.inputs))
	}
	if !strings.Contains(chatModel.inputs[1], "Inconnue") {
		t.Fatalf("expected rejection reason in second prompt, got %q", chatModel.inputs[1])
	}
}

func TestGenerateAndExecuteExhaustsAttempts(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{
		replies: []string{
			"```sql\nSELECT x FROM Data\n```",
			"```sql\nSELECT y FROM Data\n```",
			"```sql\nSELECT z FROM Data\n```",
		},
	}
	executor := &fakeExecutor{}

	agent := newTestAgent(t, chatModel, executor)
	query, outcome, err := agent.GenerateAndExecute(context.Background(), testConvo(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if executor.calls != 0 {
		t.Fatalf("executor must never run an unvalidated query, got %d calls", executor.calls)
	}
	if query.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", query.Attempts)
	}
	if outcome.Success || outcome.Kind != contractx.FailureSQLValidation {
		t.Fatalf("expected validation failure, got %+v", outcome)
	}
	if !strings.Contains(outcome.Err, "3 tentatives") {
		t.Fatalf("expected attempt count in reason, got %q", outcome.Err)
	}
}

func TestGenerateAndExecuteDoesNotRetryExecutionFailure(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{
		replies: []string{"```sql\nSELECT age FROM Data\n```"},
	}
	executor := &fakeExecutor{
		outcome: contractx.ExecutionFailure("Erreur HTTP 500: boom"),
	}

	agent := newTestAgent(t, chatModel, executor)
	query, outcome, err := agent.GenerateAndExecute(context.Background(), testConvo(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chatModel.calls != 1 {
		t.Fatalf("execution failure must not trigger regeneration, got %d model calls", chatModel.calls)
	}
	if outcome.Kind != contractx.FailureSQLExecution {
		t.Fatalf("expected execution failure, got %+v", outcome)
	}
	if query.SQL != "SELECT age FROM Data" {
		t.Fatalf("expected generated sql to survive, got %q", query.SQL)
	}
}

func TestGenerateAndExecuteModelError(t *testing.T) {
	t.Parallel()

	chatModel := &fakeChatModel{err: errors.New("rate limited")}
	executor := &fakeExecutor{}

	agent := newTestAgent(t, chatModel, executor)
	_, _, err := agent.GenerateAndExecute(context.Background(), testConvo(), testSnapshot())
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
	if executor.calls != 0 {
		t.Fatalf("executor must not run on model error")
	}
}

func TestFormatSchemaForPrompt(t *testing.T) {
	t.Parallel()

	text := formatSchemaForPrompt(testSnapshot())
	for _, want := range []string{"## Table: Data", "| Age | Numeric |", "## Table: Clients"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in schema prompt, got:\n%s", want, text)
		}
	}

	empty := formatSchemaForPrompt(contractx.SchemaSnapshot{})
	if !strings.Contains(empty, "Aucune table") {
		t.Fatalf("unexpected empty snapshot rendering: %q", empty)
	}
}
