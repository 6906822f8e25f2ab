package pipelinenode

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	state, err := ValidateRequest(GraphInput{
		DocumentID: "doc-1",
		Messages:   []contractx.Message{{Role: contractx.RoleUser, Content: "Bonjour"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Convo.RequestID == "" {
		t.Fatalf("expected a generated request id")
	}
	if state.Convo.DocumentID != "doc-1" {
		t.Fatalf("unexpected document id: %q", state.Convo.DocumentID)
	}

	state, err = ValidateRequest(GraphInput{
		DocumentID: "doc-1",
		RequestID:  "req-42",
		Messages:   []contractx.Message{{Role: contractx.RoleUser, Content: "Bonjour"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Convo.RequestID != "req-42" {
		t.Fatalf("provided request id must be kept, got %q", state.Convo.RequestID)
	}
}

func TestValidateRequestRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []GraphInput{
		{DocumentID: "", Messages: []contractx.Message{{Role: contractx.RoleUser, Content: "x"}}},
		{DocumentID: "doc-1"},
		{DocumentID: "doc-1", Messages: []contractx.Message{{Role: contractx.RoleAssistant, Content: "x"}}},
	}
	for _, in := range cases {
		if _, err := ValidateRequest(in); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, err)
		}
	}
}

func TestFinalizeReply(t *testing.T) {
	t.Parallel()

	sql := "SELECT age FROM Data"
	state := &PipelineState{
		ResponseText: "La moyenne d'âge est de 35 ans.",
		AgentUsed:    contractx.AgentAnalysis,
		DataAnalyzed: true,
		Query:        contractx.GeneratedQuery{SQL: sql},
	}

	out, err := FinalizeReply(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SQLQuery == nil || *out.SQLQuery != sql {
		t.Fatalf("expected sql_query, got %v", out.SQLQuery)
	}
	if out.Error != nil {
		t.Fatalf("unexpected error field: %v", *out.Error)
	}

	state = &PipelineState{ResponseText: "Réponse", ErrMsg: "raison technique"}
	out, err = FinalizeReply(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.AgentUsed != contractx.AgentOrchestrator {
		t.Fatalf("expected orchestrator default, got %s", out.AgentUsed)
	}
	if out.Error == nil || *out.Error != "raison technique" {
		t.Fatalf("expected error field, got %v", out.Error)
	}
	if out.SQLQuery != nil {
		t.Fatalf("no sql was generated")
	}

	if _, err := FinalizeReply(&PipelineState{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty response, got %v", err)
	}
	if _, err := FinalizeReply(nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil state, got %v", err)
	}
}

type stubSQL struct {
	query   contractx.GeneratedQuery
	outcome contractx.QueryOutcome
	err     error
}

func (s stubSQL) GenerateAndExecute(ctx context.Context, convo contractx.ConversationContext, snapshot contractx.SchemaSnapshot) (contractx.GeneratedQuery, contractx.QueryOutcome, error) {
	return s.query, s.outcome, s.err
}

func TestRunSQLFailureTexts(t *testing.T) {
	t.Parallel()

	base := func() *PipelineState {
		state, err := ValidateRequest(GraphInput{
			DocumentID: "doc-1",
			Messages:   []contractx.Message{{Role: contractx.RoleUser, Content: "Combien ?"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return state
	}

	state, err := RunSQL(context.Background(), base(), stubSQL{
		query:   contractx.GeneratedQuery{Attempts: 3},
		outcome: contractx.ValidationFailure("table inconnue 'X'"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(state.ResponseText, "reformuler") {
		t.Fatalf("expected rephrase guidance, got %q", state.ResponseText)
	}

	state, err = RunSQL(context.Background(), base(), stubSQL{
		query:   contractx.GeneratedQuery{SQL: "SELECT x FROM Data", Attempts: 1},
		outcome: contractx.ExecutionFailure("Erreur HTTP 500: boom"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(state.ResponseText, "```sql\nSELECT x FROM Data\n```") {
		t.Fatalf("expected failing query shown, got %q", state.ResponseText)
	}

	_, err = RunSQL(context.Background(), base(), stubSQL{err: errors.New("invoke down")})
	if err == nil {
		t.Fatalf("infrastructure faults must abort the graph")
	}
}

func TestRunSQLSkipsAfterFailure(t *testing.T) {
	t.Parallel()

	state := &PipelineState{ErrMsg: "déjà en échec", ResponseText: "réponse d'échec"}
	got, err := RunSQL(context.Background(), state, stubSQL{err: errors.New("must not be called")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ResponseText != "réponse d'échec" {
		t.Fatalf("failed state must pass through unchanged, got %+v", got)
	}
}
