package sqlagent

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

// Agent turns the latest data request plus a schema snapshot into a
// validated read-only query and executes it. Generation is retried up to
// maxAttempts with the validation failure fed back as corrective feedback;
// execution failures are surfaced, never regenerated.
type Agent struct {
	runner        compose.Runnable[map[string]any, *schema.Message]
	executor      contractx.QueryExecutor
	usage         *statsx.Registry
	maxAttempts   int
	historyWindow int
}

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	executor contractx.QueryExecutor,
	maxAttempts int,
	historyWindow int,
	usage *statsx.Registry,
) (*Agent, error) {
	if executor == nil {
		return nil, fmt.Errorf("%w: query executor is required", contractx.ErrValidation)
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	runner, err := compileSQLGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile sql graph: %v", contractx.ErrModelInvoke, err)
	}

	return &Agent{
		runner:        runner,
		executor:      executor,
		usage:         usage,
		maxAttempts:   maxAttempts,
		historyWindow: historyWindow,
	}, nil
}

func (a *Agent) GenerateAndExecute(
	ctx context.Context,
	convo contractx.ConversationContext,
	snapshot contractx.SchemaSnapshot,
) (contractx.GeneratedQuery, contractx.QueryOutcome, error) {
	last, ok := convo.LastUserMessage()
	if !ok {
		return contractx.GeneratedQuery{}, contractx.QueryOutcome{}, fmt.Errorf("%w: aucun message utilisateur", contractx.ErrValidation)
	}

	start := time.Now()
	schemasText := formatSchemaForPrompt(snapshot)
	feedback := ""

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		out, err := a.runner.Invoke(ctx, map[string]any{
			"schemas": schemasText,
			"input":   a.buildInput(convo, last, feedback),
		})
		if err != nil {
			a.usage.RecordInvocation(contractx.AgentSQL, time.Since(start), true)
			return contractx.GeneratedQuery{Schema: snapshot, Attempts: attempt},
				contractx.QueryOutcome{},
				fmt.Errorf("%w: sql generation invoke: %v", contractx.ErrModelInvoke, err)
		}

		candidate := extractSQL(out.Content)
		if candidate == "" {
			feedback = fmt.Errorf("%w: attendu un bloc ```sql", contractx.ErrSQLGeneration).Error()
			log.Warn().
				Str("request_id", convo.RequestID).
				Int("attempt", attempt).
				Msg("aucune requête SQL extraite de la réponse")
			continue
		}

		if err := validateQuery(candidate, snapshot); err != nil {
			feedback = err.Error()
			log.Warn().
				Str("request_id", convo.RequestID).
				Int("attempt", attempt).
				Str("sql_query", candidate).
				Str("reason", feedback).
				Msg("requête SQL rejetée par la validation")
			continue
		}

		query := contractx.GeneratedQuery{SQL: candidate, Schema: snapshot, Attempts: attempt}

		outcome, err := a.executor.Run(ctx, convo.DocumentID, candidate, convo.RequestID)
		if err != nil {
			a.usage.RecordInvocation(contractx.AgentSQL, time.Since(start), true)
			return query, contractx.QueryOutcome{}, err
		}

		a.usage.RecordInvocation(contractx.AgentSQL, time.Since(start), !outcome.Success)
		return query, outcome, nil
	}

	// Bound exhausted: terminal validation failure, the executor is never
	// invoked with an unvalidated query.
	a.usage.RecordInvocation(contractx.AgentSQL, time.Since(start), true)
	outcome := contractx.ValidationFailure(fmt.Sprintf(
		"impossible de générer une requête SQL sûre après %d tentatives: %s",
		a.maxAttempts, feedback,
	))
	return contractx.GeneratedQuery{Schema: snapshot, Attempts: a.maxAttempts}, outcome, nil
}

func (a *Agent) buildInput(convo contractx.ConversationContext, last contractx.Message, feedback string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "QUESTION UTILISATEUR: %s\n\n", last.Content)

	b.WriteString("CONTEXTE CONVERSATIONNEL:\n")
	recent := convo.RecentMessages(a.historyWindow)
	if len(recent) > 1 {
		for _, msg := range recent[:len(recent)-1] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	} else {
		b.WriteString("Aucun contexte précédent\n")
	}

	if feedback != "" {
		fmt.Fprintf(&b, "\nLA TENTATIVE PRÉCÉDENTE A ÉTÉ REJETÉE: %s\nCorrige la requête en respectant strictement les schémas fournis.", feedback)
	}

	return b.String()
}

// formatSchemaForPrompt renders the snapshot as the markdown tables the
// generation prompt expects.
func formatSchemaForPrompt(snapshot contractx.SchemaSnapshot) string {
	if snapshot.IsEmpty() {
		return "Aucune table disponible dans ce document."
	}

	var b strings.Builder
	for _, table := range snapshot.Tables {
		fmt.Fprintf(&b, "## Table: %s\n", table.TableID)
		b.WriteString("| Colonne | Type | Description |\n")
		b.WriteString("|---------|------|-------------|\n")
		for _, col := range table.Columns {
			description := col.Description
			if description == "" {
				description = col.Formula
			}
			if description == "" {
				description = "Aucune description"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", col.Label, col.Type, description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func compileSQLGraph(
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
		return nil, fmt.Errorf("add sql prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add sql model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add sql edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add sql edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add sql edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("sql.generate_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile sql graph: %w", err)
	}
	return runner, nil
}
