package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
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

const cellLimit = 30

// Agent summarizes successful query results in natural language. Empty
// result sets are answered directly without a model call.
type Agent struct {
	runner  compose.Runnable[map[string]any, *schema.Message]
	usage   *statsx.Registry
	maxRows int
}

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	maxRows int,
	usage *statsx.Registry,
) (*Agent, error) {
	if maxRows <= 0 {
		maxRows = 20
	}

	runner, err := compileAnalysisGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile analysis graph: %v", contractx.ErrModelInvoke, err)
	}

	return &Agent{runner: runner, usage: usage, maxRows: maxRows}, nil
}

func (a *Agent) Summarize(
	ctx context.Context,
	convo contractx.ConversationContext,
	query contractx.GeneratedQuery,
	outcome contractx.QueryOutcome,
) (string, error) {
	if !outcome.Success {
		return "", fmt.Errorf("%w: résultat non exploitable: %s", contractx.ErrAnalysis, outcome.Err)
	}

	if outcome.RowCount() == 0 {
		return "La requête n'a retourné aucun résultat. Il n'y a pas de données correspondant à votre demande.", nil
	}

	last, _ := convo.LastUserMessage()
	start := time.Now()

	out, err := a.runner.Invoke(ctx, map[string]any{
		"input": a.buildInput(last.Content, query, outcome),
	})
	if err != nil {
		a.usage.RecordInvocation(contractx.AgentAnalysis, time.Since(start), true)
		log.Error().
			Err(err).
			Str("request_id", convo.RequestID).
			Int("row_count", outcome.RowCount()).
			Msg("échec de l'analyse des résultats")
		return "", fmt.Errorf("%w: analysis invoke: %v", contractx.ErrAnalysis, err)
	}

	reply := strings.TrimSpace(out.Content)
	if reply == "" {
		a.usage.RecordInvocation(contractx.AgentAnalysis, time.Since(start), true)
		return "", fmt.Errorf("%w: réponse vide du modèle", contractx.ErrAnalysis)
	}

	a.usage.RecordInvocation(contractx.AgentAnalysis, time.Since(start), false)
	return reply, nil
}

func (a *Agent) buildInput(question string, query contractx.GeneratedQuery, outcome contractx.QueryOutcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)
	if query.SQL != "" {
		fmt.Fprintf(&b, "REQUÊTE EXÉCUTÉE:\n%s\n\n", query.SQL)
	}
	fmt.Fprintf(&b, "NOMBRE TOTAL DE LIGNES: %d\n\n", outcome.RowCount())

	b.WriteString("ÉCHANTILLON DES RÉSULTATS:\n")
	b.WriteString(formatRowsMarkdown(outcome.Columns, outcome.Rows, a.maxRows))

	if summary := numericSummary(outcome.Columns, outcome.Rows); summary != "" {
		b.WriteString("\nRÉSUMÉ NUMÉRIQUE:\n")
		b.WriteString(summary)
	}

	if outcome.RowCount() > a.maxRows {
		b.WriteString("\nNote: l'échantillon ci-dessus est partiel, appuie-toi sur le nombre total de lignes et le résumé numérique pour les agrégats.")
	}

	return b.String()
}

// formatRowsMarkdown renders at most maxRows rows as a markdown table,
// truncating long cells and flagging the rows left out.
func formatRowsMarkdown(columns []string, rows []contractx.Row, maxRows int) string {
	if len(rows) == 0 {
		return "(aucune ligne)\n"
	}
	if len(columns) == 0 {
		columns = columnsFromRow(rows[0])
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")

	separators := make([]string, len(columns))
	for i := range separators {
		separators[i] = "---"
	}
	b.WriteString("| " + strings.Join(separators, " | ") + " |\n")

	sample := rows
	if len(sample) > maxRows {
		sample = sample[:maxRows]
	}
	for _, row := range sample {
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, truncateCell(formatCell(row[col])))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	if remaining := len(rows) - len(sample); remaining > 0 {
		fmt.Fprintf(&b, "... et %d autres lignes\n", remaining)
	}
	return b.String()
}

func columnsFromRow(row contractx.Row) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncateCell(cell string) string {
	cell = strings.ReplaceAll(cell, "\n", " ")
	runes := []rune(cell)
	if len(runes) <= cellLimit {
		return cell
	}
	return string(runes[:cellLimit]) + "..."
}

// numericSummary computes count, sum, average, min and max for every column
// whose values are numeric, so aggregates stay exact even when the row
// sample is partial.
func numericSummary(columns []string, rows []contractx.Row) string {
	if len(rows) == 0 {
		return ""
	}
	if len(columns) == 0 {
		columns = columnsFromRow(rows[0])
	}

	var b strings.Builder
	for _, col := range columns {
		var (
			count    int
			sum      float64
			min, max float64
		)
		for _, row := range rows {
			value, ok := numericValue(row[col])
			if !ok {
				continue
			}
			if count == 0 {
				min, max = value, value
			} else {
				if value < min {
					min = value
				}
				if value > max {
					max = value
				}
			}
			sum += value
			count++
		}
		if count == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: count=%d sum=%s avg=%s min=%s max=%s\n",
			col,
			count,
			formatNumber(sum),
			formatNumber(sum/float64(count)),
			formatNumber(min),
			formatNumber(max),
		)
	}
	return b.String()
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func compileAnalysisGraph(
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
		return nil, fmt.Errorf("add analysis prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add analysis model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add analysis edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add analysis edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add analysis edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("analysis.summarize_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile analysis graph: %w", err)
	}
	return runner, nil
}
