package contract

import "strings"

// Agent names as they appear in responses, stats and logs.
const (
	AgentRouter       = "router"
	AgentGeneric      = "generic"
	AgentSQL          = "sql"
	AgentAnalysis     = "analysis"
	AgentOrchestrator = "orchestrator"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ConversationContext is the immutable per-request input shared by every
// pipeline stage. Stages derive values from it but never rewrite messages.
type ConversationContext struct {
	RequestID  string    `json:"request_id"`
	DocumentID string    `json:"document_id"`
	Messages   []Message `json:"messages"`
}

// LastUserMessage returns the most recent user message, if any.
func (c ConversationContext) LastUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// RecentMessages returns at most limit trailing messages.
func (c ConversationContext) RecentMessages(limit int) []Message {
	if limit <= 0 || len(c.Messages) <= limit {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-limit:]
}

type ColumnSchema struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Formula     string `json:"formula,omitempty"`
	Description string `json:"description,omitempty"`
}

type TableSchema struct {
	TableID string         `json:"table_id"`
	Columns []ColumnSchema `json:"columns"`
}

// SchemaSnapshot is the table/column/type description of a document at the
// moment it was fetched. Queries are only valid against the snapshot they
// were generated from; snapshots are never cached across requests.
type SchemaSnapshot struct {
	Tables []TableSchema `json:"tables"`
}

func (s SchemaSnapshot) IsEmpty() bool {
	return len(s.Tables) == 0
}

func (s SchemaSnapshot) HasTable(name string) bool {
	for _, t := range s.Tables {
		if strings.EqualFold(t.TableID, name) {
			return true
		}
	}
	return false
}

// HasColumn reports whether any table in the snapshot declares the column,
// either by id or by label.
func (s SchemaSnapshot) HasColumn(name string) bool {
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			if strings.EqualFold(c.ID, name) || strings.EqualFold(c.Label, name) {
				return true
			}
		}
	}
	return false
}

type Intent string

const (
	IntentDataRequest Intent = "data_query"
	IntentGeneric     Intent = "generic"
)

// RoutingDecision is produced exactly once per request and never revised.
type RoutingDecision struct {
	Intent    Intent `json:"intent"`
	Rationale string `json:"rationale,omitempty"`
}

// GeneratedQuery ties a query text to the schema snapshot it was generated
// against and the number of generation attempts it took.
type GeneratedQuery struct {
	SQL      string         `json:"sql"`
	Schema   SchemaSnapshot `json:"-"`
	Attempts int            `json:"attempts"`
}

type Row = map[string]any

type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureSchemaFetch   FailureKind = "schema_fetch"
	FailureSQLValidation FailureKind = "sql_validation"
	FailureSQLExecution  FailureKind = "sql_execution"
)

// QueryOutcome is terminal: once returned it is surfaced, never retried.
type QueryOutcome struct {
	Success bool        `json:"success"`
	Rows    []Row       `json:"data"`
	Columns []string    `json:"columns"`
	Err     string      `json:"error,omitempty"`
	Kind    FailureKind `json:"-"`
}

func (o QueryOutcome) RowCount() int {
	return len(o.Rows)
}

func ExecutionFailure(msg string) QueryOutcome {
	return QueryOutcome{Success: false, Err: msg, Kind: FailureSQLExecution}
}

func ValidationFailure(msg string) QueryOutcome {
	return QueryOutcome{Success: false, Err: msg, Kind: FailureSQLValidation}
}

// AgentResponse is the single unit returned to the caller per request,
// regardless of how many internal retries occurred.
type AgentResponse struct {
	Response     string  `json:"response"`
	AgentUsed    string  `json:"agent_used"`
	SQLQuery     *string `json:"sql_query"`
	DataAnalyzed bool    `json:"data_analyzed"`
	Error        *string `json:"error"`
}
