package contract

import "context"

// Router classifies a conversation into one of the two intents. It never
// fails for a well-formed context: an unusable classification falls back to
// IntentGeneric.
type Router interface {
	Classify(ctx context.Context, convo ConversationContext) (RoutingDecision, error)
}

// Generic produces a conversational reply for non-data intents.
type Generic interface {
	Respond(ctx context.Context, convo ConversationContext) (string, error)
}

// SQL converts the latest data request plus a schema snapshot into a
// validated query and executes it. Validation exhaustion and execution
// failures come back inside the QueryOutcome; the error return is reserved
// for upstream model faults.
type SQL interface {
	GenerateAndExecute(ctx context.Context, convo ConversationContext, schema SchemaSnapshot) (GeneratedQuery, QueryOutcome, error)
}

// Analysis turns a successful query outcome into a short natural-language
// interpretation. It must only be invoked on successful outcomes.
type Analysis interface {
	Summarize(ctx context.Context, convo ConversationContext, query GeneratedQuery, outcome QueryOutcome) (string, error)
}

type Registry interface {
	Router() Router
	Generic() Generic
	SQL() SQL
	Analysis() Analysis
}

// SchemaProvider fetches the current column-typed schema for every table of
// a document.
type SchemaProvider interface {
	Fetch(ctx context.Context, documentID, requestID string) (SchemaSnapshot, error)
}

// QueryExecutor runs a validated read-only query. Ordinary SQL failures are
// data (a failed QueryOutcome), not errors; the error return only reports
// cancellation or programming faults.
type QueryExecutor interface {
	Run(ctx context.Context, documentID, sql, requestID string) (QueryOutcome, error)
}
