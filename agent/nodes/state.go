package pipelinenode

import (
	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

// GraphInput is the raw chat request handed to the pipeline graph.
type GraphInput struct {
	DocumentID string
	Messages   []contractx.Message
	RequestID  string
}

// GraphOutput is the final agent reply returned to the caller.
type GraphOutput = contractx.AgentResponse

// PipelineState flows through the graph nodes. Domain failures ride in
// ErrMsg so downstream nodes can skip themselves and finalize_reply can
// build the failure response; Go errors are reserved for infrastructure
// faults that abort the graph.
type PipelineState struct {
	Convo contractx.ConversationContext

	Decision contractx.RoutingDecision
	Schema   contractx.SchemaSnapshot
	Query    contractx.GeneratedQuery
	Outcome  contractx.QueryOutcome

	ResponseText string
	AgentUsed    string
	DataAnalyzed bool
	ErrMsg       string

	Trace []string
}

func (s *PipelineState) AddTrace(step string) {
	s.Trace = append(s.Trace, step)
}

// Failed reports whether an upstream node already produced the final
// failure response.
func (s *PipelineState) Failed() bool {
	return s.ErrMsg != ""
}
