package pipelinenode

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

func FinalizeReply(in *PipelineState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
	}

	log.Debug().
		Str("request_id", in.Convo.RequestID).
		Str("trace", strings.Join(in.Trace, " -> ")).
		Msg("parcours du pipeline")

	response := strings.TrimSpace(in.ResponseText)
	if response == "" {
		return GraphOutput{}, fmt.Errorf("%w: empty pipeline response", contractx.ErrValidation)
	}

	agentUsed := in.AgentUsed
	if agentUsed == "" {
		agentUsed = contractx.AgentOrchestrator
	}

	out := GraphOutput{
		Response:     response,
		AgentUsed:    agentUsed,
		DataAnalyzed: in.DataAnalyzed,
	}
	if in.Query.SQL != "" {
		sql := in.Query.SQL
		out.SQLQuery = &sql
	}
	if in.ErrMsg != "" {
		errMsg := in.ErrMsg
		out.Error = &errMsg
	}
	return out, nil
}
