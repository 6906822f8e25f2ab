package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

func RunGeneric(
	ctx context.Context,
	in *PipelineState,
	generic contractx.Generic,
) (*PipelineState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
	}
	if in.Failed() {
		return in, nil
	}

	reply, err := generic.Respond(ctx, in.Convo)
	if err != nil {
		return nil, err
	}

	in.ResponseText = reply
	in.AgentUsed = contractx.AgentGeneric
	in.AddTrace("run_generic")
	return in, nil
}
