package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

func RouteIntent(
	ctx context.Context,
	in *PipelineState,
	router contractx.Router,
	usage *statsx.Registry,
) (*PipelineState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
	}

	decision, err := router.Classify(ctx, in.Convo)
	if err != nil {
		return nil, err
	}

	in.Decision = decision
	usage.RecordIntent(decision.Intent)
	in.AddTrace("route_intent:" + string(decision.Intent))

	log.Info().
		Str("request_id", in.Convo.RequestID).
		Str("document_id", in.Convo.DocumentID).
		Str("intent", string(decision.Intent)).
		Str("rationale", decision.Rationale).
		Msg("intention classifiée")

	return in, nil
}
