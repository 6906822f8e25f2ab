package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

const schemaFailureText = "Je n'ai pas pu accéder aux données de votre document. " +
	"Vérifiez que le document contient des tables accessibles et réessayez."

func FetchSchema(
	ctx context.Context,
	in *PipelineState,
	provider contractx.SchemaProvider,
) (*PipelineState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
	}
	if in.Failed() {
		return in, nil
	}

	snapshot, err := provider.Fetch(ctx, in.Convo.DocumentID, in.Convo.RequestID)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", in.Convo.RequestID).
			Str("document_id", in.Convo.DocumentID).
			Msg("échec de la récupération des schémas")

		in.ErrMsg = err.Error()
		in.AgentUsed = contractx.AgentSQL
		in.ResponseText = schemaFailureText
		in.AddTrace("fetch_schema:failed")
		return in, nil
	}

	in.Schema = snapshot
	in.AddTrace("fetch_schema")
	return in, nil
}
