package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

func AnalyzeResults(
	ctx context.Context,
	in *PipelineState,
	analysis contractx.Analysis,
) (*PipelineState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
	}
	if in.Failed() || !in.Outcome.Success {
		return in, nil
	}

	summary, err := analysis.Summarize(ctx, in.Convo, in.Query, in.Outcome)
	if err != nil {
		// A summarization fault never hides query results that were
		// already obtained.
		log.Error().
			Err(err).
			Str("request_id", in.Convo.RequestID).
			Int("row_count", in.Outcome.RowCount()).
			Msg("échec du résumé des résultats")

		in.ErrMsg = err.Error()
		in.ResponseText = fmt.Sprintf(
			"J'ai trouvé %d résultats mais je ne peux pas les analyser pour le moment.",
			in.Outcome.RowCount(),
		)
		in.AddTrace("analyze_results:failed")
		return in, nil
	}

	in.ResponseText = summary
	in.AgentUsed = contractx.AgentAnalysis
	in.DataAnalyzed = true
	in.AddTrace("analyze_results")
	return in, nil
}
