package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

const validationFailureText = "Je n'ai pas pu générer une requête SQL appropriée pour votre question. " +
	"Pouvez-vous la reformuler ou être plus spécifique ?"

func RunSQL(
	ctx context.Context,
	in *PipelineState,
	sql contractx.SQL,
) (*PipelineState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pipeline state is nil", contractx.ErrValidation)
	}
	if in.Failed() {
		return in, nil
	}

	query, outcome, err := sql.GenerateAndExecute(ctx, in.Convo, in.Schema)
	if err != nil {
		return nil, err
	}

	in.Query = query
	in.Outcome = outcome
	in.AgentUsed = contractx.AgentSQL

	if outcome.Success {
		in.AddTrace(fmt.Sprintf("run_sql:ok attempts=%d rows=%d", query.Attempts, outcome.RowCount()))
		return in, nil
	}

	log.Warn().
		Str("request_id", in.Convo.RequestID).
		Str("document_id", in.Convo.DocumentID).
		Str("failure_kind", string(outcome.Kind)).
		Str("sql_query", query.SQL).
		Str("reason", outcome.Err).
		Msg("la requête SQL n'a pas abouti")

	in.ErrMsg = outcome.Err
	switch outcome.Kind {
	case contractx.FailureSQLExecution:
		in.ResponseText = fmt.Sprintf(
			"J'ai généré cette requête SQL :\n```sql\n%s\n```\nMais elle a produit une erreur : %s",
			query.SQL, outcome.Err,
		)
		in.AddTrace("run_sql:execution_failed")
	default:
		in.ResponseText = validationFailureText
		in.AddTrace("run_sql:validation_failed")
	}
	return in, nil
}
