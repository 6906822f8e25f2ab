package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	nodex "github.com/Nicolassaint/grist-ai-api/agent/nodes"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
)

const noUserMessageText = "Aucun message utilisateur trouvé dans la requête."

// Orchestrator drives the routing pipeline: every chat request is
// classified, dispatched to the matching specialist and folded back into a
// single reply. It never lets an error escape as a transport failure, the
// caller always gets a well-formed response.
type Orchestrator struct {
	agents  contractx.Registry
	schemas contractx.SchemaProvider
	usage   *statsx.Registry

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

func New(
	agents contractx.Registry,
	schemas contractx.SchemaProvider,
	usage *statsx.Registry,
) (*Orchestrator, error) {
	if agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if schemas == nil {
		return nil, errors.New("schema provider is required")
	}
	if usage == nil {
		usage = statsx.NewRegistry()
	}

	o := &Orchestrator{
		agents:  agents,
		schemas: schemas,
		usage:   usage,
	}

	graphRunner, err := o.compileChatGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleChat runs one conversation turn through the pipeline. Failures are
// folded into the response instead of being returned, with the underlying
// reason in the error field.
func (o *Orchestrator) HandleChat(
	ctx context.Context,
	documentID string,
	messages []contractx.Message,
	requestID string,
) contractx.AgentResponse {
	start := time.Now()
	o.usage.RecordRequest()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		DocumentID: documentID,
		Messages:   messages,
		RequestID:  requestID,
	})
	if err != nil {
		o.usage.RecordError()
		o.usage.RecordInvocation(contractx.AgentOrchestrator, time.Since(start), true)

		if errors.Is(err, contractx.ErrValidation) {
			errMsg := "No user message"
			return contractx.AgentResponse{
				Response:  noUserMessageText,
				AgentUsed: contractx.AgentOrchestrator,
				Error:     &errMsg,
			}
		}

		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("document_id", documentID).
			Msg("échec du traitement de la requête")

		errMsg := err.Error()
		return contractx.AgentResponse{
			Response:  fmt.Sprintf("Désolé, une erreur s'est produite lors du traitement de votre demande: %v", err),
			AgentUsed: contractx.AgentOrchestrator,
			Error:     &errMsg,
		}
	}

	o.usage.RecordInvocation(contractx.AgentOrchestrator, time.Since(start), out.Error != nil)

	log.Info().
		Str("request_id", requestID).
		Str("document_id", documentID).
		Str("agent_used", out.AgentUsed).
		Bool("data_analyzed", out.DataAnalyzed).
		Dur("elapsed", time.Since(start)).
		Msg("requête traitée")

	return out
}

// Stats exposes the live usage counters for the stats endpoint.
func (o *Orchestrator) Stats() statsx.Snapshot {
	return o.usage.Snapshot()
}
