package pipelinenode

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

func ValidateRequest(in GraphInput) (*PipelineState, error) {
	documentID := strings.TrimSpace(in.DocumentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is empty", contractx.ErrValidation)
	}
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("%w: message list is empty", contractx.ErrValidation)
	}

	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	convo := contractx.ConversationContext{
		RequestID:  requestID,
		DocumentID: documentID,
		Messages:   in.Messages,
	}
	if _, ok := convo.LastUserMessage(); !ok {
		return nil, fmt.Errorf("%w: no user message found", contractx.ErrValidation)
	}

	state := &PipelineState{Convo: convo}
	state.AddTrace("validate_request")
	return state, nil
}
