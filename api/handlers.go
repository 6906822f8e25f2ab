package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	DocumentID string        `json:"documentId"`
	Messages   []chatMessage `json:"messages"`
	WebhookURL string        `json:"webhookUrl,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": "corps de requête JSON invalide: " + err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": "le champ documentId est requis",
		})
		return
	}

	requestID := uuid.NewString()
	messages := make([]contractx.Message, 0, len(req.Messages))
	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range req.Messages {
		messages = append(messages, contractx.Message{
			Role:      contractx.MessageRole(m.Role),
			Content:   m.Content,
			Timestamp: now,
		})
	}

	resp := s.service.HandleChat(r.Context(), req.DocumentID, messages, requestID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	llmStatus := "ok"
	code := http.StatusOK

	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.readiness(ctx); err != nil {
			status = "degraded"
			llmStatus = err.Error()
			code = http.StatusServiceUnavailable
			log.Warn().Err(err).Msg("la vérification du modèle a échoué")
		}
	}

	snapshot := s.service.Stats()
	writeJSON(w, code, map[string]any{
		"status":         status,
		"llm":            llmStatus,
		"total_requests": snapshot.TotalRequests,
		"errors":         snapshot.Errors,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

type agentDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Intents     []string `json:"intents,omitempty"`
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": []agentDescriptor{
			{
				Name:        contractx.AgentRouter,
				Description: "Classifie chaque message utilisateur vers l'agent approprié.",
				Intents:     []string{string(contractx.IntentGeneric), string(contractx.IntentDataRequest)},
			},
			{
				Name:        contractx.AgentGeneric,
				Description: "Répond aux questions générales et conversationnelles sur le document.",
			},
			{
				Name:        contractx.AgentSQL,
				Description: "Génère, valide et exécute des requêtes SQL en lecture seule sur le document.",
			},
			{
				Name:        contractx.AgentAnalysis,
				Description: "Résume les résultats de requêtes en langage naturel.",
			},
		},
		"routing": "En cas de doute ou d'échec de classification, le message est traité par l'agent " + contractx.AgentGeneric + ".",
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("échec de l'encodage de la réponse JSON")
	}
}
