package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Nicolassaint/grist-ai-api/agent/agents"
	"github.com/Nicolassaint/grist-ai-api/agent/agents/orchestrator"
	llmx "github.com/Nicolassaint/grist-ai-api/agent/llm"
	statsx "github.com/Nicolassaint/grist-ai-api/agent/stats"
	"github.com/Nicolassaint/grist-ai-api/api"
	configx "github.com/Nicolassaint/grist-ai-api/pkg/config"
	gristx "github.com/Nicolassaint/grist-ai-api/pkg/grist"
	logx "github.com/Nicolassaint/grist-ai-api/pkg/logger"
	openrouterx "github.com/Nicolassaint/grist-ai-api/pkg/openrouter"
)

func main() {
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	gristCfg := configx.MustNew[gristx.Config]("GRIST")
	serverCfg := configx.MustNew[api.Config]("SERVER")

	gristClient := gristx.MustNew(*gristCfg)
	usage := statsx.NewRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := agents.NewRegistry(ctx, *llmCfg, gristClient, usage)
	if err != nil {
		log.Fatal().Err(err).Msg("échec de l'initialisation des agents")
	}

	service, err := orchestrator.New(registry, gristClient, usage)
	if err != nil {
		log.Fatal().Err(err).Msg("échec de l'initialisation de l'orchestrateur")
	}

	pingClient := openrouterx.NewClient(llmCfg.OpenRouterFor(""))
	readiness := func(ctx context.Context) error {
		return openrouterx.Ping(ctx, pingClient, llmCfg.Model, llmCfg.Timeout)
	}

	server := api.NewServer(*serverCfg, service, readiness)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("le serveur HTTP s'est arrêté avec une erreur")
		}
	case <-ctx.Done():
		log.Info().Msg("signal d'arrêt reçu")
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("échec de l'arrêt du serveur HTTP")
		}
	}
}
