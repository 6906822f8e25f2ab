package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
	openrouterx "github.com/Nicolassaint/grist-ai-api/pkg/openrouter"
)

// Config carries the shared LLM endpoint settings plus the per-agent model,
// temperature, token-budget and history-window overrides.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"mistral-small"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.1"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RouterModel         string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	SQLModel            string  `envconfig:"SQL_MODEL" split_words:"true"`
	AnalysisModel       string  `envconfig:"ANALYSIS_MODEL" split_words:"true"`
	GenericModel        string  `envconfig:"GENERIC_MODEL" split_words:"true"`
	RouterTemperature   float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"-1"`
	SQLTemperature      float32 `envconfig:"SQL_TEMPERATURE" split_words:"true" default:"-1"`
	AnalysisTemperature float32 `envconfig:"ANALYSIS_TEMPERATURE" split_words:"true" default:"-1"`
	GenericTemperature  float32 `envconfig:"GENERIC_TEMPERATURE" split_words:"true" default:"-1"`

	// Token budgets: the router needs one word, the analysis is forced short.
	RouterMaxTokens   int `envconfig:"ROUTER_MAX_TOKENS" split_words:"true" default:"20"`
	SQLMaxTokens      int `envconfig:"SQL_MAX_TOKENS" split_words:"true" default:"500"`
	AnalysisMaxTokens int `envconfig:"ANALYSIS_MAX_TOKENS" split_words:"true" default:"100"`

	// SQLMaxAttempts bounds the generate/validate loop.
	SQLMaxAttempts int `envconfig:"SQL_MAX_ATTEMPTS" split_words:"true" default:"3"`

	// History windows: how much trailing conversation each agent sees.
	RouterHistory  int `envconfig:"ROUTER_HISTORY" split_words:"true" default:"3"`
	SQLHistory     int `envconfig:"SQL_HISTORY" split_words:"true" default:"3"`
	GenericHistory int `envconfig:"GENERIC_HISTORY" split_words:"true" default:"10"`

	// AnalysisMaxRows bounds the result sample embedded in the analysis prompt.
	AnalysisMaxRows int `envconfig:"ANALYSIS_MAX_ROWS" split_words:"true" default:"20"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.SQLMaxAttempts <= 0 {
		return fmt.Errorf("%w: sql max attempts must be > 0", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the endpoint configuration for one agent, applying
// per-agent model, temperature and token-budget overrides.
func (c Config) OpenRouterFor(agent string) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature
	maxTokens := c.MaxCompletionToken

	switch agent {
	case contractx.AgentRouter:
		if v := strings.TrimSpace(c.RouterModel); v != "" {
			modelName = v
		}
		if c.RouterTemperature >= 0 {
			temp = c.RouterTemperature
		}
		if c.RouterMaxTokens > 0 {
			maxTokens = c.RouterMaxTokens
		}
	case contractx.AgentSQL:
		if v := strings.TrimSpace(c.SQLModel); v != "" {
			modelName = v
		}
		if c.SQLTemperature >= 0 {
			temp = c.SQLTemperature
		}
		if c.SQLMaxTokens > 0 {
			maxTokens = c.SQLMaxTokens
		}
	case contractx.AgentAnalysis:
		if v := strings.TrimSpace(c.AnalysisModel); v != "" {
			modelName = v
		}
		if c.AnalysisTemperature >= 0 {
			temp = c.AnalysisTemperature
		}
		if c.AnalysisMaxTokens > 0 {
			maxTokens = c.AnalysisMaxTokens
		}
	case contractx.AgentGeneric:
		if v := strings.TrimSpace(c.GenericModel); v != "" {
			modelName = v
		}
		if c.GenericTemperature >= 0 {
			temp = c.GenericTemperature
		}
	}

	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxTokens,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
