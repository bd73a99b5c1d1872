package analysis

import (
	"context"
	"log/slog"
	"net/http"

	"darkgravity/internal/config"
	"darkgravity/internal/domain"
)

// MockAnalysis is the deterministic fallback used when every configured
// provider fails or none are configured. Its embedded score parses cleanly,
// so a record never ends up half-broken.
const MockAnalysis = domain.MockAnalysisPrefix + " This story is spine-chilling! (Score: 8.5/10)"

// Chain tries providers strictly in order and stops at the first success.
// Priority is fixed at construction time; no reordering happens at runtime.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

func NewChain(providers []Provider, logger *slog.Logger) *Chain {
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "provider_chain"),
	}
}

// BuildProviders assembles the static provider list from whichever
// credentials are present in the config, in fixed priority order. The shared
// client's timeout bounds each attempt.
func BuildProviders(cfg config.AIConfig) []Provider {
	client := &http.Client{Timeout: cfg.AttemptTimeout}

	var providers []Provider
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, NewGemini(cfg.GeminiAPIKey, client))
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, NewChat(ProviderDeepSeek,
			"https://api.deepseek.com/v1/chat/completions", cfg.DeepSeekAPIKey, "deepseek-chat", client))
	}
	if cfg.MistralAPIKey != "" {
		providers = append(providers, NewChat(ProviderMistral,
			"https://api.mistral.ai/v1/chat/completions", cfg.MistralAPIKey, "mistral-small-latest", client))
	}
	if cfg.CloudflareAPIToken != "" && cfg.CloudflareAccountID != "" {
		providers = append(providers, NewCloudflare(cfg.CloudflareAPIToken, cfg.CloudflareAccountID, client))
	}
	if cfg.HuggingFaceAPIKey != "" {
		providers = append(providers, NewHuggingFace(cfg.HuggingFaceAPIKey, client))
	}
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers, NewChat(ProviderOpenRouter,
			"https://openrouter.ai/api/v1/chat/completions", cfg.OpenRouterAPIKey, "meta-llama/llama-3.1-8b-instruct:free", client))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, NewChat(ProviderOpenAI,
			"https://api.openai.com/v1/chat/completions", cfg.OpenAIAPIKey, "gpt-4o", client))
	}
	return providers
}

// Analyze runs the failover loop for one story. It always returns a non-empty
// analysis, falling back to the mock text when the chain is exhausted, and
// the score parsed from whatever text it settled on.
func (c *Chain) Analyze(ctx context.Context, story *domain.Story) (string, *float64) {
	var analysis string

	for _, p := range c.providers {
		c.logger.Debug("attempting provider",
			"provider", p.Name(),
			"story_id", story.ID,
		)

		result := p.Analyze(ctx, story)
		if result.OK() {
			c.logger.Info("provider succeeded",
				"provider", p.Name(),
				"story_id", story.ID,
			)
			analysis = result.Text
			break
		}

		c.logger.Warn("provider attempt failed",
			"provider", p.Name(),
			"kind", result.Kind.String(),
			"message", truncate(result.Message, 120),
		)
	}

	if analysis == "" {
		c.logger.Warn("all providers failed or none configured, using mock fallback",
			"configured", len(c.providers),
			"story_id", story.ID,
		)
		analysis = MockAnalysis
	}

	return analysis, ParseScore(analysis)
}

// ParseScore exposes the score parser on the chain so callers holding only
// the analyzer interface can re-derive scores from stored text.
func (c *Chain) ParseScore(text string) *float64 {
	return ParseScore(text)
}
