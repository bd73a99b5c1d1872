package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"darkgravity/internal/domain"
)

// Provider names, in the order they appear in log output.
const (
	ProviderGemini      = "Gemini"
	ProviderDeepSeek    = "DeepSeek"
	ProviderMistral     = "Mistral"
	ProviderCloudflare  = "Cloudflare"
	ProviderHuggingFace = "HuggingFace"
	ProviderOpenRouter  = "OpenRouter"
	ProviderOpenAI      = "OpenAI"
)

// maxResponseBytes caps how much of a provider response is read; error bodies
// are truncated further before they reach a log line.
const maxResponseBytes = 1 << 20

var quotaMarkers = []string{"quota", "limit", "resource_exhausted", "limit_exceeded"}

// quotaExceeded classifies a non-2xx response as a rate/usage rejection.
func quotaExceeded(status int, body string) bool {
	if status == http.StatusTooManyRequests || status == http.StatusForbidden {
		return true
	}
	lower := strings.ToLower(body)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// httpProvider is a generic HTTP-backed provider. Vendors differ only in
// endpoint, auth header and the request/response envelope.
type httpProvider struct {
	name       string
	endpoint   string
	apiKey     string
	authHeader string
	authPrefix string
	buildBody  func(prompt string) any
	parse      func(body []byte) (string, error)
	client     *http.Client
}

func (p *httpProvider) Name() string {
	return p.name
}

// Analyze performs a single network call. Every failure mode, including a
// timed-out context, comes back as a Result; the chain never sees an error.
func (p *httpProvider) Analyze(ctx context.Context, story *domain.Story) Result {
	payload, err := json.Marshal(p.buildBody(BuildPrompt(story)))
	if err != nil {
		return Failure(fmt.Sprintf("%s Error: marshal request: %v", p.name, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Failure(fmt.Sprintf("%s Error: create request: %v", p.name, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authHeader != "" {
		req.Header.Set(p.authHeader, p.authPrefix+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Failure(fmt.Sprintf("%s Exception: %v", p.name, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Failure(fmt.Sprintf("%s Exception: read response: %v", p.name, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("%s Error: %d - %s", p.name, resp.StatusCode, truncate(string(body), 200))
		if quotaExceeded(resp.StatusCode, string(body)) {
			return QuotaFailure(msg)
		}
		return Failure(msg)
	}

	text, err := p.parse(body)
	if err != nil {
		return Failure(fmt.Sprintf("%s Error: %v", p.name, err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Failure(p.name + " Error: empty completion")
	}
	return Success(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// NewGemini talks to the Google Generative Language API.
func NewGemini(apiKey string, client *http.Client) Provider {
	return &httpProvider{
		name:       ProviderGemini,
		endpoint:   "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent",
		apiKey:     apiKey,
		authHeader: "x-goog-api-key",
		buildBody: func(prompt string) any {
			return geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
		},
		parse: func(body []byte) (string, error) {
			var resp geminiResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
				return "", fmt.Errorf("no candidates in response")
			}
			return resp.Candidates[0].Content.Parts[0].Text, nil
		},
		client: client,
	}
}

// NewChat builds a provider for any OpenAI-compatible chat completions API.
func NewChat(name, endpoint, apiKey, model string, client *http.Client) Provider {
	return &httpProvider{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		authHeader: "Authorization",
		authPrefix: "Bearer ",
		buildBody: func(prompt string) any {
			return chatRequest{Model: model, Messages: []chatMessage{{Role: "user", Content: prompt}}}
		},
		parse: func(body []byte) (string, error) {
			var resp chatResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("no choices in response")
			}
			return resp.Choices[0].Message.Content, nil
		},
		client: client,
	}
}

// NewCloudflare talks to Cloudflare Workers AI.
func NewCloudflare(token, accountID string, client *http.Client) Provider {
	endpoint := fmt.Sprintf(
		"https://api.cloudflare.com/client/v4/accounts/%s/ai/run/@cf/meta/llama-3-8b-instruct",
		accountID,
	)
	return &httpProvider{
		name:       ProviderCloudflare,
		endpoint:   endpoint,
		apiKey:     token,
		authHeader: "Authorization",
		authPrefix: "Bearer ",
		buildBody: func(prompt string) any {
			return cloudflareRequest{Messages: []chatMessage{{Role: "user", Content: prompt}}}
		},
		parse: func(body []byte) (string, error) {
			var resp cloudflareResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			return resp.Result.Response, nil
		},
		client: client,
	}
}

// NewHuggingFace talks to the HuggingFace inference API, which answers with
// either a bare generation object or a one-element array of them.
func NewHuggingFace(apiKey string, client *http.Client) Provider {
	return &httpProvider{
		name:       ProviderHuggingFace,
		endpoint:   "https://api-inference.huggingface.co/models/meta-llama/Llama-3.2-3B-Instruct",
		apiKey:     apiKey,
		authHeader: "Authorization",
		authPrefix: "Bearer ",
		buildBody: func(prompt string) any {
			return huggingFaceRequest{Inputs: prompt, Parameters: huggingFaceParameters{MaxNewTokens: 250}}
		},
		parse: func(body []byte) (string, error) {
			if len(body) > 0 && body[0] == '[' {
				var generations []huggingFaceGeneration
				if err := json.Unmarshal(body, &generations); err != nil {
					return "", fmt.Errorf("decode response: %w", err)
				}
				if len(generations) == 0 {
					return "", fmt.Errorf("empty generation array")
				}
				return generations[0].GeneratedText, nil
			}
			var generation huggingFaceGeneration
			if err := json.Unmarshal(body, &generation); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			return generation.GeneratedText, nil
		},
		client: client,
	}
}
