package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Config identifies one OpenAI-compatible scoring backend. The rule-backed
// and reasoning capabilities carry independent configs so deployments can
// point them at different hosts or models.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// client wraps an OpenAI-compatible API client with a fixed temperature.
type client struct {
	api         *openai.Client
	model       string
	temperature float32
}

func newClient(cfg Config, temperature float32) client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: temperature,
	}
}

// Ping verifies the backend is reachable.
func (c client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	return nil
}

// chatJSON sends a system+user exchange requesting a JSON object response
// and unmarshals it into out.
func (c client) chatJSON(ctx context.Context, system, user string, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return nil
}
