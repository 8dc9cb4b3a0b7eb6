// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

var ollamaTracer = otel.Tracer("innkeeper.provider.ollama")

// OllamaProvider backs chat and embeddings with a local Ollama server.
// Free to run, so its cost model is zero.
type OllamaProvider struct {
	httpClient *http.Client
	baseURL    string
	chatModel  string
	embedModel string
	priority   int
}

var _ Provider = (*OllamaProvider)(nil)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	// BaseURL of the Ollama server, e.g. http://localhost:11434.
	BaseURL string

	// ChatModel and EmbedModel select the local models.
	ChatModel  string
	EmbedModel string

	// Priority orders this backend in failover.
	Priority int

	// Timeout bounds one HTTP call. Zero means 5 minutes.
	Timeout time.Duration
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaProvider creates the Ollama backend.
func NewOllamaProvider(config OllamaConfig) (*OllamaProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL not configured")
	}
	if config.ChatModel == "" {
		config.ChatModel = "llama3.1"
		slog.Warn("Ollama chat model not set, defaulting", "model", config.ChatModel)
	}
	if config.EmbedModel == "" {
		config.EmbedModel = "nomic-embed-text"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	slog.Info("Initializing Ollama provider", "base_url", baseURL, "chat_model", config.ChatModel)
	return &OllamaProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		chatModel:  config.ChatModel,
		embedModel: config.EmbedModel,
		priority:   config.Priority,
	}, nil
}

func (o *OllamaProvider) Descriptor() Descriptor {
	return Descriptor{
		Name:         "ollama",
		Priority:     o.priority,
		Capabilities: []Capability{CapabilityChat, CapabilityEmbeddings},
	}
}

// Generate runs one chat completion against /api/chat.
func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := ollamaTracer.Start(ctx, "OllamaProvider.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.chatModel))

	messages := make([]ollamaChatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		messages = append(messages, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}

	payload := ollamaChatRequest{
		Model:    o.chatModel,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions(req.Params),
	}

	var resp ollamaChatResponse
	if err := o.post(ctx, "/api/chat", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Message.Content == "" {
		return nil, fmt.Errorf("ollama returned an empty response")
	}

	return &GenerateResult{
		Text: resp.Message.Content,
		Usage: datatypes.Usage{
			Provider:         "ollama",
			Model:            o.chatModel,
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		},
	}, nil
}

// Embed converts text to a vector via /api/embeddings.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := ollamaTracer.Start(ctx, "OllamaProvider.Embed")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.embedModel))

	var resp ollamaEmbedResponse
	err := o.post(ctx, "/api/embeddings", ollamaEmbedRequest{
		Model:  o.embedModel,
		Prompt: text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return resp.Embedding, nil
}

// AnalyzeImage is not advertised for Ollama.
func (o *OllamaProvider) AnalyzeImage(context.Context, ImageRequest) (*GenerateResult, error) {
	return nil, ErrUnsupported
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama call to %s failed: %w", path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading ollama response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding ollama response: %w", err)
	}
	return nil
}

func ollamaOptions(params GenerationParams) map[string]any {
	options := make(map[string]any)
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	if len(options) == 0 {
		return nil
	}
	return options
}
