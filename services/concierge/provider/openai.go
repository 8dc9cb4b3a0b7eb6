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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

// Default OpenAI models and their list prices per 1K tokens.
const (
	defaultOpenAIChatModel  = "gpt-4o-mini"
	defaultOpenAIEmbedModel = string(openai.SmallEmbedding3)

	gpt4oMiniPromptPer1K     = 0.00015
	gpt4oMiniCompletionPer1K = 0.0006
)

// OpenAIProvider backs chat, embeddings, and image analysis with the
// OpenAI API.
type OpenAIProvider struct {
	client     *openai.Client
	chatModel  string
	embedModel string
	priority   int
}

var _ Provider = (*OpenAIProvider)(nil)

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	// APIKey authenticates. When empty the constructor falls back to
	// OPENAI_API_KEY and then the container secret file.
	APIKey string

	// ChatModel and EmbedModel override the defaults.
	ChatModel  string
	EmbedModel string

	// Priority orders this backend in failover. Lower tries first.
	Priority int
}

// NewOpenAIProvider creates the OpenAI backend.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		raw, err := os.ReadFile(secretPath)
		if err != nil {
			slog.Error("OPENAI_API_KEY not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("openai api key not configured")
		}
		apiKey = strings.TrimSpace(string(raw))
		slog.Info("Read the OpenAI API key from container secrets")
	}

	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = defaultOpenAIChatModel
		slog.Warn("OpenAI chat model not set, defaulting", "model", chatModel)
	}
	embedModel := config.EmbedModel
	if embedModel == "" {
		embedModel = defaultOpenAIEmbedModel
	}

	slog.Info("Initializing OpenAI provider", "chat_model", chatModel, "embed_model", embedModel)
	return &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		chatModel:  chatModel,
		embedModel: embedModel,
		priority:   config.Priority,
	}, nil
}

func (o *OpenAIProvider) Descriptor() Descriptor {
	return Descriptor{
		Name:     "openai",
		Priority: o.priority,
		Capabilities: []Capability{
			CapabilityChat,
			CapabilityEmbeddings,
			CapabilityImageAnalysis,
		},
		CostModel: CostModel{
			PromptPer1K:     gpt4oMiniPromptPer1K,
			CompletionPer1K: gpt4oMiniCompletionPer1K,
		},
	}
}

// Generate runs one chat completion.
func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	slog.Debug("Generating text via OpenAI", "model", o.chatModel)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    o.chatModel,
		Messages: messages,
	}
	applyParams(&chatReq, req.Params)

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return o.result(resp.Choices[0].Message.Content, resp.Usage), nil
}

// Embed converts text to a vector.
func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("OpenAI returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// AnalyzeImage describes an image via the vision-capable chat model.
func (o *OpenAIProvider) AnalyzeImage(ctx context.Context, req ImageRequest) (*GenerateResult, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image."
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: req.ImageURL},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI image analysis failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return o.result(resp.Choices[0].Message.Content, resp.Usage), nil
}

func (o *OpenAIProvider) result(text string, usage openai.Usage) *GenerateResult {
	desc := o.Descriptor()
	return &GenerateResult{
		Text: text,
		Usage: datatypes.Usage{
			Provider:         desc.Name,
			Model:            o.chatModel,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			CostUSD:          desc.CostModel.Cost(usage.PromptTokens, usage.CompletionTokens),
		},
	}
}

func applyParams(req *openai.ChatCompletionRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
}
