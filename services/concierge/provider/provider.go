// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider manages the generative backends behind the
// resolution pipeline: registration, priority-ordered failover, and
// per-backend circuit breaking.
package provider

import (
	"context"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

// Capability names a backend feature the manager can route on.
type Capability string

const (
	CapabilityChat          Capability = "chat"
	CapabilityEmbeddings    Capability = "embeddings"
	CapabilityImageAnalysis Capability = "image_analysis"
)

// GenerationParams are optional sampling knobs. Nil fields mean the
// backend's own default.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// GenerateRequest is one chat-completion call.
type GenerateRequest struct {
	// SystemPrompt sets the assistant persona. Empty means the
	// backend's default.
	SystemPrompt string

	// Messages is the conversation so far, oldest first. The final
	// message is the one being answered.
	Messages []datatypes.Message

	// Params tunes sampling.
	Params GenerationParams
}

// GenerateResult is a completed chat call.
type GenerateResult struct {
	// Text is the assistant response.
	Text string

	// Usage is billing metadata. Zero-valued for backends that do not
	// report it.
	Usage datatypes.Usage
}

// ImageRequest asks a vision-capable backend to describe an image.
type ImageRequest struct {
	// ImageURL is an https or data URL.
	ImageURL string

	// Prompt directs the analysis ("what dish is this?").
	Prompt string
}

// Provider is the capability surface of one backend.
//
// A backend only has to genuinely support the capabilities its
// Descriptor advertises; calls outside the advertised set are a
// programming error and may return ErrUnsupported.
type Provider interface {
	// Descriptor reports static routing metadata.
	Descriptor() Descriptor

	// Generate runs one chat completion.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// Embed converts text to a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// AnalyzeImage describes an image.
	AnalyzeImage(ctx context.Context, req ImageRequest) (*GenerateResult, error)
}

// CostModel estimates per-call cost in USD per 1K tokens. Zero values
// mean free (local backends).
type CostModel struct {
	PromptPer1K     float64 `json:"prompt_per_1k"`
	CompletionPer1K float64 `json:"completion_per_1k"`
}

// Cost computes the dollar estimate for one call's token counts.
func (c CostModel) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*c.PromptPer1K +
		float64(completionTokens)/1000*c.CompletionPer1K
}

// Descriptor is a backend's static routing metadata.
type Descriptor struct {
	// Name identifies the backend ("openai", "ollama").
	Name string `json:"name"`

	// Priority orders failover, ascending: lower tries first.
	Priority int `json:"priority"`

	// Capabilities this backend advertises.
	Capabilities []Capability `json:"capabilities"`

	// CostModel estimates spend for budget tracking.
	CostModel CostModel `json:"cost_model"`

	// BreakerKey names the circuit breaker guarding this backend.
	// Empty means "provider:" + Name.
	BreakerKey string `json:"breaker_key,omitempty"`
}

// Supports reports whether the descriptor advertises the capability.
func (d Descriptor) Supports(capability Capability) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// breakerKey resolves the effective breaker key.
func (d Descriptor) breakerKey() string {
	if d.BreakerKey != "" {
		return d.BreakerKey
	}
	return "provider:" + d.Name
}
