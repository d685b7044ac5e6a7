// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// =============================================================================
// Groq Wire Types
// =============================================================================

// Groq exposes an OpenAI-compatible chat completions API at its own host,
// with the classic max_tokens field instead of max_completion_tokens.

const defaultGroqBaseURL = "https://api.groq.com/openai/v1/chat/completions"

type groqRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// GroqClient implements Client for Groq-hosted models using raw net/http.
//
// Thread Safety: GroqClient is safe for concurrent use.
type GroqClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGroqClient creates a GroqClient with explicit configuration.
//
// Inputs:
//   - apiKey: The Groq API key. Must be non-empty.
//   - model: The model name (e.g., "llama-3.3-70b-versatile").
//   - baseURL: Endpoint override; "" means the public API.
//   - timeout: Whole-request budget; <= 0 means 120s.
//
// Outputs:
//   - *GroqClient: The configured client.
//   - error: Non-nil when apiKey or model is empty.
func NewGroqClient(apiKey, model, baseURL string, timeout time.Duration) (*GroqClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: API key is missing (GROQ_API_KEY)")
	}
	if model == "" {
		return nil, fmt.Errorf("groq: model is missing (GROQ_MODEL)")
	}
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	slog.Info("Initializing Groq client", slog.String("model", model))
	return &GroqClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}, nil
}

// Name implements Client.
func (g *GroqClient) Name() string { return "groq" }

// Complete implements Client using Groq's OpenAI-compatible completions API.
//
// Thread Safety: This method is safe for concurrent use.
func (g *GroqClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	slog.Debug("Chat via Groq", slog.String("model", g.model), slog.Int("messages", len(messages)))

	wireMessages := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		wireMessages = append(wireMessages, openaiMessage{Role: msg.Role, Content: msg.Content})
	}

	reqPayload := groqRequest{
		Model:    g.model,
		Messages: wireMessages,
	}
	if opts.Temperature > 0 {
		reqPayload.Temperature = &opts.Temperature
	}
	if opts.MaxTokens > 0 {
		reqPayload.MaxTokens = &opts.MaxTokens
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("groq: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("groq: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", wrapTimeout(ctx, "groq", fmt.Errorf("groq: HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTimeout(ctx, "groq", fmt.Errorf("groq: reading response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("groq: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("groq: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("groq: returned no choices")
	}

	return apiResp.Choices[0].Message.Content, nil
}
