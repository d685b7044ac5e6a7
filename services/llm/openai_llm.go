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
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         *float64        `json:"temperature,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements Client for OpenAI models using raw net/http.
//
// Description:
//
//	Uses the OpenAI Chat Completions REST API directly without third-party
//	SDKs. The same wire format serves any OpenAI-compatible endpoint, so
//	baseURL is configurable.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIClient creates an OpenAIClient with explicit configuration.
//
// Inputs:
//   - apiKey: The OpenAI API key. Must be non-empty.
//   - model: The model name (e.g., "gpt-4o-mini").
//   - baseURL: Endpoint override; "" means the public API.
//   - timeout: Whole-request budget; <= 0 means 120s.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil when apiKey is empty.
func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	slog.Info("Initializing OpenAI client", slog.String("model", model))
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}, nil
}

// Name implements Client.
func (o *OpenAIClient) Name() string { return "openai" }

// Complete implements Client using the OpenAI chat completions API.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation, system message included.
//   - opts: Sampling options; zero values are omitted from the wire request.
//
// Outputs:
//   - string: The assistant's response text.
//   - error: Non-nil if the request fails; deadline expiry satisfies
//     errors.Is(err, ErrTimeout).
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	slog.Debug("Chat via OpenAI", slog.String("model", o.model), slog.Int("messages", len(messages)))

	oaiMessages := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case RoleSystem, RoleUser, RoleAssistant:
			// valid roles, keep as-is
		default:
			slog.Warn("OpenAI: unknown message role, mapping to user",
				slog.String("unknown_role", role))
			role = RoleUser
		}
		oaiMessages = append(oaiMessages, openaiMessage{Role: role, Content: msg.Content})
	}

	reqPayload := openaiRequest{
		Model:    o.model,
		Messages: oaiMessages,
	}
	if opts.Temperature > 0 {
		reqPayload.Temperature = &opts.Temperature
	}
	if opts.MaxTokens > 0 {
		reqPayload.MaxCompletionTokens = &opts.MaxTokens
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("openai: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", wrapTimeout(ctx, "openai", fmt.Errorf("openai: HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTimeout(ctx, "openai", fmt.Errorf("openai: reading response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("openai: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: returned no choices")
	}

	slog.Debug("Received OpenAI chat response",
		slog.String("finish_reason", apiResp.Choices[0].FinishReason),
		slog.Int("response_len", len(apiResp.Choices[0].Message.Content)),
	)
	return apiResp.Choices[0].Message.Content, nil
}
