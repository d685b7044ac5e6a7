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
	"strings"
	"time"
)

// =============================================================================
// Ollama Wire Types
// =============================================================================

// DefaultOllamaTimeout is the whole-request budget for a self-hosted model.
// Local inference on modest hardware is slow; 55s keeps the request under
// typical 60s proxy limits while giving the model a real chance to finish.
const DefaultOllamaTimeout = 55 * time.Second

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OllamaClient implements Client for a self-hosted Ollama server using raw
// net/http and the non-streaming /api/chat endpoint.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	httpClient *http.Client
	model      string
	baseURL    string
	timeout    time.Duration
}

// NewOllamaClient creates an OllamaClient with explicit configuration.
//
// Inputs:
//   - model: The model name (e.g., "llama3.1:8b"). Must be non-empty.
//   - baseURL: Server base URL; "" means http://localhost:11434.
//   - timeout: Per-request budget; <= 0 means DefaultOllamaTimeout.
//
// Outputs:
//   - *OllamaClient: The configured client.
//   - error: Non-nil when model is empty.
func NewOllamaClient(model, baseURL string, timeout time.Duration) (*OllamaClient, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model is missing (OLLAMA_MODEL)")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = DefaultOllamaTimeout
	}
	slog.Info("Initializing Ollama client",
		slog.String("model", model),
		slog.String("base_url", baseURL))
	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
	}, nil
}

// Name implements Client.
func (o *OllamaClient) Name() string { return "ollama" }

// Complete implements Client against the Ollama /api/chat endpoint.
//
// Description:
//
//	Sends the full conversation non-streaming and enforces the per-request
//	budget through a derived context deadline, so a cold model load that
//	overruns it surfaces as ErrTimeout rather than a generic transport
//	error.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OllamaClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	slog.Debug("Chat via Ollama", slog.String("model", o.model), slog.Int("messages", len(messages)))

	wireMessages := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		wireMessages = append(wireMessages, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}

	reqPayload := ollamaRequest{
		Model:    o.model,
		Messages: wireMessages,
		Stream:   false,
	}
	if opts.Temperature > 0 || opts.MaxTokens > 0 {
		wireOpts := &ollamaOptions{}
		if opts.Temperature > 0 {
			wireOpts.Temperature = &opts.Temperature
		}
		if opts.MaxTokens > 0 {
			wireOpts.NumPredict = &opts.MaxTokens
		}
		reqPayload.Options = wireOpts
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("ollama: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", wrapTimeout(ctx, "ollama", fmt.Errorf("ollama: HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTimeout(ctx, "ollama", fmt.Errorf("ollama: reading response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("ollama: parsing response JSON: %w", err)
	}
	if apiResp.Error != "" {
		return "", fmt.Errorf("ollama: API error: %s", SafeLogString(apiResp.Error))
	}

	return apiResp.Message.Content, nil
}
