// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/DataChat/services/llm"
)

// NewClient creates the llm.Client adapter for a backend configuration.
//
// Description:
//
//	Maps the provider name to its raw-HTTP client. Validation lives in the
//	client constructors: a cloud provider with no API key fails here, at
//	startup, not on the first user request.
//
// Inputs:
//   - cfg: The backend configuration from LoadConfig.
//
// Outputs:
//   - llm.Client: The constructed client, wrapped with instrumentation.
//   - error: Non-nil on unknown provider or invalid configuration.
func NewClient(cfg Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.Provider {
	case ProviderOllama:
		client, err = llm.NewOllamaClient(cfg.Model, cfg.BaseURL, cfg.Timeout)
	case ProviderOpenAI:
		client, err = llm.NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	case ProviderGroq:
		client, err = llm.NewGroqClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: %v)", cfg.Provider, ValidProviders)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}
	return newInstrumentedClient(client), nil
}

// BuildChain constructs the client the pipeline uses: the primary backend,
// optionally wrapped in a FallbackChain when a secondary is configured.
//
// Outputs:
//   - llm.Client: Primary client, or a chain of primary and fallback.
//   - error: Non-nil when either backend fails to construct.
func BuildChain(primary Config, fallback *Config, logger *slog.Logger) (llm.Client, error) {
	primaryClient, err := NewClient(primary)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		return primaryClient, nil
	}
	fallbackClient, err := NewClient(*fallback)
	if err != nil {
		return nil, err
	}
	return NewFallbackChain(primaryClient, fallbackClient, logger), nil
}
