// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package providers resolves completion-provider configuration from the
// environment, builds clients, and composes the primary/fallback chain the
// pipeline talks to.
package providers

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Provider constants for supported completion backends.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
)

// ValidProviders contains the set of valid provider names.
var ValidProviders = []string{ProviderOllama, ProviderOpenAI, ProviderGroq}

// Config holds the configuration for a single completion backend.
//
// Description:
//
//	Specifies which provider to use, which model, and any provider-specific
//	settings. Used by NewClient to create the right adapter.
type Config struct {
	// Provider is the backend to use: "ollama", "openai", "groq".
	Provider string

	// Model is the provider-specific model identifier.
	Model string

	// BaseURL is an optional endpoint override.
	// For Ollama: defaults to OLLAMA_BASE_URL or http://localhost:11434.
	// For cloud providers: uses the provider's default API URL.
	BaseURL string

	// APIKey is the authentication key for cloud providers.
	// Loaded from environment: OPENAI_API_KEY, GROQ_API_KEY.
	APIKey string

	// Timeout is the whole-request budget for one completion call.
	Timeout time.Duration
}

func isValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}

// ResolveOllamaURL resolves the Ollama server URL from environment variables.
//
// Description:
//
//	Resolution order:
//	  1. OLLAMA_BASE_URL (preferred)
//	  2. OLLAMA_URL (deprecated, emits warning)
//	  3. http://localhost:11434 (default)
//
// Outputs:
//   - string: The resolved Ollama URL.
func ResolveOllamaURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return url
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		slog.Warn("OLLAMA_URL is deprecated, use OLLAMA_BASE_URL instead",
			slog.String("ollama_url", url))
		return url
	}
	return "http://localhost:11434"
}

// LoadConfig reads the primary and optional fallback provider configuration
// from environment variables.
//
// Description:
//
//	DATACHAT_PROVIDER selects the primary backend (default "ollama").
//	DATACHAT_FALLBACK_PROVIDER optionally names a second backend tried when
//	the primary fails; empty means no fallback. Each backend reads its own
//	model/key/url variables:
//	  - ollama: OLLAMA_MODEL, OLLAMA_BASE_URL
//	  - openai: OPENAI_MODEL, OPENAI_API_KEY, OPENAI_BASE_URL
//	  - groq:   GROQ_MODEL, GROQ_API_KEY, GROQ_BASE_URL
//	DATACHAT_PROVIDER_TIMEOUT_SECONDS overrides the per-call budget for
//	both backends.
//
// Outputs:
//   - Config: The primary backend configuration.
//   - *Config: The fallback configuration, or nil when none is set.
//   - error: Non-nil on an unknown provider name or when primary and
//     fallback name the same backend.
func LoadConfig() (Config, *Config, error) {
	primaryName := os.Getenv("DATACHAT_PROVIDER")
	if primaryName == "" {
		primaryName = ProviderOllama
	}

	timeout := time.Duration(0)
	if raw := os.Getenv("DATACHAT_PROVIDER_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return Config{}, nil, fmt.Errorf("invalid DATACHAT_PROVIDER_TIMEOUT_SECONDS %q", raw)
		}
		timeout = time.Duration(secs) * time.Second
	}

	primary, err := loadSingleConfig(primaryName, timeout)
	if err != nil {
		return Config{}, nil, fmt.Errorf("loading primary provider config: %w", err)
	}

	fallbackName := os.Getenv("DATACHAT_FALLBACK_PROVIDER")
	if fallbackName == "" {
		return primary, nil, nil
	}
	if fallbackName == primaryName {
		return Config{}, nil, fmt.Errorf("fallback provider %q is the same as the primary", fallbackName)
	}
	fallback, err := loadSingleConfig(fallbackName, timeout)
	if err != nil {
		return Config{}, nil, fmt.Errorf("loading fallback provider config: %w", err)
	}
	return primary, &fallback, nil
}

// loadSingleConfig loads configuration for one named backend.
func loadSingleConfig(provider string, timeout time.Duration) (Config, error) {
	if !isValidProvider(provider) {
		return Config{}, fmt.Errorf("invalid provider %q (valid: %v)", provider, ValidProviders)
	}

	cfg := Config{Provider: provider, Timeout: timeout}

	switch provider {
	case ProviderOllama:
		cfg.Model = os.Getenv("OLLAMA_MODEL")
		cfg.BaseURL = ResolveOllamaURL()
	case ProviderOpenAI:
		cfg.Model = os.Getenv("OPENAI_MODEL")
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	case ProviderGroq:
		cfg.Model = os.Getenv("GROQ_MODEL")
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
		cfg.BaseURL = os.Getenv("GROQ_BASE_URL")
	}

	return cfg, nil
}
