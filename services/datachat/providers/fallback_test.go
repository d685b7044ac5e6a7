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
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/DataChat/services/llm"
)

// mockClient is a scripted llm.Client for chain tests.
type mockClient struct {
	name  string
	text  string
	err   error
	calls int
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func TestFallbackChainPrimarySucceeds(t *testing.T) {
	primary := &mockClient{name: "ollama", text: "from primary"}
	fallback := &mockClient{name: "openai", text: "from fallback"}
	chain := NewFallbackChain(primary, fallback, nil)

	got, err := chain.Complete(context.Background(), nil, llm.Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from primary" {
		t.Errorf("text = %q", got)
	}
	if fallback.calls != 0 {
		t.Error("fallback must not be called when primary succeeds")
	}
}

func TestFallbackChainPrimaryFails(t *testing.T) {
	primary := &mockClient{name: "ollama", err: errors.New("connection refused")}
	fallback := &mockClient{name: "openai", text: "from fallback"}
	chain := NewFallbackChain(primary, fallback, nil)

	got, err := chain.Complete(context.Background(), nil, llm.Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from fallback" {
		t.Errorf("text = %q", got)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = primary %d, fallback %d", primary.calls, fallback.calls)
	}
}

func TestFallbackChainBothFail(t *testing.T) {
	primary := &mockClient{name: "ollama", err: errors.New("down")}
	fallback := &mockClient{name: "openai", err: errors.New("also down")}
	chain := NewFallbackChain(primary, fallback, nil)

	_, err := chain.Complete(context.Background(), nil, llm.Options{})
	if err == nil {
		t.Fatal("expected error when both backends fail")
	}
}

func TestFallbackChainSkipsFallbackOnDeadCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &mockClient{name: "ollama", err: context.Canceled}
	fallback := &mockClient{name: "openai", text: "too late"}
	chain := NewFallbackChain(primary, fallback, nil)

	if _, err := chain.Complete(ctx, nil, llm.Options{}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if fallback.calls != 0 {
		t.Error("fallback must not run after the request context is dead")
	}
}

func TestFallbackChainName(t *testing.T) {
	chain := NewFallbackChain(&mockClient{name: "ollama"}, &mockClient{name: "openai"}, nil)
	if chain.Name() != "ollama+openai" {
		t.Errorf("Name() = %q", chain.Name())
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	if _, err := NewClient(Config{Provider: "mystery"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewClientMissingKey(t *testing.T) {
	if _, err := NewClient(Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATACHAT_PROVIDER", "")
	t.Setenv("DATACHAT_FALLBACK_PROVIDER", "")
	t.Setenv("OLLAMA_MODEL", "llama3.1:8b")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")

	primary, fallback, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if primary.Provider != ProviderOllama || primary.Model != "llama3.1:8b" {
		t.Errorf("primary = %+v", primary)
	}
	if primary.BaseURL != "http://gpu-box:11434" {
		t.Errorf("BaseURL = %q", primary.BaseURL)
	}
	if fallback != nil {
		t.Errorf("fallback = %+v, want nil", fallback)
	}
}

func TestLoadConfigWithFallback(t *testing.T) {
	t.Setenv("DATACHAT_PROVIDER", "ollama")
	t.Setenv("DATACHAT_FALLBACK_PROVIDER", "openai")
	t.Setenv("OLLAMA_MODEL", "llama3.1:8b")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	primary, fallback, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if primary.Provider != ProviderOllama {
		t.Errorf("primary = %+v", primary)
	}
	if fallback == nil || fallback.Provider != ProviderOpenAI || fallback.APIKey != "sk-test" {
		t.Errorf("fallback = %+v", fallback)
	}
}

func TestLoadConfigRejectsSameFallback(t *testing.T) {
	t.Setenv("DATACHAT_PROVIDER", "ollama")
	t.Setenv("DATACHAT_FALLBACK_PROVIDER", "ollama")

	if _, _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when fallback equals primary")
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("DATACHAT_PROVIDER", "mystery")
	if _, _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadConfigTimeout(t *testing.T) {
	t.Setenv("DATACHAT_PROVIDER", "ollama")
	t.Setenv("DATACHAT_FALLBACK_PROVIDER", "")
	t.Setenv("DATACHAT_PROVIDER_TIMEOUT_SECONDS", "30")

	primary, _, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if primary.Timeout.Seconds() != 30 {
		t.Errorf("Timeout = %v", primary.Timeout)
	}

	t.Setenv("DATACHAT_PROVIDER_TIMEOUT_SECONDS", "soon")
	if _, _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric timeout")
	}
}
