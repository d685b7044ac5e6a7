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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/DataChat/services/llm"
)

// FallbackChain composes two clients: every call goes to the primary first,
// and the secondary only sees traffic when the primary fails.
//
// Description:
//
//	The typical deployment is a self-hosted Ollama primary with a cloud
//	secondary: free and private when the local box is up, degraded but
//	alive when it is not. A cancelled or expired request context is not
//	retried on the secondary; the caller's deadline is already gone and a
//	second full completion cannot meet it.
//
// Thread Safety: FallbackChain is safe for concurrent use.
type FallbackChain struct {
	primary  llm.Client
	fallback llm.Client
	logger   *slog.Logger
}

// NewFallbackChain creates a FallbackChain.
//
// Inputs:
//   - primary: Tried first on every call. Must not be nil.
//   - fallback: Tried when the primary errors. Must not be nil.
//   - logger: Structured logger; nil means slog.Default().
func NewFallbackChain(primary, fallback llm.Client, logger *slog.Logger) *FallbackChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackChain{primary: primary, fallback: fallback, logger: logger}
}

// Name implements llm.Client.
func (c *FallbackChain) Name() string {
	return fmt.Sprintf("%s+%s", c.primary.Name(), c.fallback.Name())
}

// Complete implements llm.Client with primary-then-fallback semantics.
//
// Outputs:
//   - string: The first successful completion.
//   - error: The fallback's error when both fail, so the caller sees the
//     state of the last backend that was actually tried.
func (c *FallbackChain) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	text, err := c.primary.Complete(ctx, messages, opts)
	if err == nil {
		return text, nil
	}

	if ctx.Err() != nil {
		// The request itself is dead; a second backend cannot save it.
		return "", err
	}

	c.logger.Warn("primary provider failed, trying fallback",
		slog.String("primary", c.primary.Name()),
		slog.String("fallback", c.fallback.Name()),
		slog.String("error", llm.SafeLogString(err.Error())))
	fallbackUses.WithLabelValues(c.primary.Name(), c.fallback.Name()).Inc()

	text, fbErr := c.fallback.Complete(ctx, messages, opts)
	if fbErr != nil {
		return "", fmt.Errorf("fallback %s also failed: %w (primary: %v)",
			c.fallback.Name(), fbErr, err)
	}
	return text, nil
}
