// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides chat-completion clients over raw net/http, without
// third-party SDKs. Every backend implements the same small Client interface;
// callers never see wire formats, only messages in and text out.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-call sampling options. Zero values mean "backend default".
type Options struct {
	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the completion length.
	MaxTokens int
}

// Client is a chat-completion backend.
//
// Description:
//
//	Complete sends the conversation and returns the assistant's text.
//	Implementations must respect ctx cancellation and surface deadline
//	expiry as an error satisfying errors.Is(err, ErrTimeout), so callers
//	can route timeouts differently from hard failures.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)

	// Name identifies the backend for logs and metrics labels.
	Name() string
}

// ErrTimeout marks a completion that ran out of time rather than failing
// outright. Timeouts get their own error kind because the HTTP surface maps
// them to 504 instead of a recovery suggestion.
var ErrTimeout = errors.New("llm: completion timed out")

// timeoutError wraps a cause so both ErrTimeout and the original error stay
// reachable through errors.Is/As.
type timeoutError struct {
	provider string
	cause    error
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("%s: completion timed out: %v", e.provider, e.cause)
}

func (e *timeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *timeoutError) Unwrap() error { return e.cause }

// wrapTimeout tags err as a timeout when the context deadline expired, and
// passes it through untouched otherwise.
func wrapTimeout(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return &timeoutError{provider: provider, cause: err}
	}
	return err
}

// IsTimeout reports whether err represents a completion timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
