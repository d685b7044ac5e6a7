// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datachat is the HTTP surface of the conversational analytics
// service: request/response types, gin handlers, and route registration.
package datachat

import (
	"github.com/AleutianAI/DataChat/services/datachat/conversation"
)

// ChatRequest is the body of POST /chat. The server is stateless; the
// client resends the conversation tail with every request.
type ChatRequest struct {
	// Question is the user's message. Required.
	Question string `json:"question" binding:"required"`

	// History is the conversation tail, oldest first. Optional; the
	// server truncates it to its own limit.
	History []conversation.Turn `json:"history"`
}

// ErrorResponse is the body for 400/500-class transport failures. Handled
// business outcomes use the pipeline envelope instead.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
