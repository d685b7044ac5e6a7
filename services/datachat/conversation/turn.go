// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation defines the turn-based conversation model shared by
// the DataChat pipeline. The server is stateless: the client resends the tail
// of the conversation with every request, and everything derived from it
// (pending suggestions, entity sets) is recomputed per request.
package conversation

import "strings"

// Role values for a Turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation, with optional structured metadata
// describing how the assistant produced it.
//
// Description:
//
//	Turns are immutable once appended. The optional fields are only set on
//	assistant turns: SQL and Table record the query behind a data answer,
//	SuggestedQuestion carries a rephrasing offered to the user, and Type tags
//	the response kind the server emitted ("success", "suggestion", ...).
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// SQL is the query used to answer a data question, when applicable.
	SQL string `json:"sql,omitempty"`

	// Table is the logical source tag of the query ("primary", "secondary",
	// "product", "distributor", "unknown").
	Table string `json:"table,omitempty"`

	// SuggestedQuestion is a rephrased question offered to the user,
	// awaiting confirmation or rejection in the next turn.
	SuggestedQuestion string `json:"suggestedQuestion,omitempty"`

	// Type is the response kind tag the server attached to this turn.
	Type string `json:"type,omitempty"`
}

// History is an ordered sequence of turns, oldest first.
type History []Turn

// Last returns the most recent turn.
//
// Outputs:
//   - Turn: The last turn, or the zero Turn when the history is empty.
//   - bool: False when the history is empty.
func (h History) Last() (Turn, bool) {
	if len(h) == 0 {
		return Turn{}, false
	}
	return h[len(h)-1], true
}

// Tail returns the most recent n turns (or fewer when the history is shorter).
func (h History) Tail(n int) History {
	if n <= 0 || len(h) == 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// PendingSuggestion is a rephrased question offered on the immediately
// preceding assistant turn. Its presence gates whether the next user turn may
// be read as a confirmation or rejection.
type PendingSuggestion struct {
	// Question is the rephrased question the user is being asked to confirm.
	Question string
}

// Pending extracts the pending suggestion from the history tail.
//
// Description:
//
//	A suggestion is pending only when the immediately preceding turn is an
//	assistant turn carrying a non-empty SuggestedQuestion. Older suggestions
//	are dead: once any other turn follows them, a bare "yes" no longer refers
//	to anything.
//
// Outputs:
//   - PendingSuggestion: The pending suggestion.
//   - bool: False when no suggestion is pending.
func (h History) Pending() (PendingSuggestion, bool) {
	last, ok := h.Last()
	if !ok || last.Role != RoleAssistant {
		return PendingSuggestion{}, false
	}
	if strings.TrimSpace(last.SuggestedQuestion) == "" {
		return PendingSuggestion{}, false
	}
	return PendingSuggestion{Question: strings.TrimSpace(last.SuggestedQuestion)}, true
}

// LastQueryContext returns the SQL and table tag of the most recent assistant
// turn that recorded a query, scanning newest-first.
//
// Outputs:
//   - sql: The query text, or "" when none is recorded.
//   - table: The logical source tag, or "" when none is recorded.
func (h History) LastQueryContext() (sql, table string) {
	for i := len(h) - 1; i >= 0; i-- {
		t := h[i]
		if t.Role != RoleAssistant {
			continue
		}
		if t.SQL != "" || t.Table != "" {
			return t.SQL, t.Table
		}
	}
	return "", ""
}

// Excerpt renders the most recent n turns as a role-labeled, per-turn
// truncated block for inclusion in a prompt.
//
// Inputs:
//   - n: Maximum number of turns to include.
//   - perTurn: Maximum runes of content per turn. Values <= 0 mean no cap.
func (h History) Excerpt(n, perTurn int) string {
	tail := h.Tail(n)
	if len(tail) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range tail {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(truncateRunes(t.Content, perTurn))
	}
	return b.String()
}

// truncateRunes caps s at n runes without splitting a multibyte character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
