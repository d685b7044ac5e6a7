// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/DataChat/services/datachat/conversation"
	"github.com/AleutianAI/DataChat/services/llm"
)

// Failure kinds fed to the recovery coordinator. They shape the rephrasing
// prompt and the metrics label, nothing else.
const (
	failureGeneration = "generation"
	failureSafety     = "safety"
	failureSyntax     = "syntax"
)

// Recovery prompt shape.
const (
	recoveryContextTurns   = 3
	recoveryTurnTruncate   = 200
	recoveryTemperature    = 0.7
	recoveryMaxTokens      = 200
	recoveryMaxSuggestRune = 300
)

// recover runs the one-round suggest-and-confirm protocol.
//
// Description:
//
//	Asks the provider for exactly one rephrased question and wraps it in a
//	suggestion envelope, which becomes the pending suggestion the next
//	turn can confirm. When the provider fails, returns nothing usable, or
//	echoes the original question back unchanged (case-insensitively), the
//	user gets a generic clarification instead and nothing is left pending.
//	At most one round per request; a second generation attempt happens only
//	on explicit confirmation.
//
// Inputs:
//   - ctx: Request context.
//   - question: The utterance that failed.
//   - failureKind: failureGeneration, failureSafety, or failureSyntax.
//   - hist: Conversation history for prompt context.
//   - entities: Entity set; spelled into the prompt only when the
//     utterance leans on referential language.
//
// Outputs:
//   - *Response: A suggestion or clarification envelope, never nil.
func (o *Orchestrator) recoverWithSuggestion(ctx context.Context, question, failureKind string, hist conversation.History, entities conversation.EntitySet) *Response {
	suggested, err := o.suggestRephrased(ctx, question, failureKind, hist, entities)
	if err != nil {
		o.logger.Warn("rephrase suggestion failed",
			slog.String("failure", failureKind),
			slog.String("error", llm.SafeLogString(err.Error())))
		recoveryOutcomes.WithLabelValues(failureKind, "clarification").Inc()
		return respond(TypeClarificationNeeded, clarificationText)
	}

	suggested = cleanSuggestion(suggested)
	if suggested == "" || strings.EqualFold(suggested, strings.TrimSpace(question)) {
		recoveryOutcomes.WithLabelValues(failureKind, "clarification").Inc()
		return respond(TypeClarificationNeeded, clarificationText)
	}

	recoveryOutcomes.WithLabelValues(failureKind, "suggestion").Inc()
	resp := respond(TypeSuggestion, suggestionAnswer(suggested))
	resp.SuggestedQuestion = suggested
	return resp
}

// suggestRephrased asks the provider for a single rephrased question.
func (o *Orchestrator) suggestRephrased(ctx context.Context, question, failureKind string, hist conversation.History, entities conversation.EntitySet) (string, error) {
	var sys strings.Builder
	sys.WriteString("You help users of a sales analytics chatbot fix questions that could not be answered. ")
	sys.WriteString("Rewrite the user's question as one clear, answerable question about sales data. ")
	sys.WriteString("Fix typos (e.g. \"oast\" means \"past\") and vague wording. ")
	sys.WriteString("Return ONLY the rewritten question. No preamble, no quotes, no markdown.\n\n")

	switch failureKind {
	case failureSafety:
		sys.WriteString("The previous attempt produced a query that was not read-only; keep the rewrite strictly about reading data.\n")
	case failureSyntax:
		sys.WriteString("The previous attempt produced SQL the warehouse rejected; prefer a simpler phrasing.\n")
	default:
		sys.WriteString("The previous attempt could not be translated into a query at all.\n")
	}

	if excerpt := hist.Excerpt(recoveryContextTurns, recoveryTurnTruncate); excerpt != "" {
		sys.WriteString("\nRecent conversation:\n")
		sys.WriteString(excerpt)
		sys.WriteString("\n")
	}
	if conversation.HasReferentialLanguage(question) && !entities.Empty() {
		sys.WriteString("\nThe user is referring to: ")
		sys.WriteString(strings.Join(entities.Names, "; "))
		sys.WriteString(". Name them explicitly in the rewrite.\n")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: sys.String()},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Failed question: %s", question)},
	}
	return o.provider.Complete(ctx, messages, llm.Options{
		Temperature: recoveryTemperature,
		MaxTokens:   recoveryMaxTokens,
	})
}

// cleanSuggestion strips quotes and markup a chatty model wraps around the
// rewritten question, and rejects suggestions too long to be a question.
func cleanSuggestion(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, "'", "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
			break
		}
	}
	// A multi-line reply means the model ignored the format; keep the
	// first line only.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	if len([]rune(s)) > recoveryMaxSuggestRune {
		return ""
	}
	return s
}
