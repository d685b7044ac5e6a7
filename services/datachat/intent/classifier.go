// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent classifies a user utterance into the route the pipeline
// takes for it. The classifier is a deterministic, ordered pattern cascade:
// no model call, no error path, always an answer.
package intent

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/DataChat/services/datachat/conversation"
)

// Intent is the routing decision for one utterance.
type Intent int

// Cascade outcomes, in evaluation order. DataQuery is the default when no
// earlier branch matches.
const (
	IntentDataQuery Intent = iota
	IntentRejection
	IntentConfirmation
	IntentMetadata
	IntentConversational
)

// String returns the intent name used in logs and metrics labels.
func (i Intent) String() string {
	switch i {
	case IntentRejection:
		return "rejection"
	case IntentConfirmation:
		return "confirmation"
	case IntentMetadata:
		return "metadata"
	case IntentConversational:
		return "conversational"
	default:
		return "data_query"
	}
}

// ============================================================================
// Pattern tables
// ============================================================================

// Affirmative and negative acknowledgements. Anchored to the start of the
// utterance and required to end at a word break, so "yes, show me" matches
// but "yesterday's sales" does not.
var (
	confirmationPattern = regexp.MustCompile(`(?i)^(yes|yeah|yep|yup|sure|ok|okay|alright|correct|right|that's right|exactly|i want that|i mean that|yes i want|yes i mean)(\s|$|\.|!|,)`)
	rejectionPattern    = regexp.MustCompile(`(?i)^(no|nope|nah|not really|not exactly|that's not|incorrect|wrong)(\s|$|\.|!|,)`)
)

// Provenance questions about how the previous answer was produced.
var metadataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(is|was)\s+(this|that|it)\s+(data\s+)?(from|sourced|pulled|taken)\b`),
	regexp.MustCompile(`(?i)\bwhich\s+table\b`),
	regexp.MustCompile(`(?i)\bwhat\s+table\b`),
	regexp.MustCompile(`(?i)\b(does|did)\s+(this|that|it)\s+(use|come\s+from|query)\b`),
	regexp.MustCompile(`(?i)\bwhere\s+(is|was|does|did)\s+(this|that|it|the\s+data)\s+(from|come)\b`),
	regexp.MustCompile(`(?i)\b(primary|secondary)\s+sales\s+(table|data)\b`),
}

// Explicit small-talk shapes: greetings, identity questions, gratitude,
// casual reactions, bare acknowledgements, opinions.
var conversationalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|greetings|good\s+(morning|afternoon|evening))(\s|$|!|\.)`),
	regexp.MustCompile(`(?i)\b(who|what)\s+are\s+you\b`),
	regexp.MustCompile(`(?i)\btell\s+me\s+about\s+yourself\b`),
	regexp.MustCompile(`(?i)\bwhat\s+can\s+you\s+do\b`),
	regexp.MustCompile(`(?i)^help(\s|$|!|\.)`),
	regexp.MustCompile(`(?i)^(wow|cool|nice|great|awesome|amazing|interesting|impressive)(\s|$|!|\.)`),
	regexp.MustCompile(`(?i)^(thanks|thank\s+you|thx)(\s|$|!|\.)`),
	regexp.MustCompile(`(?i)^that('s| is)\s+(crazy|wild|cool|interesting|great|awesome|amazing)(\s|$|!|\.)`),
	regexp.MustCompile(`(?i)^(ok|okay|alright|sure|yeah|yes|no|nope)(\s|$|!|\.)`),
	regexp.MustCompile(`(?i)^(i\s+(think|believe|guess)|sounds\s+good|makes\s+sense)(\s|$|!|\.)`),
}

// Words that mark an utterance as analytic even when it is very short.
var analyticKeywordPattern = regexp.MustCompile(`(?i)\b(show|list|what|which|how|when|where|who|tell|find|get|give|provide|calculate|analyze|compare|top|best|worst|total|sum|average|count|sales|distributor|product|order|revenue|amount|growth|year|month|data)\b`)

// Follow-up shapes that lean on prior context instead of naming a subject.
var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(and|also|what about|how about|now)\b`),
	regexp.MustCompile(`(?i)\b(same|again)\b.*\b(for|but|by)\b`),
}

// shortUtteranceRunes is the length below which a keyword-free, question-free
// utterance is treated as small talk.
const shortUtteranceRunes = 15

// ============================================================================
// Predicates
// ============================================================================

// IsConfirmation reports whether the utterance affirms a pending suggestion.
// Without a pending suggestion there is nothing to confirm, so the predicate
// is false regardless of wording.
func IsConfirmation(utterance string, pending bool) bool {
	if !pending {
		return false
	}
	return confirmationPattern.MatchString(strings.TrimSpace(utterance))
}

// IsRejection reports whether the utterance declines a pending suggestion.
// Like IsConfirmation it is gated on the pending suggestion: a bare "no" with
// nothing pending is ordinary small talk, not a rejection.
func IsRejection(utterance string, pending bool) bool {
	if !pending {
		return false
	}
	return rejectionPattern.MatchString(strings.TrimSpace(utterance))
}

// IsMetadataQuestion reports whether the utterance asks about the provenance
// of a previous answer. Requires a non-empty history: with nothing answered
// yet there is no "this" to ask about.
func IsMetadataQuestion(utterance string, hist conversation.History) bool {
	if len(hist) == 0 {
		return false
	}
	for _, p := range metadataPatterns {
		if p.MatchString(utterance) {
			return true
		}
	}
	return false
}

// IsConversational reports whether the utterance is small talk.
//
// Description:
//
//	Two ways in: an explicit pattern (greeting, identity, gratitude,
//	reaction, acknowledgement), or the short-utterance rule — fewer than 15
//	runes, no question mark, and none of the analytic keywords. The keyword
//	check only applies under the length threshold; a long utterance without
//	keywords still falls through to the data-query default.
func IsConversational(utterance string) bool {
	trimmed := strings.TrimSpace(utterance)
	for _, p := range conversationalPatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	if len([]rune(trimmed)) < shortUtteranceRunes &&
		!strings.Contains(trimmed, "?") &&
		!analyticKeywordPattern.MatchString(trimmed) {
		return true
	}
	return false
}

// IsFollowUp reports whether the utterance continues a prior question rather
// than standing alone. Used to decide whether entity context is worth
// carrying into the generation prompt; it is not a cascade branch.
func IsFollowUp(utterance string, hist conversation.History) bool {
	if len(hist) == 0 {
		return false
	}
	trimmed := strings.TrimSpace(utterance)
	if conversation.HasReferentialLanguage(trimmed) {
		return true
	}
	for _, p := range followUpPatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// ============================================================================
// Cascade
// ============================================================================

// Classify routes one utterance.
//
// Description:
//
//	Ordered, first-match-wins, mutually exclusive by construction:
//	rejection, confirmation, metadata, conversational, then the data-query
//	default. Rejection and confirmation are only reachable while a
//	suggestion is pending on the immediately preceding assistant turn, so a
//	bare "yes" in an empty conversation lands in conversational via the
//	acknowledgement pattern, not in confirmation.
//
// Inputs:
//   - utterance: The user's message, already validated non-empty upstream.
//   - hist: The conversation history, oldest first.
//
// Outputs:
//   - Intent: The routing decision. Never errors.
func Classify(utterance string, hist conversation.History) Intent {
	_, pending := hist.Pending()

	switch {
	case IsRejection(utterance, pending):
		return IntentRejection
	case IsConfirmation(utterance, pending):
		return IntentConfirmation
	case IsMetadataQuestion(utterance, hist):
		return IntentMetadata
	case IsConversational(utterance):
		return IntentConversational
	default:
		return IntentDataQuery
	}
}
