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
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/AleutianAI/DataChat/services/datachat/charts"
)

// Response type tags. Every handled turn resolves to exactly one of these;
// the client switches rendering on the tag, never on the answer text.
const (
	TypeSuccess              = "success"
	TypeEmptyResult          = "empty_result"
	TypeMetadata             = "metadata"
	TypeConversational       = "conversational"
	TypeSuggestion           = "suggestion"
	TypeRejection            = "rejection"
	TypeClarificationNeeded  = "clarification_needed"
	TypeErrorWithSuggestions = "error_with_suggestions"
	TypeDatabaseError        = "database_error"
	TypeFallback             = "fallback"
	TypeTimeout              = "timeout"
	TypeError                = "error"
)

// Response is the envelope for one handled turn.
//
// Description:
//
//	Handled business outcomes (including handled failures like
//	database_error) carry Status 200; only provider timeouts (504) and
//	orchestrator-boundary surprises (500) leave the 200 class. Status is
//	transport plumbing and never serialized.
type Response struct {
	Answer            string             `json:"answer"`
	RowCount          int                `json:"rowCount"`
	Type              string             `json:"type"`
	SQL               string             `json:"sql,omitempty"`
	Table             string             `json:"table,omitempty"`
	SuggestedQuestion string             `json:"suggestedQuestion,omitempty"`
	ChartData         *charts.Descriptor `json:"chartData,omitempty"`
	ChartType         string             `json:"chartType,omitempty"`
	RawData           []map[string]any   `json:"rawData,omitempty"`

	Status int `json:"-"`
}

func respond(typ, answer string) *Response {
	return &Response{Type: typ, Answer: answer, Status: http.StatusOK}
}

// ============================================================================
// Canned texts
// ============================================================================

const (
	rejectionText = "No problem. Could you rephrase your question? " +
		"It helps to name the measure (sales, quantity, growth), the subject " +
		"(a product, a distributor, a region), and the time period you mean."

	clarificationText = "I couldn't quite work out what data you're after. " +
		"Could you rephrase the question with the measure, subject, and time " +
		"period spelled out? For example: \"top 5 distributors by sales last month\"."

	databaseErrorText = "I couldn't fetch that data right now. The warehouse " +
		"didn't accept the query, which usually means a temporary issue on the " +
		"data side. Please try again in a moment."

	errorWithSuggestionsText = "That question didn't translate into a working " +
		"query. A few things that usually help:\n" +
		"- Name the measure: sales value, quantity, order count\n" +
		"- Name the subject: a product, a distributor, a region\n" +
		"- Give a time period: last month, 2024, past 3 years"

	generationTimeoutText = "The model took too long to answer. The %s backend " +
		"may be busy or still loading; please try again, or simplify the question."

	composeTimeoutText = "I found the data (%d rows) but ran out of time writing " +
		"it up. Please try again; the result itself is fine."

	panicText = "Something went wrong on our side while handling that question. " +
		"It has been logged; please try again."

	identityText = "I'm DataChat, the sales analytics assistant. Ask me about " +
		"orders, secondary sales, products, or distributors in plain language " +
		"and I'll query the warehouse for you."

	capabilitiesText = "I can answer questions about the sales warehouse: " +
		"totals and trends (\"total sales last month\"), rankings (\"top 5 " +
		"distributors this year\"), comparisons (\"this year vs last year\"), " +
		"and breakdowns by product, distributor, region, or time. I can also " +
		"draw simple charts - just ask for one."

	conversationalFallbackText = "Happy to help - ask me anything about your " +
		"sales data."

	metadataPrimaryText = "That answer came from the primary sales data " +
		"(FACT_SALES_ORDER): orders placed by distributors with the company. " +
		"Amounts are order values in PKR, dated by order date."

	metadataSecondaryText = "That answer came from the secondary sales data " +
		"(FACT_SECONDARY_SALES): distributor sell-through to retailers. " +
		"Amounts are invoice values in PKR, dated by invoice date."

	metadataProductText = "That answer used the product master (DIMPRODUCT), " +
		"which holds product codes, names, brands, and categories."

	metadataDistributorText = "That answer used the distributor master " +
		"(DIMDISTRIBUTION), which holds distributor codes, names, regions, " +
		"and zones."

	metadataUnknownText = "I don't have a recorded query for the previous " +
		"answer, so I can't say which table it came from. Ask a data question " +
		"and I'll tell you exactly where the answer comes from."
)

// suggestionAnswer wraps a rephrased question in the confirm-or-rephrase
// framing the client renders for type "suggestion".
func suggestionAnswer(suggested string) string {
	return fmt.Sprintf("I couldn't answer that as asked. Did you mean:\n\n**%s**\n\nReply \"yes\" to run it, or rephrase your question.", suggested)
}

// formatRowsFallback renders up to ten rows as a numbered plain-text summary
// for the fallback envelope, used when answer composition fails but the data
// is already in hand.
func formatRowsFallback(columns []string, rows []map[string]any) string {
	const maxRows = 10

	var b strings.Builder
	b.WriteString("Here's the data I found:\n\n")
	n := len(rows)
	if n > maxRows {
		n = maxRows
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatRow(columns, rows[i]))
	}
	if len(rows) > maxRows {
		fmt.Fprintf(&b, "\n...and %d more rows.", len(rows)-maxRows)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRow(columns []string, row map[string]any) string {
	keys := columns
	if len(keys) == 0 {
		keys = make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("**%s**: %v", k, v))
	}
	return strings.Join(parts, " | ")
}
