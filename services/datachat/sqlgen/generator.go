// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/DataChat/services/datachat/conversation"
	"github.com/AleutianAI/DataChat/services/llm"
)

// Generation prompt shape.
const (
	// historyTailTurns is how many prior turns ride along in the prompt.
	historyTailTurns = 4

	// historyTurnTruncate caps each prior turn's content in the prompt.
	historyTurnTruncate = 300

	// GenerationTemperature and GenerationMaxTokens are the sampling
	// options for SQL generation: low temperature, enough room for a CTE.
	GenerationTemperature = 0.2
	GenerationMaxTokens   = 1500
)

// BuildGenerationMessages assembles the chat messages for turning a question
// into SQL.
//
// Description:
//
//	System message: role, hard output rules (one read-only SELECT/WITH
//	statement, no prose, no markup), the schema description, and the
//	precomputed date windows. Prior turns ride along as labeled context
//	lines, truncated per turn. When the question leans on earlier answers
//	("each of these") and an entity set was recovered, the names are
//	spelled out so the model can filter on them explicitly.
//
// Inputs:
//   - question: The effective question (post-confirmation substitution).
//   - hist: Conversation history, oldest first.
//   - entities: Entity set recovered from prior answers; may be empty.
//   - schemaDesc: The warehouse schema description text.
//   - dc: Precomputed date windows.
//
// Outputs:
//   - []llm.Message: Messages ready for a Complete call.
func BuildGenerationMessages(question string, hist conversation.History, entities conversation.EntitySet, schemaDesc string, dc DateContext) []llm.Message {
	var sys strings.Builder
	sys.WriteString("You are a senior SQL analyst for a consumer-goods sales warehouse. ")
	sys.WriteString("Translate the user's question into exactly one read-only SQL query.\n\n")
	sys.WriteString("Rules:\n")
	sys.WriteString("- Output ONLY the SQL statement. No explanation, no markdown fences.\n")
	sys.WriteString("- The statement must start with SELECT or WITH. Never write data.\n")
	sys.WriteString("- Use only tables and columns from the schema below.\n")
	sys.WriteString("- Dates are YYYYMMDD integer DATEKEY values; use the precomputed ranges.\n")
	sys.WriteString("- Prefer TOP N over unbounded result sets when the question implies ranking.\n\n")
	sys.WriteString("Schema:\n")
	sys.WriteString(schemaDesc)
	sys.WriteString("\n\n")
	sys.WriteString(dc.PromptBlock())

	if !entities.Empty() {
		sys.WriteString("\n\nThe user may refer to this previously discussed list of ")
		if entities.Kind == conversation.EntityKindNone {
			sys.WriteString("entities")
		} else {
			sys.WriteString(entities.Kind)
		}
		if entities.Period != "" {
			fmt.Fprintf(&sys, " (%s)", entities.Period)
		}
		sys.WriteString(": ")
		sys.WriteString(strings.Join(entities.Names, "; "))
		sys.WriteString(". When the question says \"these\" or \"each\", filter on exactly these names.")
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: sys.String()}}

	for _, t := range hist.Tail(historyTailTurns) {
		label := "Previous question"
		if t.Role == conversation.RoleAssistant {
			label = "Previous context"
		}
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: label + ": " + truncate(t.Content, historyTurnTruncate),
		})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages
}

// fenceLinePattern strips ``` and ```sql fence lines from model output.
var fenceLinePattern = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// CleanSQL normalizes raw model output into a bare statement.
//
// Description:
//
//	Strips markdown fence lines, one layer of surrounding quotes, leading
//	"sql" tags, and a single trailing semicolon. Returns "" when nothing
//	statement-like remains; the caller treats that as a generation failure.
func CleanSQL(raw string) string {
	s := fenceLinePattern.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)

	for _, q := range []string{`"`, "'", "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
			break
		}
	}

	// Some models prefix a bare "sql" line even without fences.
	if len(s) > 4 && strings.EqualFold(s[:3], "sql") && s[3] == '\n' {
		s = strings.TrimSpace(s[4:])
	}

	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	return s
}

// Logical source tags for a query, derived from the first recognized table
// mention.
const (
	TablePrimary     = "primary"
	TableSecondary   = "secondary"
	TableProduct     = "product"
	TableDistributor = "distributor"
	TableUnknown     = "unknown"
)

var tableTagPatterns = []struct {
	pattern *regexp.Regexp
	tag     string
}{
	{regexp.MustCompile(`(?i)\bFACT_SALES_ORDER\b`), TablePrimary},
	{regexp.MustCompile(`(?i)\bFACT_SECONDARY_SALES\b`), TableSecondary},
	{regexp.MustCompile(`(?i)\bDIMPRODUCT\b`), TableProduct},
	{regexp.MustCompile(`(?i)\bDIMDISTRIBUTION\b`), TableDistributor},
}

// ExtractTableTag tags a query by the first recognized warehouse table it
// mentions, scanning fact tables before dimensions so a join is tagged by
// its fact side.
func ExtractTableTag(sql string) string {
	for _, tt := range tableTagPatterns {
		if tt.pattern.MatchString(sql) {
			return tt.tag
		}
	}
	return TableUnknown
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
