// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"regexp"
	"strings"
)

// Entity kind tags for an EntitySet.
const (
	EntityKindDistributors = "distributors"
	EntityKindProducts     = "products"
	EntityKindNone         = "none"
)

// EntitySet holds named entities recovered from a prior assistant answer,
// used to resolve referential follow-ups ("sales for each of these").
type EntitySet struct {
	// Names are the entity names in first-appearance order, deduplicated
	// case-insensitively.
	Names []string

	// Kind classifies the names: "distributors", "products", or "none" when
	// the source wording gives no signal.
	Kind string

	// Period is an optional time period mentioned alongside the list, e.g.
	// "2024" or "last 3 months". Empty when none was found.
	Period string
}

// Empty reports whether the set carries no names.
func (e EntitySet) Empty() bool { return len(e.Names) == 0 }

// List-of-named-amounts patterns. Each captures a candidate name that must be
// followed by a currency marker on the same line. Checked in order within a
// turn; the first pattern that yields any match wins for that turn, so a
// numbered list of bold names is not double-counted.
var (
	currencyMarker = `(?:PKR|Rs\.?|\$|USD)`

	numberedItemPattern = regexp.MustCompile(`(?m)^\s*\d+\.\s*\**([^:*\n|]+?)\**\s*[:\-]\s*.*?` + currencyMarker)
	boldItemPattern     = regexp.MustCompile(`(?m)\*\*([^*\n|]+?)\*\*\s*[:\-]?\s*.*?` + currencyMarker)
	bulletItemPattern   = regexp.MustCompile(`(?m)^\s*[-•*]\s*\**([^:*\n|]+?)\**\s*[:\-]\s*.*?` + currencyMarker)
	tableRowPattern     = regexp.MustCompile(`(?m)^\|\s*([^|\n]+?)\s*\|[^|\n]*` + currencyMarker)

	yearMentionPattern  = regexp.MustCompile(`\b(20\d{2})\b`)
	lastPeriodPattern   = regexp.MustCompile(`(?i)\blast\s+\d+\s+(?:months?|days?|weeks?|years?)\b`)
	productWordPattern  = regexp.MustCompile(`(?i)\bproducts?\b`)
	distributorPattern  = regexp.MustCompile(`(?i)\bdistributors?\b`)
	purelyNumericName   = regexp.MustCompile(`^[\d,.\s]+$`)
)

// maxEntityNames caps the number of names carried forward into a prompt.
const maxEntityNames = 20

// ExtractEntities recovers a named-entity list from the most recent assistant
// answer that contains one.
//
// Description:
//
//	Scans assistant turns newest-first. The first turn whose text matches a
//	named-amount list pattern (numbered, bold-markdown, bulleted, or
//	pipe-table rows, with a currency marker after the name) supplies the
//	whole set; older turns are not merged in. Candidate names are trimmed,
//	filtered to a plausible length (3..60 runes, not purely numeric),
//	deduplicated case-insensitively, and kept in first-appearance order.
//
//	This never errors: a history with no such answer yields an empty set,
//	which downstream code treats as "no referential context available".
//
// Inputs:
//   - hist: The conversation history, oldest first.
//
// Outputs:
//   - EntitySet: The recovered names, kind tag, and optional period.
func ExtractEntities(hist History) EntitySet {
	for i := len(hist) - 1; i >= 0; i-- {
		t := hist[i]
		if t.Role != RoleAssistant || t.Content == "" {
			continue
		}
		names := extractNames(t.Content)
		if len(names) == 0 {
			continue
		}
		return EntitySet{
			Names:  names,
			Kind:   classifyEntityKind(t.Content),
			Period: extractPeriod(t.Content),
		}
	}
	return EntitySet{Kind: EntityKindNone}
}

// extractNames applies the list patterns in priority order and returns the
// filtered, deduplicated capture set of the first pattern that matched.
func extractNames(text string) []string {
	for _, p := range []*regexp.Regexp{numberedItemPattern, bulletItemPattern, tableRowPattern, boldItemPattern} {
		matches := p.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		names := make([]string, 0, len(matches))
		seen := make(map[string]bool, len(matches))
		for _, m := range matches {
			name := strings.TrimSpace(m[1])
			if !plausibleEntityName(name) {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, name)
			if len(names) == maxEntityNames {
				break
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

// plausibleEntityName filters out header rows, bare numbers, and fragments
// too short or long to be a distributor or product name.
func plausibleEntityName(name string) bool {
	n := len([]rune(name))
	if n < 3 || n > 60 {
		return false
	}
	if purelyNumericName.MatchString(name) {
		return false
	}
	// Pipe-table header rows ("Name", "Distributor") are indistinguishable
	// from data by shape; filter the common header words.
	switch strings.ToLower(name) {
	case "name", "distributor", "product", "total", "amount", "sales", "value", "---", "rank":
		return false
	}
	if strings.HasPrefix(name, "---") {
		return false
	}
	return true
}

func classifyEntityKind(text string) string {
	switch {
	case productWordPattern.MatchString(text):
		return EntityKindProducts
	case distributorPattern.MatchString(text):
		return EntityKindDistributors
	default:
		return EntityKindNone
	}
}

func extractPeriod(text string) string {
	if m := lastPeriodPattern.FindString(text); m != "" {
		return strings.ToLower(m)
	}
	if m := yearMentionPattern.FindString(text); m != "" {
		return m
	}
	return ""
}

// ReferentialLanguage reports whether an utterance points back at a prior
// result set ("each of these", "compare them").
var referentialWordPattern = regexp.MustCompile(`(?i)\b(these|those|them|each|they|that list|the above)\b`)

// HasReferentialLanguage reports whether the utterance references prior
// context rather than naming its subjects.
func HasReferentialLanguage(utterance string) bool {
	return referentialWordPattern.MatchString(utterance)
}
