// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety gates generated SQL before it can reach the warehouse.
//
// The validator is deliberately a conservative textual check, not a SQL
// parser: an allow-listed statement start, a deny-list of write/DDL/procedure
// keywords matched on word boundaries, and a ban on statement chaining. It
// will reject some legitimate queries (a column literally named "created" is
// fine, but a string literal containing "DELETE" is not); that trade is
// intentional. The check is pure and deterministic, so a verdict for a given
// string never changes.
package safety

import (
	"regexp"
	"strings"
)

// Statements must start with one of these after trimming, case-insensitive.
var allowedPrefixes = []string{"SELECT", "WITH"}

// Deny-listed keywords, matched on word boundaries anywhere in the query.
// Word boundaries keep substrings safe: ORDER_UPDATE_DATE as a column name
// does not trip UPDATE, but "-- DROP TABLE" in a comment does trip DROP.
var denyPattern = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|EXEC|EXECUTE|SP_EXECUTESQL|GRANT|REVOKE|MERGE|BULK\s+INSERT)\b`)

// Extended stored procedures (XP_CMDSHELL and friends) have no closing word
// boundary requirement: any XP_-prefixed token is out.
var xpPattern = regexp.MustCompile(`(?i)\bXP_\w*`)

// IsSafe reports whether a generated query is acceptable to execute.
//
// Description:
//
//	Three rules, all required:
//	  1. The trimmed query starts with SELECT or WITH (case-insensitive).
//	  2. No deny-listed keyword appears anywhere, on a word boundary.
//	  3. After stripping at most one trailing semicolon, no semicolon
//	     remains (no statement chaining).
//
//	An empty or whitespace-only query is unsafe.
//
// Inputs:
//   - query: The candidate SQL text, as produced by cleanup.
//
// Outputs:
//   - bool: True only when every rule passes.
//
// Thread Safety: Pure function; safe for concurrent use.
func IsSafe(query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}

	upper := strings.ToUpper(trimmed)
	allowed := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(upper, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	if denyPattern.MatchString(trimmed) || xpPattern.MatchString(trimmed) {
		return false
	}

	// One trailing semicolon is tolerated; any other semicolon means a
	// second statement could ride along.
	body := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	return !strings.Contains(body, ";")
}
