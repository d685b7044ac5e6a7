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
	"reflect"
	"testing"
)

func TestExtractEntitiesNumberedList(t *testing.T) {
	hist := History{
		{Role: RoleUser, Content: "who are the top 2 distributors this year"},
		{Role: RoleAssistant, Content: "Here are the top distributors for 2024:\n1. ACME CORP: PKR 1,000\n2. BETA LTD: PKR 900"},
	}

	got := ExtractEntities(hist)

	want := []string{"ACME CORP", "BETA LTD"}
	if !reflect.DeepEqual(got.Names, want) {
		t.Fatalf("Names = %v, want %v", got.Names, want)
	}
	if got.Kind != EntityKindDistributors {
		t.Errorf("Kind = %q, want %q", got.Kind, EntityKindDistributors)
	}
	if got.Period != "2024" {
		t.Errorf("Period = %q, want 2024", got.Period)
	}
}

func TestExtractEntitiesBoldList(t *testing.T) {
	hist := History{
		{Role: RoleAssistant, Content: "Your best products last 3 months:\n**Choco Wafer** - PKR 5,600,000\n**Milk Biscuit** - PKR 4,100,000"},
	}

	got := ExtractEntities(hist)

	want := []string{"Choco Wafer", "Milk Biscuit"}
	if !reflect.DeepEqual(got.Names, want) {
		t.Fatalf("Names = %v, want %v", got.Names, want)
	}
	if got.Kind != EntityKindProducts {
		t.Errorf("Kind = %q, want %q", got.Kind, EntityKindProducts)
	}
	if got.Period != "last 3 months" {
		t.Errorf("Period = %q, want %q", got.Period, "last 3 months")
	}
}

func TestExtractEntitiesPipeTable(t *testing.T) {
	hist := History{
		{Role: RoleAssistant, Content: "| Distributor | Sales |\n|---|---|\n| NORTH TRADERS | PKR 2,000 |\n| SOUTH FOODS | PKR 1,500 |"},
	}

	got := ExtractEntities(hist)

	want := []string{"NORTH TRADERS", "SOUTH FOODS"}
	if !reflect.DeepEqual(got.Names, want) {
		t.Fatalf("Names = %v, want %v", got.Names, want)
	}
}

func TestExtractEntitiesNewestTurnWins(t *testing.T) {
	hist := History{
		{Role: RoleAssistant, Content: "1. OLD ONE: PKR 10\n2. OLD TWO: PKR 9"},
		{Role: RoleUser, Content: "and this month?"},
		{Role: RoleAssistant, Content: "1. NEW ONE: PKR 100\n2. NEW TWO: PKR 90"},
	}

	got := ExtractEntities(hist)

	want := []string{"NEW ONE", "NEW TWO"}
	if !reflect.DeepEqual(got.Names, want) {
		t.Fatalf("Names = %v, want %v", got.Names, want)
	}
}

func TestExtractEntitiesRequiresCurrencyMarker(t *testing.T) {
	hist := History{
		{Role: RoleAssistant, Content: "Steps:\n1. Open the report: monthly view\n2. Pick a range: any dates"},
	}

	if got := ExtractEntities(hist); !got.Empty() {
		t.Fatalf("expected empty set for list without amounts, got %v", got.Names)
	}
}

func TestExtractEntitiesDedupesCaseInsensitively(t *testing.T) {
	hist := History{
		{Role: RoleAssistant, Content: "1. Acme Corp: PKR 10\n2. ACME CORP: PKR 9\n3. Beta Ltd: PKR 8"},
	}

	got := ExtractEntities(hist)

	want := []string{"Acme Corp", "Beta Ltd"}
	if !reflect.DeepEqual(got.Names, want) {
		t.Fatalf("Names = %v, want %v", got.Names, want)
	}
}

func TestExtractEntitiesEmptyHistory(t *testing.T) {
	got := ExtractEntities(nil)
	if !got.Empty() {
		t.Fatalf("expected empty set, got %v", got.Names)
	}
	if got.Kind != EntityKindNone {
		t.Errorf("Kind = %q, want %q", got.Kind, EntityKindNone)
	}
}

func TestHasReferentialLanguage(t *testing.T) {
	cases := []struct {
		utterance string
		want      bool
	}{
		{"show sales for each of these", true},
		{"compare them by month", true},
		{"top distributors this year", false},
		{"total revenue in 2024", false},
	}
	for _, tc := range cases {
		if got := HasReferentialLanguage(tc.utterance); got != tc.want {
			t.Errorf("HasReferentialLanguage(%q) = %v, want %v", tc.utterance, got, tc.want)
		}
	}
}

func TestPendingSuggestion(t *testing.T) {
	t.Run("present on last assistant turn", func(t *testing.T) {
		hist := History{
			{Role: RoleUser, Content: "top sellers oast year"},
			{Role: RoleAssistant, Content: "Did you mean...", SuggestedQuestion: "Who were the top sellers last year?", Type: "suggestion"},
		}
		p, ok := hist.Pending()
		if !ok {
			t.Fatal("expected a pending suggestion")
		}
		if p.Question != "Who were the top sellers last year?" {
			t.Errorf("Question = %q", p.Question)
		}
	})

	t.Run("dead once another turn follows", func(t *testing.T) {
		hist := History{
			{Role: RoleAssistant, Content: "Did you mean...", SuggestedQuestion: "Who were the top sellers last year?"},
			{Role: RoleUser, Content: "actually show products"},
			{Role: RoleAssistant, Content: "Here are the products."},
		}
		if _, ok := hist.Pending(); ok {
			t.Fatal("suggestion should not survive intervening turns")
		}
	})

	t.Run("absent on user turn", func(t *testing.T) {
		hist := History{{Role: RoleUser, Content: "hello"}}
		if _, ok := hist.Pending(); ok {
			t.Fatal("user turn cannot carry a pending suggestion")
		}
	})
}

func TestHistoryTailAndExcerpt(t *testing.T) {
	hist := History{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
		{Role: RoleUser, Content: "three"},
	}

	if got := hist.Tail(2); len(got) != 2 || got[0].Content != "two" {
		t.Fatalf("Tail(2) = %v", got)
	}
	if got := hist.Tail(10); len(got) != 3 {
		t.Fatalf("Tail(10) = %v", got)
	}

	excerpt := hist.Excerpt(2, 0)
	want := "Assistant: two\nUser: three"
	if excerpt != want {
		t.Fatalf("Excerpt = %q, want %q", excerpt, want)
	}
}

func TestHistoryLastQueryContext(t *testing.T) {
	hist := History{
		{Role: RoleAssistant, Content: "old", SQL: "SELECT 1", Table: "primary"},
		{Role: RoleUser, Content: "ok"},
		{Role: RoleAssistant, Content: "newer", SQL: "SELECT 2", Table: "secondary"},
		{Role: RoleAssistant, Content: "small talk, no query"},
	}

	sql, table := hist.LastQueryContext()
	if sql != "SELECT 2" || table != "secondary" {
		t.Fatalf("LastQueryContext = (%q, %q)", sql, table)
	}
}
