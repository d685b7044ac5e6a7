// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlgen builds the SQL-generation prompt, cleans up model output,
// and tags queries with their logical source table. The warehouse keys dates
// as YYYYMMDD integers (DATEKEY), so relative windows are precomputed here
// and spelled out in the prompt instead of trusting the model with calendar
// arithmetic.
package sqlgen

import (
	"fmt"
	"time"
)

// DateContext carries the precomputed date windows injected into the
// generation prompt. All *Key fields are YYYYMMDD integers.
type DateContext struct {
	Now time.Time

	CurrentDateKey int
	CurrentYear    int

	// Last calendar month.
	LastMonthStartKey int
	LastMonthEndKey   int

	// Last three whole calendar months (month-3 through month-1).
	ThreeMonthsStartKey int
	ThreeMonthsEndKey   int

	// Current and previous calendar years.
	CurrentYearStartKey int
	CurrentYearEndKey   int
	PrevYearStartKey    int
	PrevYearEndKey      int

	// Past three whole calendar years plus the current year to date.
	ThreeYearsStartKey int
}

// NewDateContext derives every window from a single clock reading.
//
// Description:
//
//	Windows are whole calendar units. "Last month" is the previous calendar
//	month; "last 3 months" is [first day of month-3, last day of month-1].
//	Month arithmetic starts from the first of the current month so that
//	AddDate's month normalization handles year rollover: asked in January,
//	"last 3 months" is October through December of the previous year.
//
// Inputs:
//   - now: The clock reading to derive from. Time of day is ignored.
func NewDateContext(now time.Time) DateContext {
	year, month, _ := now.Date()
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())

	lastMonthStart := firstOfMonth.AddDate(0, -1, 0)
	lastMonthEnd := firstOfMonth.AddDate(0, 0, -1)
	threeMonthsStart := firstOfMonth.AddDate(0, -3, 0)

	return DateContext{
		Now:            now,
		CurrentDateKey: DateKey(now),
		CurrentYear:    year,

		LastMonthStartKey: DateKey(lastMonthStart),
		LastMonthEndKey:   DateKey(lastMonthEnd),

		ThreeMonthsStartKey: DateKey(threeMonthsStart),
		ThreeMonthsEndKey:   DateKey(lastMonthEnd),

		CurrentYearStartKey: year*10000 + 101,
		CurrentYearEndKey:   year*10000 + 1231,
		PrevYearStartKey:    (year-1)*10000 + 101,
		PrevYearEndKey:      (year-1)*10000 + 1231,

		ThreeYearsStartKey: (year-3)*10000 + 101,
	}
}

// DateKey converts a time to its YYYYMMDD integer key.
func DateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// PromptBlock renders the windows as prompt text the model can copy keys
// out of verbatim.
func (dc DateContext) PromptBlock() string {
	return fmt.Sprintf(`Today's DATEKEY is %d (current year %d).
Relative date windows as DATEKEY ranges (inclusive):
- Last month: %d to %d
- Last 3 months: %d to %d
- This year: %d to %d
- Last year: %d to %d
- Past 3 years: %d to %d`,
		dc.CurrentDateKey, dc.CurrentYear,
		dc.LastMonthStartKey, dc.LastMonthEndKey,
		dc.ThreeMonthsStartKey, dc.ThreeMonthsEndKey,
		dc.CurrentYearStartKey, dc.CurrentYearEndKey,
		dc.PrevYearStartKey, dc.PrevYearEndKey,
		dc.ThreeYearsStartKey, dc.CurrentDateKey)
}
