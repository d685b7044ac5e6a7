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
	"strings"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestNewDateContextMidYear(t *testing.T) {
	dc := NewDateContext(day(2024, time.June, 15))

	if dc.CurrentDateKey != 20240615 {
		t.Errorf("CurrentDateKey = %d", dc.CurrentDateKey)
	}
	if dc.LastMonthStartKey != 20240501 || dc.LastMonthEndKey != 20240531 {
		t.Errorf("last month = [%d, %d]", dc.LastMonthStartKey, dc.LastMonthEndKey)
	}
	if dc.ThreeMonthsStartKey != 20240301 || dc.ThreeMonthsEndKey != 20240531 {
		t.Errorf("last 3 months = [%d, %d]", dc.ThreeMonthsStartKey, dc.ThreeMonthsEndKey)
	}
	if dc.CurrentYearStartKey != 20240101 || dc.CurrentYearEndKey != 20241231 {
		t.Errorf("this year = [%d, %d]", dc.CurrentYearStartKey, dc.CurrentYearEndKey)
	}
	if dc.PrevYearStartKey != 20230101 || dc.PrevYearEndKey != 20231231 {
		t.Errorf("last year = [%d, %d]", dc.PrevYearStartKey, dc.PrevYearEndKey)
	}
	if dc.ThreeYearsStartKey != 20210101 {
		t.Errorf("past 3 years start = %d", dc.ThreeYearsStartKey)
	}
}

// January is the window every hand-rolled month computation gets wrong:
// every relative month is in the previous year.
func TestNewDateContextJanuaryRollover(t *testing.T) {
	dc := NewDateContext(day(2025, time.January, 10))

	if dc.LastMonthStartKey != 20241201 || dc.LastMonthEndKey != 20241231 {
		t.Errorf("last month = [%d, %d], want December 2024", dc.LastMonthStartKey, dc.LastMonthEndKey)
	}
	if dc.ThreeMonthsStartKey != 20241001 || dc.ThreeMonthsEndKey != 20241231 {
		t.Errorf("last 3 months = [%d, %d], want Oct-Dec 2024", dc.ThreeMonthsStartKey, dc.ThreeMonthsEndKey)
	}
}

func TestNewDateContextMarchStraddle(t *testing.T) {
	dc := NewDateContext(day(2025, time.March, 5))

	if dc.ThreeMonthsStartKey != 20241201 || dc.ThreeMonthsEndKey != 20250228 {
		t.Errorf("last 3 months = [%d, %d], want Dec 2024 - Feb 2025", dc.ThreeMonthsStartKey, dc.ThreeMonthsEndKey)
	}
}

func TestNewDateContextLeapFebruary(t *testing.T) {
	dc := NewDateContext(day(2024, time.March, 1))

	if dc.LastMonthEndKey != 20240229 {
		t.Errorf("last month end = %d, want leap-day 20240229", dc.LastMonthEndKey)
	}
}

func TestPromptBlockContainsWindows(t *testing.T) {
	dc := NewDateContext(day(2024, time.June, 15))
	block := dc.PromptBlock()

	for _, want := range []string{"20240615", "20240501 to 20240531", "20240301 to 20240531", "20230101 to 20231231"} {
		if !strings.Contains(block, want) {
			t.Errorf("prompt block missing %q:\n%s", want, block)
		}
	}
}
