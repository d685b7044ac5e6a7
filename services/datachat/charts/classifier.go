// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package charts decides whether a result set is worth charting and, if so,
// shapes it into a renderer-neutral descriptor. The decision is a
// first-match table over the column roles found in the rows; the client only
// renders what it is handed and never re-derives shape.
package charts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Chart kinds emitted in Descriptor.Kind.
const (
	KindLine = "line"
	KindBar  = "bar"
	KindPie  = "pie"
)

// Shaping limits.
const (
	// sampleLimit caps how many rows the classifier inspects and shapes.
	sampleLimit = 100

	// categoricalSliceLimit caps the points in categorical and
	// multi-numeric charts.
	categoricalSliceLimit = 30

	// pieMaxRows is the largest categorical result still drawn as a pie.
	pieMaxRows = 10

	// singleNumericMaxRows is the largest bare-numeric result charted.
	singleNumericMaxRows = 20

	// nameTruncateAt is the rune cap for categorical point labels.
	nameTruncateAt = 40

	// categoricalMaxLen is the longest string still treated as a label
	// rather than free text.
	categoricalMaxLen = 100
)

// Descriptor is a ready-to-render chart: kind, shaped points, and the field
// names the renderer should bind to its axes.
type Descriptor struct {
	Kind   string           `json:"type"`
	Points []map[string]any `json:"data"`
	XField string           `json:"xAxis,omitempty"`
	YField string           `json:"yAxis,omitempty"`
}

// timeKeyPattern marks a column as time-like by name.
var timeKeyPattern = regexp.MustCompile(`(?i)(year|month|date|day|week|quarter|time)`)

// Preferred-kind wording in the user's question.
var (
	preferLinePattern = regexp.MustCompile(`(?i)\b(line|trend|over time|time series)\b`)
	preferPiePattern  = regexp.MustCompile(`(?i)\b(pie|percentage|share|distribution)\b`)
	preferBarPattern  = regexp.MustCompile(`(?i)\b(bar|column)\b`)
	wantsChartPattern = regexp.MustCompile(`(?i)\b(chart|graph|plot|visuali[sz]e|visuali[sz]ation|draw)\b`)
)

// WantsChart reports whether the question explicitly asks for a chart.
func WantsChart(question string) bool {
	return wantsChartPattern.MatchString(question)
}

// PreferredKind returns the chart kind the question explicitly asks for, or
// "" when it expresses no preference. The preference overrides the kind of a
// classified chart but never its shaping.
func PreferredKind(question string) string {
	switch {
	case preferLinePattern.MatchString(question):
		return KindLine
	case preferPiePattern.MatchString(question):
		return KindPie
	case preferBarPattern.MatchString(question):
		return KindBar
	default:
		return ""
	}
}

// Classify shapes a result set into a chart descriptor.
//
// Description:
//
//	Works on at most the first 100 rows. Column roles are derived from the
//	first row in column order: time-like (name matches
//	year/month/date/day/week/quarter/time), numeric (number, or string that
//	parses as one), categorical (string under 100 chars). First matching
//	rule wins:
//
//	  1. time + numeric        -> line; points {x: time value, every numeric
//	                              field by name}. YYYYMMDD keys become
//	                              YYYY-MM-DD.
//	  2. categorical + numeric -> pie when <= 10 rows, else bar; points
//	                              {name, value, every numeric field by name},
//	                              names truncated to 40 runes
//	  3. >= 2 numerics         -> bar, synthetic "Item N" names, every
//	                              numeric field by name
//	  4. exactly 1 numeric, <= 20 rows -> bar, {name, value, <field>}
//	  5. otherwise             -> no chart
//
// Inputs:
//   - columns: Column names in result order. Required: map iteration order
//     is not stable, so role scanning follows this slice.
//   - rows: The result rows. Nil or empty yields nil.
//
// Outputs:
//   - *Descriptor: The shaped chart, or nil when the result has no
//     chartable shape.
func Classify(columns []string, rows []map[string]any) *Descriptor {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}
	if len(rows) > sampleLimit {
		rows = rows[:sampleLimit]
	}

	first := rows[0]
	var timeKey string
	var numericKeys []string
	var categoricalKey string

	for _, col := range columns {
		v, ok := first[col]
		if !ok {
			continue
		}
		if timeKey == "" && timeKeyPattern.MatchString(col) {
			timeKey = col
			continue
		}
		if _, ok := toFloat(v); ok {
			numericKeys = append(numericKeys, col)
			continue
		}
		if s, ok := v.(string); ok && categoricalKey == "" && len(s) < categoricalMaxLen {
			categoricalKey = col
		}
	}

	switch {
	case timeKey != "" && len(numericKeys) > 0:
		return shapeLine(rows, timeKey, numericKeys)
	case categoricalKey != "" && len(numericKeys) > 0:
		return shapeCategorical(rows, categoricalKey, numericKeys)
	case len(numericKeys) >= 2:
		return shapeMultiNumeric(rows, numericKeys)
	case len(numericKeys) == 1 && len(rows) <= singleNumericMaxRows:
		return shapeSingleNumeric(rows, numericKeys[0])
	default:
		return nil
	}
}

// shapeLine keys the time value under "x" so multi-series renderers bind the
// shared axis without knowing the source column; every numeric column rides
// along under its own name.
func shapeLine(rows []map[string]any, timeKey string, numericKeys []string) *Descriptor {
	points := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		p := map[string]any{"x": formatTimeValue(r[timeKey])}
		for _, k := range numericKeys {
			p[k] = numericValue(r[k])
		}
		points = append(points, p)
	}
	return &Descriptor{Kind: KindLine, Points: points, XField: timeKey, YField: numericKeys[0]}
}

func shapeCategorical(rows []map[string]any, nameKey string, numericKeys []string) *Descriptor {
	if len(rows) > categoricalSliceLimit {
		rows = rows[:categoricalSliceLimit]
	}
	kind := KindPie
	if len(rows) > pieMaxRows {
		kind = KindBar
	}
	points := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		p := map[string]any{
			"name":  truncateName(fmt.Sprintf("%v", r[nameKey])),
			"value": numericValue(r[numericKeys[0]]),
		}
		for _, k := range numericKeys {
			p[k] = numericValue(r[k])
		}
		points = append(points, p)
	}
	return &Descriptor{Kind: kind, Points: points, XField: nameKey, YField: numericKeys[0]}
}

// shapeMultiNumeric charts label-free rows with several measures: synthetic
// "Item N" names, one series per numeric column.
func shapeMultiNumeric(rows []map[string]any, numericKeys []string) *Descriptor {
	if len(rows) > categoricalSliceLimit {
		rows = rows[:categoricalSliceLimit]
	}
	points := make([]map[string]any, 0, len(rows))
	for i, r := range rows {
		p := map[string]any{"name": fmt.Sprintf("Item %d", i+1)}
		for _, k := range numericKeys {
			p[k] = numericValue(r[k])
		}
		points = append(points, p)
	}
	return &Descriptor{Kind: KindBar, Points: points, XField: "name", YField: numericKeys[0]}
}

// shapeSingleNumeric charts a lone measure column; the value is published
// both generically and under the column name.
func shapeSingleNumeric(rows []map[string]any, valueKey string) *Descriptor {
	points := make([]map[string]any, 0, len(rows))
	for i, r := range rows {
		v := numericValue(r[valueKey])
		points = append(points, map[string]any{
			"name":   fmt.Sprintf("Item %d", i+1),
			"value":  v,
			valueKey: v,
		})
	}
	return &Descriptor{Kind: KindBar, Points: points, XField: "name", YField: valueKey}
}

// formatTimeValue rewrites 8-digit YYYYMMDD date keys as YYYY-MM-DD and
// passes every other time value through unchanged.
func formatTimeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	if f, ok := toFloat(v); ok {
		if n := int64(f); f == float64(n) {
			if s := strconv.FormatInt(n, 10); len(s) == 8 {
				return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
			}
		}
	}
	return v
}

// numericValue normalizes a cell to float64 for the renderer; non-numeric
// cells become 0.
func numericValue(v any) float64 {
	f, _ := toFloat(v)
	return f
}

// toFloat reports whether a cell is numeric and returns its value. Strings
// that parse as numbers count: warehouse drivers frequently return DECIMAL
// columns as text.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= nameTruncateAt {
		return name
	}
	return string(runes[:nameTruncateAt-3]) + "..."
}
