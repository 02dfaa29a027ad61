package engine

import (
	"fmt"
	"time"
)

// ============================================================================
// ENGINE TYPES — Canonical periods + render-ready tables
// ============================================================================
// Result structures for each metric live next to the code that computes
// them. This file holds the types shared across the engine.
//
// Dependency direction: dataset ← schema ← engine. The engine never reads
// files, never talks to the network and keeps no state between calls.
// ============================================================================

// Period is the calendar breakdown derived from a parsed date.
// Key is "YYYY-MM": zero-padded and year-first so it sorts lexicographically.
type Period struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Quarter int    `json:"quarter"`
	Key     string `json:"key"`
}

// PeriodOf derives the Period of t.
func PeriodOf(t time.Time) Period {
	m := int(t.Month())
	return Period{
		Year:    t.Year(),
		Month:   m,
		Quarter: (m-1)/3 + 1,
		Key:     fmt.Sprintf("%04d-%02d", t.Year(), m),
	}
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "currency", "percent"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// Headers returns the column labels in order.
func (t *TableData) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
