package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spektr-org/datadash/engine"
)

// ============================================================================
// CSV OUTPUT — dashboard tables, one block per table
// ============================================================================

func writeTablesCSV(w io.Writer, tables []*engine.TableData) error {
	cw := csv.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			_ = cw.Write(nil)
		}
		_ = cw.Write([]string{t.Title})
		_ = cw.Write(t.Headers())
		for _, row := range t.Rows {
			_ = cw.Write(row)
		}
		if t.Summary != nil {
			_ = cw.Write(summaryRow(t))
		}
	}
	cw.Flush()
	return cw.Error()
}

// summaryRow lays a table summary out under the table's columns.
func summaryRow(t *engine.TableData) []string {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = t.Summary.Values[c.Key]
	}
	if len(row) > 0 && row[0] == "" {
		row[0] = t.Summary.Label
	}
	return row
}

// ============================================================================
// TEXT OUTPUT
// ============================================================================

func writeText(w io.Writer, r *engine.Report, currency string) error {
	if r.Empty {
		fmt.Fprintf(w, "No rows match the current filters (%d rows loaded).\n", r.Rows)
		return nil
	}
	fmt.Fprintf(w, "%d of %d rows. %s\n", r.FilteredRows, r.Rows, r.Trend.Describe())
	if r.Returns != nil {
		fmt.Fprintf(w, "Return rate %s (%s).\n", engine.FormatPercent(r.Returns.ReturnRate), r.ReturnHealth)
	}

	for _, t := range r.Tables(currency) {
		fmt.Fprintf(w, "\n%s\n%s\n", t.Title, strings.Repeat("─", len([]rune(t.Title))))
		tw := newTabWriter(w)
		fmt.Fprintln(tw, strings.Join(t.Headers(), "\t"))
		for _, row := range t.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if t.Summary != nil {
			fmt.Fprintln(tw, strings.Join(summaryRow(t), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v any, format string) error {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
