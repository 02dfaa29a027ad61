package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spektr-org/datadash/dataset"
)

// ============================================================================
// AUTO-DISCOVERY — Column type detection + role suggestion
// ============================================================================
// Inspects a raw Dataset and classifies each column so a caller can offer
// sensible role choices before the user maps anything.
//
// Classification pipeline per column:
//   1. Sample values → detect type (numeric, date, bool, text)
//   2. Count unique / null values → cardinality hint
//   3. Header keywords + type → suggested role (Suggest)
//
// Nothing here is authoritative: the Mapping the caller submits wins.
// ============================================================================

// DiscoverOptions controls detection behavior.
type DiscoverOptions struct {
	SampleSize int // Max rows to inspect (0 = all). Default: 1000
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{SampleSize: 1000}
}

// ColumnType is the detected storage type of a raw column.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeNumeric ColumnType = "numeric"
	TypeDate    ColumnType = "date"
	TypeBool    ColumnType = "bool"
)

// ColumnProfile describes one raw column.
type ColumnProfile struct {
	Name            string     `json:"name"`
	Key             string     `json:"key"`
	DisplayName     string     `json:"displayName"`
	Type            ColumnType `json:"type"`
	UniqueCount     int        `json:"uniqueCount"`
	NullCount       int        `json:"nullCount"`
	SampleValues    []string   `json:"sampleValues"`
	CardinalityHint string     `json:"cardinalityHint"` // "low", "medium", "high"
}

// Detection is the result of profiling a dataset.
type Detection struct {
	Rows            int             `json:"rows"`
	Columns         []ColumnProfile `json:"columns"`
	DateColumns     []string        `json:"dateColumns"`
	NumericColumns  []string        `json:"numericColumns"`
	CategoryColumns []string        `json:"categoryColumns"`
}

// Detect profiles every column of ds.
func Detect(ds *dataset.Dataset, opts ...DiscoverOptions) Detection {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	sample := ds
	if opt.SampleSize > 0 {
		sample = ds.Head(opt.SampleSize)
	}

	det := Detection{Rows: ds.Len()}
	for _, col := range sample.Columns() {
		p := analyzeColumn(col)
		det.Columns = append(det.Columns, p)

		switch p.Type {
		case TypeDate:
			det.DateColumns = append(det.DateColumns, p.Name)
		case TypeNumeric:
			det.NumericColumns = append(det.NumericColumns, p.Name)
		default:
			det.CategoryColumns = append(det.CategoryColumns, p.Name)
		}
	}
	return det
}

// Profile returns the profile for a named column.
func (d Detection) Profile(name string) (ColumnProfile, bool) {
	for _, p := range d.Columns {
		if p.Name == name {
			return p, true
		}
	}
	return ColumnProfile{}, false
}

// analyzeColumn inspects all values in a column and classifies it.
func analyzeColumn(col dataset.Column) ColumnProfile {
	p := ColumnProfile{
		Name:        col.Name,
		Key:         toSnakeCase(col.Name),
		DisplayName: toDisplayName(col.Name),
	}

	uniqueSet := make(map[string]bool)
	var texts []string
	numericCells := 0
	dateCells := 0

	for _, v := range col.Values {
		switch x := v.(type) {
		case nil:
			p.NullCount++
			continue
		case float64, float32, int, int64:
			numericCells++
		case time.Time:
			dateCells++
		case string:
			if strings.TrimSpace(x) == "" {
				p.NullCount++
				continue
			}
			texts = append(texts, x)
		}
		uniqueSet[dataset.Stringify(v)] = true
	}

	p.UniqueCount = len(uniqueSet)
	p.SampleValues = collectSamples(uniqueSet, 10)

	nonNull := len(col.Values) - p.NullCount
	switch {
	case nonNull == 0:
		p.Type = TypeText
	case numericCells == nonNull:
		p.Type = TypeNumeric
	case dateCells == nonNull:
		p.Type = TypeDate
	default:
		p.Type = detectType(texts)
	}

	switch {
	case p.UniqueCount <= 10:
		p.CardinalityHint = "low"
	case p.UniqueCount <= 100:
		p.CardinalityHint = "medium"
	default:
		p.CardinalityHint = "high"
	}
	return p
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// detectType inspects text values to determine column type.
// Requires 80%+ of non-null values to match for numeric/date/bool.
func detectType(values []string) ColumnType {
	if len(values) == 0 {
		return TypeText
	}

	numCount := 0
	dateCount := 0
	boolCount := 0

	for _, v := range values {
		if isNumeric(v) {
			numCount++
		}
		if isDate(v) {
			dateCount++
		}
		if isBool(v) {
			boolCount++
		}
	}

	threshold := int(float64(len(values)) * 0.8)

	if boolCount >= threshold {
		return TypeBool
	}
	if dateCount >= threshold && dateCount > numCount {
		return TypeDate
	}
	if numCount >= threshold {
		return TypeNumeric
	}
	return TypeText
}

func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "") // handle "1,234.56"
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isDate accepts anything dataset.ParseDate recognises except bare integers, which
// it would otherwise read as yyyymmdd or unix timestamps.
func isDate(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	_, err := dataset.ParseDate(s)
	return err == nil
}

func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

// ============================================================================
// ROLE SUGGESTION
// ============================================================================

// roleKeywords are matched against snake_case column keys, exact match first
// and substring match second.
var roleKeywords = []struct {
	role     Role
	keywords []string
}{
	{Sales, []string{"sales", "revenue", "amount", "total"}},
	{Profit, []string{"profit", "earnings"}},
	{Quantity, []string{"quantity", "qty", "units"}},
	{Discount, []string{"discount"}},
	{OrderID, []string{"order_id", "order_number", "order_no", "invoice", "order"}},
	{Customer, []string{"customer", "customer_name", "client", "buyer"}},
	{Category, []string{"category"}},
	{Region, []string{"region", "territory", "state", "country"}},
	{Segment, []string{"segment"}},
	{Product, []string{"product", "product_name", "item", "sku"}},
	{Returned, []string{"returned", "return", "returns", "refunded"}},
}

// Suggest proposes a Mapping from a Detection. The first date column becomes
// the date role; numeric roles only take numeric columns; no column is used
// twice.
func Suggest(det Detection) Mapping {
	m := Mapping{}
	used := make(map[string]bool)

	if len(det.DateColumns) > 0 {
		m.Set(Date, det.DateColumns[0])
		used[det.DateColumns[0]] = true
	}

	for _, rk := range roleKeywords {
		if col := matchColumn(det, rk.role, rk.keywords, used); col != "" {
			m.Set(rk.role, col)
			used[col] = true
		}
	}
	return m
}

func matchColumn(det Detection, role Role, keywords []string, used map[string]bool) string {
	eligible := func(p ColumnProfile) bool {
		if used[p.Name] || p.Type == TypeDate {
			return false
		}
		if role.IsNumeric() {
			return p.Type == TypeNumeric
		}
		return true
	}

	for _, kw := range keywords {
		for _, p := range det.Columns {
			if eligible(p) && p.Key == kw {
				return p.Name
			}
		}
	}
	for _, kw := range keywords {
		for _, p := range det.Columns {
			if eligible(p) && strings.Contains(p.Key, kw) {
				return p.Name
			}
		}
	}
	return ""
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}

	s = result.String()
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "__", "_")
	s = strings.Trim(s, "_")
	return s
}

// toDisplayName cleans a header for human display.
// "unit_price" → "Unit Price", "Order Date" → "Order Date"
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

// collectSamples picks up to maxSamples values, sorted for deterministic output.
func collectSamples(uniqueSet map[string]bool, maxSamples int) []string {
	samples := make([]string, 0, len(uniqueSet))
	for v := range uniqueSet {
		samples = append(samples, v)
	}
	sort.Strings(samples)

	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}

// String summarises a detection for logs.
func (d Detection) String() string {
	return fmt.Sprintf("%d rows, %d columns (%d date, %d numeric, %d category)",
		d.Rows, len(d.Columns), len(d.DateColumns), len(d.NumericColumns), len(d.CategoryColumns))
}
