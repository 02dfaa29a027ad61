package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// AGGREGATORS — KPIs, monthly series, breakdowns, rankings via View
// ============================================================================
// All functions are pure over a View plus the set of available roles.
// Grouping produces SubViews (index lists into parent view).
//
// A metric whose role is not available is nil ("withheld"), never zero.
// Every division by zero yields 0.
// ============================================================================

// ErrNotDimension is returned when grouping by a role that is not a text
// dimension.
var ErrNotDimension = errors.New("role is not a dimension")

// ============================================================================
// KPIs
// ============================================================================

// KPISet is the headline metric set for a view.
type KPISet struct {
	RowCount       int      `json:"row_count"`
	TotalSales     float64  `json:"total_sales"`
	TotalProfit    *float64 `json:"total_profit,omitempty"`
	ProfitMargin   *float64 `json:"profit_margin,omitempty"`
	TotalQuantity  *float64 `json:"total_quantity,omitempty"`
	TotalOrders    int      `json:"total_orders"`
	TotalCustomers *int     `json:"total_customers,omitempty"`
	AvgOrderValue  float64  `json:"avg_order_value"`
	AvgDiscount    *float64 `json:"avg_discount,omitempty"`
}

// ComputeKPIs computes the headline metrics. An empty view yields zeros.
func ComputeKPIs(view View, avail schema.RoleSet) KPISet {
	k := KPISet{
		RowCount:    view.Len(),
		TotalSales:  sumRole(view, schema.Sales),
		TotalOrders: orderCount(view, avail),
	}
	k.AvgOrderValue = safeDiv(k.TotalSales, float64(k.TotalOrders))

	if avail.Has(schema.Profit) {
		profit := sumRole(view, schema.Profit)
		k.TotalProfit = floatPtr(profit)
		k.ProfitMargin = floatPtr(margin(profit, k.TotalSales))
	}
	if avail.Has(schema.Quantity) {
		k.TotalQuantity = floatPtr(sumRole(view, schema.Quantity))
	}
	if avail.Has(schema.Customer) {
		k.TotalCustomers = intPtr(distinctCount(view, schema.Customer))
	}
	if avail.Has(schema.Discount) {
		k.AvgDiscount = floatPtr(meanRole(view, schema.Discount) * 100)
	}
	return k
}

// ============================================================================
// MONTHLY SERIES
// ============================================================================

// MonthlyPoint is one year-month bucket. Change fields are percentages vs
// the previous bucket and nil for the first one.
type MonthlyPoint struct {
	Month          string   `json:"month"`
	Sales          float64  `json:"sales"`
	Profit         *float64 `json:"profit,omitempty"`
	Quantity       *float64 `json:"quantity,omitempty"`
	Orders         int      `json:"orders"`
	SalesChange    *float64 `json:"sales_change,omitempty"`
	ProfitChange   *float64 `json:"profit_change,omitempty"`
	QuantityChange *float64 `json:"quantity_change,omitempty"`
	OrdersChange   *float64 `json:"orders_change,omitempty"`
}

// MonthlySeries buckets the view by year-month in ascending order. It
// returns nil without a date role. Rows with a null date are skipped.
func MonthlySeries(view View, avail schema.RoleSet) []MonthlyPoint {
	if !avail.Has(schema.Date) {
		return nil
	}

	buckets := groupByPeriod(view)
	points := make([]MonthlyPoint, 0, len(buckets))
	for i, b := range buckets {
		p := MonthlyPoint{
			Month:  b.Key,
			Sales:  sumRole(b.View, schema.Sales),
			Orders: orderCount(b.View, avail),
		}
		if avail.Has(schema.Profit) {
			p.Profit = floatPtr(sumRole(b.View, schema.Profit))
		}
		if avail.Has(schema.Quantity) {
			p.Quantity = floatPtr(sumRole(b.View, schema.Quantity))
		}

		if i > 0 {
			prev := points[i-1]
			p.SalesChange = floatPtr(pctChange(prev.Sales, p.Sales))
			p.OrdersChange = floatPtr(pctChange(float64(prev.Orders), float64(p.Orders)))
			if p.Profit != nil {
				p.ProfitChange = floatPtr(pctChange(*prev.Profit, *p.Profit))
			}
			if p.Quantity != nil {
				p.QuantityChange = floatPtr(pctChange(*prev.Quantity, *p.Quantity))
			}
		}
		points = append(points, p)
	}
	return points
}

// ============================================================================
// BREAKDOWN
// ============================================================================

// BreakdownRow aggregates one value of a dimension.
type BreakdownRow struct {
	Key           string   `json:"key"`
	Sales         float64  `json:"sales"`
	Profit        *float64 `json:"profit,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	Orders        int      `json:"orders"`
	Customers     *int     `json:"customers,omitempty"`
	ProfitMargin  *float64 `json:"profit_margin,omitempty"`
	AvgOrderValue float64  `json:"avg_order_value"`
}

// Breakdown groups the view by a dimension and sorts rows by sales,
// highest first. Equal sales keep ascending key order. It returns nil
// when the dimension is not available.
func Breakdown(view View, avail schema.RoleSet, by schema.Role) ([]BreakdownRow, error) {
	if !by.IsDimension() {
		return nil, fmt.Errorf("breakdown by %s: %w", by, ErrNotDimension)
	}
	if !avail.Has(by) {
		return nil, nil
	}

	groups := groupBy(view, by)
	rows := make([]BreakdownRow, len(groups))
	for i, g := range groups {
		rows[i] = breakdownRow(g, avail)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Sales > rows[j].Sales })
	return rows, nil
}

func breakdownRow(g group, avail schema.RoleSet) BreakdownRow {
	row := BreakdownRow{
		Key:    g.Key,
		Sales:  sumRole(g.View, schema.Sales),
		Orders: orderCount(g.View, avail),
	}
	row.AvgOrderValue = safeDiv(row.Sales, float64(row.Orders))
	if avail.Has(schema.Profit) {
		profit := sumRole(g.View, schema.Profit)
		row.Profit = floatPtr(profit)
		row.ProfitMargin = floatPtr(margin(profit, row.Sales))
	}
	if avail.Has(schema.Quantity) {
		row.Quantity = floatPtr(sumRole(g.View, schema.Quantity))
	}
	if avail.Has(schema.Customer) {
		row.Customers = intPtr(distinctCount(g.View, schema.Customer))
	}
	return row
}

// ============================================================================
// TOP-N RANKING
// ============================================================================

// RankMetric is the measure a ranking sorts by.
type RankMetric string

const (
	RankSales    RankMetric = "sales"
	RankProfit   RankMetric = "profit"
	RankQuantity RankMetric = "quantity"
)

// ParseRankMetric maps text to a RankMetric. Unknown names report false.
func ParseRankMetric(s string) (RankMetric, bool) {
	switch m := RankMetric(strings.ToLower(strings.TrimSpace(s))); m {
	case RankSales, RankProfit, RankQuantity:
		return m, true
	}
	return RankSales, false
}

// role returns the numeric role backing the metric.
func (m RankMetric) role() schema.Role {
	switch m {
	case RankProfit:
		return schema.Profit
	case RankQuantity:
		return schema.Quantity
	}
	return schema.Sales
}

// effective returns m, or sales when m is unknown or its role is absent.
func (m RankMetric) effective(avail schema.RoleSet) RankMetric {
	switch m {
	case RankProfit, RankQuantity:
		if avail.Has(m.role()) {
			return m
		}
	}
	return RankSales
}

// RankedItem is one entry of a top-N ranking. Value is the ranked metric.
type RankedItem struct {
	Key      string   `json:"key"`
	Value    float64  `json:"value"`
	Sales    float64  `json:"sales"`
	Profit   *float64 `json:"profit,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	Orders   int      `json:"orders"`
	Items    *float64 `json:"items,omitempty"`
}

// RankedItems is a top-N ranking. Metric is the measure actually used,
// which differs from Requested after a fallback to sales.
type RankedItems struct {
	Dimension schema.Role  `json:"dimension"`
	Requested RankMetric   `json:"requested"`
	Metric    RankMetric   `json:"metric"`
	Items     []RankedItem `json:"items"`
}

// TopItems ranks the values of a dimension by metric, highest first, and
// keeps the first n. n <= 0 keeps every group. An unavailable metric falls
// back to sales.
func TopItems(view View, avail schema.RoleSet, by schema.Role, metric RankMetric, n int) (RankedItems, error) {
	if !by.IsDimension() {
		return RankedItems{}, fmt.Errorf("rank by %s: %w", by, ErrNotDimension)
	}
	out := RankedItems{Dimension: by, Requested: metric, Metric: metric.effective(avail), Items: []RankedItem{}}
	if !avail.Has(by) {
		return out, nil
	}

	for _, g := range groupBy(view, by) {
		row := breakdownRow(g, avail)
		item := RankedItem{
			Key:      row.Key,
			Sales:    row.Sales,
			Profit:   row.Profit,
			Quantity: row.Quantity,
			Orders:   row.Orders,
		}
		switch out.Metric {
		case RankProfit:
			item.Value = *row.Profit
		case RankQuantity:
			item.Value = *row.Quantity
		default:
			item.Value = row.Sales
		}
		out.Items = append(out.Items, item)
	}

	sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].Value > out.Items[j].Value })
	if n > 0 && len(out.Items) > n {
		out.Items = out.Items[:n]
	}
	return out, nil
}

// ============================================================================
// NUMERIC SUMMARY
// ============================================================================

// NumericSummary describes one numeric role over a view.
type NumericSummary struct {
	Role  schema.Role `json:"role"`
	Count int         `json:"count"`
	Sum   float64     `json:"sum"`
	Mean  float64     `json:"mean"`
	Min   float64     `json:"min"`
	Max   float64     `json:"max"`
}

// Summarize returns sum/mean/min/max for each available numeric role.
func Summarize(view View, avail schema.RoleSet) []NumericSummary {
	out := []NumericSummary{}
	for _, r := range avail.Roles() {
		if !r.IsNumeric() {
			continue
		}
		out = append(out, NumericSummary{
			Role:  r,
			Count: view.Len(),
			Sum:   sumRole(view, r),
			Mean:  meanRole(view, r),
			Min:   minRole(view, r),
			Max:   maxRole(view, r),
		})
	}
	return out
}

// ============================================================================
// MEASURE HELPERS
// ============================================================================

// sumRole sums a numeric role exactly, so totals do not drift with row order.
func sumRole(view View, r schema.Role) float64 {
	total := decimal.Zero
	for i := 0; i < view.Len(); i++ {
		total = total.Add(decimal.NewFromFloat(view.Number(i, r)))
	}
	return finite(total.InexactFloat64())
}

func meanRole(view View, r schema.Role) float64 {
	return safeDiv(sumRole(view, r), float64(view.Len()))
}

func maxRole(view View, r schema.Role) float64 {
	if view.Len() == 0 {
		return 0
	}
	m := math.Inf(-1)
	for i := 0; i < view.Len(); i++ {
		m = math.Max(m, view.Number(i, r))
	}
	return m
}

func minRole(view View, r schema.Role) float64 {
	if view.Len() == 0 {
		return 0
	}
	m := math.Inf(1)
	for i := 0; i < view.Len(); i++ {
		m = math.Min(m, view.Number(i, r))
	}
	return m
}

// safeDiv returns a/b, or 0 when b is 0.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return finite(a / b)
}

// finite saturates ±Inf to ±MaxFloat64 and maps NaN to 0. Sums of very large
// inputs can overflow float64 even though every input was finite.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// margin is profit as a percentage of sales, 0 unless sales > 0.
func margin(profit, sales float64) float64 {
	if sales <= 0 {
		return 0
	}
	return finite(profit / sales * 100)
}

// pctChange is the change from prev to cur in percent, 0 when prev is 0.
func pctChange(prev, cur float64) float64 {
	return finite(safeDiv(cur-prev, prev) * 100)
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatCurrency formats an amount with an optional currency prefix and
// comma separators: FormatCurrency(1234.5, "$") == "$ 1,234.50".
func FormatCurrency(amount float64, currency string) string {
	d := decimal.NewFromFloat(finite(amount)).Round(2)
	negative := d.IsNegative()

	result := groupDecimal(d.Abs().StringFixed(2))
	if currency != "" {
		result = currency + " " + result
	}
	if negative {
		result = "-" + result
	}
	return result
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := strconv.FormatInt(int64(n), 10)
	if n < 0 {
		return "-" + groupDigits(s[1:])
	}
	return groupDigits(s)
}

// FormatQuantity formats a quantity with comma separators, keeping any
// fractional part: FormatQuantity(1234.5) == "1,234.5".
func FormatQuantity(v float64) string {
	d := decimal.NewFromFloat(finite(v))
	if d.IsNegative() {
		return "-" + groupDecimal(d.Abs().String())
	}
	return groupDecimal(d.String())
}

// FormatPercent formats a percentage with one decimal.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(finite(v)).StringFixed(1) + "%"
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return decimal.NewFromFloat(finite(v)).Round(2).InexactFloat64()
}

// groupDecimal inserts comma separators into the integer part of an
// unsigned decimal string.
func groupDecimal(s string) string {
	whole, frac, ok := strings.Cut(s, ".")
	if !ok {
		return groupDigits(whole)
	}
	return groupDigits(whole) + "." + frac
}

func groupDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
