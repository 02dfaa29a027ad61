package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from computed results
// ============================================================================
// Tables hold display strings only. Columns for roles that are not mapped
// are left out rather than shown as zeros.
// ============================================================================

// LabelForKey turns a snake_case key into a title: "avg_order_value" →
// "Avg Order Value".
func LabelForKey(key string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

func textCol(key string) Column {
	return Column{Key: key, Label: LabelForKey(key), Type: "text", Align: "left"}
}

func numCol(key, typ string) Column {
	return Column{Key: key, Label: LabelForKey(key), Type: typ, Align: "right"}
}

// ============================================================================
// KPI TABLE — one row per metric
// ============================================================================

// KPITable lists the headline metrics that were computed.
func KPITable(k KPISet, currency string) *TableData {
	rows := [][]string{
		{"Rows", FormatInt(k.RowCount)},
		{"Total Sales", FormatCurrency(k.TotalSales, currency)},
	}
	if k.TotalProfit != nil {
		rows = append(rows, []string{"Total Profit", FormatCurrency(*k.TotalProfit, currency)})
	}
	if k.ProfitMargin != nil {
		rows = append(rows, []string{"Profit Margin", FormatPercent(*k.ProfitMargin)})
	}
	if k.TotalQuantity != nil {
		rows = append(rows, []string{"Total Quantity", FormatQuantity(*k.TotalQuantity)})
	}
	rows = append(rows, []string{"Total Orders", FormatInt(k.TotalOrders)})
	if k.TotalCustomers != nil {
		rows = append(rows, []string{"Total Customers", FormatInt(*k.TotalCustomers)})
	}
	rows = append(rows, []string{"Avg Order Value", FormatCurrency(k.AvgOrderValue, currency)})
	if k.AvgDiscount != nil {
		rows = append(rows, []string{"Avg Discount", FormatPercent(*k.AvgDiscount)})
	}

	return &TableData{
		Title:   "Key Metrics",
		Columns: []Column{textCol("metric"), numCol("value", "text")},
		Rows:    rows,
	}
}

// ============================================================================
// BREAKDOWN TABLE
// ============================================================================

// BreakdownTable renders a grouped breakdown with a totals row.
func BreakdownTable(by schema.Role, rows []BreakdownRow, avail schema.RoleSet, currency string) *TableData {
	columns := []Column{
		{Key: "key", Label: by.Label(), Type: "text", Align: "left"},
		numCol("sales", "currency"),
	}
	if avail.Has(schema.Profit) {
		columns = append(columns, numCol("profit", "currency"), numCol("profit_margin", "percent"))
	}
	if avail.Has(schema.Quantity) {
		columns = append(columns, numCol("quantity", "number"))
	}
	columns = append(columns, numCol("orders", "number"))
	if avail.Has(schema.Customer) {
		columns = append(columns, numCol("customers", "number"))
	}
	columns = append(columns, numCol("avg_order_value", "currency"))

	out := make([][]string, 0, len(rows))
	var sales float64
	for _, r := range rows {
		row := []string{r.Key, FormatCurrency(r.Sales, currency)}
		if r.Profit != nil {
			row = append(row, FormatCurrency(*r.Profit, currency), FormatPercent(*r.ProfitMargin))
		}
		if r.Quantity != nil {
			row = append(row, FormatQuantity(*r.Quantity))
		}
		row = append(row, FormatInt(r.Orders))
		if r.Customers != nil {
			row = append(row, FormatInt(*r.Customers))
		}
		row = append(row, FormatCurrency(r.AvgOrderValue, currency))
		out = append(out, row)
		sales += r.Sales
	}

	return &TableData{
		Title:   fmt.Sprintf("Sales by %s", by.Label()),
		Columns: columns,
		Rows:    out,
		Summary: &Summary{
			Label:  fmt.Sprintf("Total (%d groups)", len(rows)),
			Values: map[string]string{"sales": FormatCurrency(sales, currency)},
		},
	}
}

// ============================================================================
// RANKING TABLE
// ============================================================================

// RankingTable renders a top-N ranking.
func RankingTable(r RankedItems, currency string) *TableData {
	valueType := "currency"
	if r.Metric == RankQuantity {
		valueType = "number"
	}
	columns := []Column{
		numCol("rank", "number"),
		{Key: "key", Label: r.Dimension.Label(), Type: "text", Align: "left"},
		numCol(string(r.Metric), valueType),
		numCol("orders", "number"),
	}
	hasItems := len(r.Items) > 0 && r.Items[0].Items != nil
	if hasItems {
		columns = append(columns, numCol("items", "number"))
	}

	rows := make([][]string, 0, len(r.Items))
	for i, item := range r.Items {
		value := FormatCurrency(item.Value, currency)
		if valueType == "number" {
			value = FormatQuantity(item.Value)
		}
		row := []string{fmt.Sprintf("%d", i+1), item.Key, value, FormatInt(item.Orders)}
		if hasItems {
			row = append(row, FormatQuantity(*item.Items))
		}
		rows = append(rows, row)
	}

	return &TableData{
		Title:   fmt.Sprintf("Top %s by %s", r.Dimension.Label(), LabelForKey(string(r.Metric))),
		Columns: columns,
		Rows:    rows,
	}
}

// ============================================================================
// MONTHLY TABLE
// ============================================================================

// MonthlyTable renders a monthly series. The first month has no change.
func MonthlyTable(points []MonthlyPoint, avail schema.RoleSet, currency string) *TableData {
	columns := []Column{textCol("month"), numCol("sales", "currency"), numCol("sales_change", "percent")}
	if avail.Has(schema.Profit) {
		columns = append(columns, numCol("profit", "currency"))
	}
	columns = append(columns, numCol("orders", "number"))

	rows := make([][]string, 0, len(points))
	for _, p := range points {
		change := "—"
		if p.SalesChange != nil {
			change = FormatPercent(*p.SalesChange)
		}
		row := []string{p.Month, FormatCurrency(p.Sales, currency), change}
		if p.Profit != nil {
			row = append(row, FormatCurrency(*p.Profit, currency))
		}
		row = append(row, FormatInt(p.Orders))
		rows = append(rows, row)
	}
	return &TableData{Title: "Monthly Sales", Columns: columns, Rows: rows}
}

// ============================================================================
// RETURN RATE TABLE
// ============================================================================

// ReturnRateTable renders a return-rate ranking.
func ReturnRateTable(by schema.Role, rows []ReturnRateRow) *TableData {
	columns := []Column{
		{Key: "key", Label: by.Label(), Type: "text", Align: "left"},
		numCol("total_orders", "number"),
		numCol("returns", "number"),
		numCol("return_rate", "percent"),
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Key, FormatInt(r.TotalOrders), FormatInt(r.Returns), FormatPercent(r.ReturnRate)})
	}
	return &TableData{
		Title:   fmt.Sprintf("Return Rate by %s", by.Label()),
		Columns: columns,
		Rows:    out,
	}
}

// ============================================================================
// REPORT TABLES
// ============================================================================

// Tables renders every computed section of a report, in display order.
func (r *Report) Tables(currency string) []*TableData {
	avail := r.Options.Available
	tables := []*TableData{KPITable(r.KPIs, currency)}
	if len(r.Monthly) > 0 {
		tables = append(tables, MonthlyTable(r.Monthly, avail, currency))
	}
	for _, dim := range reportDimensions {
		if rows, ok := r.Breakdowns[dim.String()]; ok {
			tables = append(tables, BreakdownTable(dim, rows, avail, currency))
		}
	}
	if ranked, ok := r.Rankings[schema.Product.String()]; ok {
		tables = append(tables, RankingTable(ranked, currency))
	}
	if r.TopCustomers != nil {
		tables = append(tables, RankingTable(*r.TopCustomers, currency))
	}
	for _, dim := range returnDimensions {
		if rows, ok := r.ReturnRates[dim.String()]; ok {
			tables = append(tables, ReturnRateTable(dim, rows))
		}
	}
	return tables
}
