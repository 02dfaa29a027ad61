package engine

import (
	"fmt"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// CHART BUILDER — Chart-ready series from report sections
// ============================================================================
// Charts carry data only. Styling and rendering belong to the caller.
// ============================================================================

// ChartPoint is one labelled value.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSeries is one named line or bar set.
type ChartSeries struct {
	Name string       `json:"name"`
	Data []ChartPoint `json:"data"`
}

// ChartData describes one chart.
type ChartData struct {
	ChartType string        `json:"chartType"` // "line", "bar"
	Title     string        `json:"title"`
	XAxis     string        `json:"xAxis"`
	YAxis     string        `json:"yAxis"`
	Series    []ChartSeries `json:"series"`
}

// MonthlyChart plots sales, and profit when mapped, per month.
func MonthlyChart(points []MonthlyPoint, avail schema.RoleSet) *ChartData {
	if len(points) == 0 {
		return nil
	}
	sales := make([]ChartPoint, len(points))
	for i, p := range points {
		sales[i] = ChartPoint{Label: p.Month, Value: RoundTo2(p.Sales)}
	}
	series := []ChartSeries{{Name: "Sales", Data: sales}}

	if avail.Has(schema.Profit) {
		profit := make([]ChartPoint, len(points))
		for i, p := range points {
			profit[i] = ChartPoint{Label: p.Month, Value: RoundTo2(deref(p.Profit))}
		}
		series = append(series, ChartSeries{Name: "Profit", Data: profit})
	}

	return &ChartData{
		ChartType: "line",
		Title:     "Monthly Sales",
		XAxis:     "Month",
		YAxis:     "Amount",
		Series:    series,
	}
}

// BreakdownChart plots sales, and profit when present, per group.
func BreakdownChart(by schema.Role, rows []BreakdownRow) *ChartData {
	if len(rows) == 0 {
		return nil
	}
	sales := make([]ChartPoint, len(rows))
	var profit []ChartPoint
	for i, r := range rows {
		sales[i] = ChartPoint{Label: r.Key, Value: RoundTo2(r.Sales)}
		if r.Profit != nil {
			profit = append(profit, ChartPoint{Label: r.Key, Value: RoundTo2(*r.Profit)})
		}
	}
	series := []ChartSeries{{Name: "Sales", Data: sales}}
	if len(profit) == len(rows) {
		series = append(series, ChartSeries{Name: "Profit", Data: profit})
	}

	return &ChartData{
		ChartType: "bar",
		Title:     fmt.Sprintf("Sales by %s", by.Label()),
		XAxis:     by.Label(),
		YAxis:     "Amount",
		Series:    series,
	}
}

// RankingChart plots the ranked value of each item.
func RankingChart(r RankedItems) *ChartData {
	if len(r.Items) == 0 {
		return nil
	}
	points := make([]ChartPoint, len(r.Items))
	for i, it := range r.Items {
		points[i] = ChartPoint{Label: it.Key, Value: RoundTo2(it.Value)}
	}
	metric := LabelForKey(string(r.Metric))
	return &ChartData{
		ChartType: "bar",
		Title:     fmt.Sprintf("Top %s by %s", r.Dimension.Label(), metric),
		XAxis:     r.Dimension.Label(),
		YAxis:     metric,
		Series:    []ChartSeries{{Name: metric, Data: points}},
	}
}

// Charts returns the chartable sections of a report, in display order.
func (r *Report) Charts() []*ChartData {
	var charts []*ChartData
	add := func(c *ChartData) {
		if c != nil {
			charts = append(charts, c)
		}
	}

	add(MonthlyChart(r.Monthly, r.Options.Available))
	for _, dim := range reportDimensions {
		if rows, ok := r.Breakdowns[dim.String()]; ok {
			add(BreakdownChart(dim, rows))
		}
	}
	if ranked, ok := r.Rankings[schema.Product.String()]; ok {
		add(RankingChart(ranked))
	}
	if r.TopCustomers != nil {
		add(RankingChart(*r.TopCustomers))
	}
	return charts
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
