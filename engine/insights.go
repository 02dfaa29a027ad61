package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ============================================================================
// INSIGHTS — Plain-language readings of computed metrics
// ============================================================================
// Insights never touch rows. They read result structures the aggregators
// already produced, so they stay consistent with them under any filter.
// ============================================================================

// ReturnHealth grades a return rate against two thresholds (percent).
type ReturnHealth string

const (
	HealthHigh     ReturnHealth = "high"
	HealthModerate ReturnHealth = "moderate"
	HealthHealthy  ReturnHealth = "healthy"
)

// Default return-rate thresholds, in percent.
const (
	DefaultReturnRateHigh     = 10.0
	DefaultReturnRateModerate = 5.0
)

// GradeReturnRate is high above high, moderate above moderate, else healthy.
func GradeReturnRate(rate, high, moderate float64) ReturnHealth {
	switch {
	case rate > high:
		return HealthHigh
	case rate > moderate:
		return HealthModerate
	default:
		return HealthHealthy
	}
}

// MonthChange is a month and its sales change vs the previous month.
type MonthChange struct {
	Month  string  `json:"month"`
	Sales  float64 `json:"sales"`
	Change float64 `json:"change"`
}

// TrendInsights reads a monthly series.
type TrendInsights struct {
	Sufficient bool          `json:"sufficient"`
	Period     string        `json:"period"`
	Direction  string        `json:"direction"`
	Change     float64       `json:"change"`
	Declines   []MonthChange `json:"declines,omitempty"`
	BestGrowth *MonthChange  `json:"best_growth,omitempty"`
	Latest     *MonthChange  `json:"latest,omitempty"`
}

// Trend summarizes a monthly series. With fewer than two months there is no
// change to read, and Sufficient is false.
func Trend(series []MonthlyPoint) TrendInsights {
	t := TrendInsights{Period: periodLabel(series), Direction: "insufficient data"}
	if len(series) < 2 {
		return t
	}
	t.Sufficient = true

	first, last := series[0], series[len(series)-1]
	t.Change = round1(pctChange(first.Sales, last.Sales))
	switch {
	case t.Change > 0.5:
		t.Direction = "increased"
	case t.Change < -0.5:
		t.Direction = "decreased"
	default:
		t.Direction = "unchanged"
	}

	for _, p := range series[1:] {
		mc := MonthChange{Month: p.Month, Sales: p.Sales, Change: round1(*p.SalesChange)}
		if mc.Change < 0 {
			t.Declines = append(t.Declines, mc)
		}
		if t.BestGrowth == nil || mc.Change > t.BestGrowth.Change {
			best := mc
			t.BestGrowth = &best
		}
	}
	sort.SliceStable(t.Declines, func(i, j int) bool { return t.Declines[i].Change < t.Declines[j].Change })

	latest := MonthChange{Month: last.Month, Sales: last.Sales, Change: round1(*last.SalesChange)}
	t.Latest = &latest
	return t
}

// Describe renders the trend as one sentence.
func (t TrendInsights) Describe() string {
	if !t.Sufficient {
		return fmt.Sprintf("Sales for %s. Need at least 2 months of data to show trends.", t.Period)
	}
	arrow := "→"
	switch t.Direction {
	case "increased":
		arrow = "↑"
	case "decreased":
		arrow = "↓"
	}
	return fmt.Sprintf("Sales %s %s %s over %s.", t.Direction, arrow, FormatPercent(abs(t.Change)), t.Period)
}

// periodLabel is "first – last", a single month, or "No data".
func periodLabel(series []MonthlyPoint) string {
	switch len(series) {
	case 0:
		return "No data"
	case 1:
		return series[0].Month
	}
	return fmt.Sprintf("%s – %s", series[0].Month, series[len(series)-1].Month)
}

func round1(v float64) float64 {
	return decimal.NewFromFloat(finite(v)).Round(1).InexactFloat64()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
