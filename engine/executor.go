package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// EXECUTOR — Validate → Normalize → Filter → Aggregate
// ============================================================================
// Entry point: Run(ctx, req, opts...)
//
// Pipeline:
//   1. Validate the mapping at the boundary (fail fast)
//   2. Normalize raw dataset → Canonical
//   3. Derive filter options from the full canonical dataset
//   4. Apply the selection → SubView (zero-copy)
//   5. Compute every aggregate concurrently over the same immutable view
//   6. Return Report
//
// Run keeps no state between calls. Every mapping or filter change is a
// fresh Run.
// ============================================================================

var (
	// ErrNoDataset is returned when Run is given no data.
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrSalesNotMapped is returned when the sales role is not mapped.
	ErrSalesNotMapped = errors.New("sales role is not mapped")
)

// Dimensions broken down and ranked in a report, in display order.
var reportDimensions = []schema.Role{schema.Category, schema.Region, schema.Segment, schema.Product}

// Dimensions ranked by return rate in a report.
var returnDimensions = []schema.Role{schema.Category, schema.Product}

// Request is one immutable snapshot of what to compute.
type Request struct {
	Data    *dataset.Dataset
	Mapping schema.Mapping
	Filters Selection
	TopN    int        // 0 uses the configured default
	RankBy  RankMetric // "" ranks by sales
}

// Report is every metric for one request. Optional sections are nil when
// the roles they need are not mapped.
type Report struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	Rows         int            `json:"rows"`
	FilteredRows int            `json:"filtered_rows"`
	Empty        bool           `json:"empty"`
	Mapping      schema.Mapping `json:"mapping"`
	Options      FilterOptions  `json:"options"`
	Filters      Selection      `json:"filters"`
	Quality      map[string]int `json:"coercion_defaults"`

	KPIs    KPISet           `json:"kpis"`
	Summary []NumericSummary `json:"summary"`
	Monthly []MonthlyPoint   `json:"monthly,omitempty"`
	Trend   TrendInsights    `json:"trend"`

	Breakdowns map[string][]BreakdownRow `json:"breakdowns,omitempty"`
	Rankings   map[string]RankedItems    `json:"rankings,omitempty"`

	TopCustomers    *RankedItems         `json:"top_customers,omitempty"`
	RepeatCustomers *RepeatStats         `json:"repeat_customers,omitempty"`
	Customers       *CustomerStats       `json:"customers,omitempty"`
	Loyalty         *LoyaltyDistribution `json:"loyalty,omitempty"`

	Returns      *ReturnMetrics             `json:"returns,omitempty"`
	ReturnHealth ReturnHealth               `json:"return_health,omitempty"`
	ReturnRates  map[string][]ReturnRateRow `json:"return_rates,omitempty"`
}

// Validate checks a request at the API boundary.
func (r Request) Validate() error {
	if r.Data == nil {
		return ErrNoDataset
	}
	if err := r.Mapping.Validate(r.Data.Names()); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	if !r.Mapping.Present().Has(schema.Sales) {
		return ErrSalesNotMapped
	}
	return nil
}

// Run computes a Report for req.
//
// Options:
//   - WithLogger(l): logger for this run
//   - WithDefaultTopN(n): ranking length when req.TopN is 0
//   - WithReturnThresholds(high, moderate): return-rate grading
func Run(ctx context.Context, req Request, opts ...Option) (*Report, error) {
	cfg := applyOptions(opts)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	canonical := Normalize(req.Data, req.Mapping)
	options := DeriveOptions(canonical)
	view := ApplyFilter(canonical, req.Filters)
	avail := canonical.Available()

	cfg.Logger.Debug().
		Int("rows", canonical.Len()).
		Int("filtered", view.Len()).
		Msg("filters applied")

	topN := req.TopN
	if topN <= 0 {
		topN = cfg.TopN
	}
	metric := req.RankBy
	if metric == "" {
		metric = RankSales
	}
	if eff := metric.effective(avail); eff != metric {
		cfg.Logger.Debug().Str("requested", string(metric)).Str("metric", string(eff)).Msg("rank metric unavailable, ranking by sales")
	}

	report := &Report{
		GeneratedAt:  time.Now().UTC(),
		Rows:         canonical.Len(),
		FilteredRows: view.Len(),
		Empty:        view.Len() == 0,
		Mapping:      canonical.Mapping(),
		Options:      options,
		Filters:      req.Filters,
		Quality:      qualityCounts(canonical),
	}

	breakdowns := make([][]BreakdownRow, len(reportDimensions))
	rankings := make([]RankedItems, len(reportDimensions))
	returnRates := make([][]ReturnRateRow, len(returnDimensions))
	errs := make([]error, 2*len(reportDimensions)+len(returnDimensions))

	var wg conc.WaitGroup
	wg.Go(func() { report.KPIs = ComputeKPIs(view, avail) })
	wg.Go(func() { report.Summary = Summarize(view, avail) })
	wg.Go(func() {
		report.Monthly = MonthlySeries(view, avail)
		report.Trend = Trend(report.Monthly)
	})
	for i, dim := range reportDimensions {
		wg.Go(func() { breakdowns[i], errs[i] = Breakdown(view, avail, dim) })
		wg.Go(func() {
			rankings[i], errs[len(reportDimensions)+i] = TopItems(view, avail, dim, metric, topN)
		})
	}
	for i, dim := range returnDimensions {
		wg.Go(func() { returnRates[i], errs[2*len(reportDimensions)+i] = ReturnRateRanking(view, avail, dim, topN) })
	}
	wg.Go(func() {
		if !avail.Has(schema.Customer) {
			return
		}
		top := TopCustomers(view, avail, topN)
		repeat, _ := RepeatCustomers(view, avail)
		stats, _ := CustomerSummary(view, avail)
		loyalty, _ := Loyalty(view, avail)
		report.TopCustomers, report.RepeatCustomers = &top, &repeat
		report.Customers, report.Loyalty = &stats, &loyalty
	})
	wg.Go(func() {
		if m, ok := ComputeReturns(view, avail); ok {
			report.Returns = &m
			report.ReturnHealth = GradeReturnRate(m.ReturnRate, cfg.ReturnRateHigh, cfg.ReturnRateModerate)
		}
	})
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, dim := range reportDimensions {
		if !avail.Has(dim) {
			continue
		}
		if report.Breakdowns == nil {
			report.Breakdowns = make(map[string][]BreakdownRow)
			report.Rankings = make(map[string]RankedItems)
		}
		report.Breakdowns[dim.String()] = breakdowns[i]
		report.Rankings[dim.String()] = rankings[i]
	}
	if avail.Has(schema.Returned) {
		for i, dim := range returnDimensions {
			if !avail.Has(dim) {
				continue
			}
			if report.ReturnRates == nil {
				report.ReturnRates = make(map[string][]ReturnRateRow)
			}
			report.ReturnRates[dim.String()] = returnRates[i]
		}
	}

	cfg.Logger.Debug().Int("filtered", report.FilteredRows).Bool("empty", report.Empty).Msg("report computed")
	return report, nil
}

// qualityCounts keys the canonical default counts by role name.
func qualityCounts(c *Canonical) map[string]int {
	out := make(map[string]int)
	for r, n := range c.Defaults() {
		out[r.String()] = n
	}
	return out
}
