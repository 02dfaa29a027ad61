package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// KPIs
// ============================================================================

func TestKPIsWithoutOrderOrCustomer(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "Sales", schema.Profit: "Profit"},
		col("Sales", 100.0, 200.0, 300.0),
		col("Profit", 10.0, 20.0, -30.0),
	)
	k := ComputeKPIs(c, c.Available())

	assert.Equal(t, 600.0, k.TotalSales)
	require.NotNil(t, k.TotalProfit)
	assert.Equal(t, 0.0, *k.TotalProfit)
	require.NotNil(t, k.ProfitMargin)
	assert.Equal(t, 0.0, *k.ProfitMargin)
	assert.Equal(t, 3, k.TotalOrders, "each row is an order")
	assert.Equal(t, 200.0, k.AvgOrderValue)
	assert.Nil(t, k.TotalCustomers)
	assert.Nil(t, k.TotalQuantity)
	assert.Nil(t, k.AvgDiscount)
}

func TestKPIsWithholdAbsentRoles(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s"}, col("s", 5.0))
	k := ComputeKPIs(c, c.Available())
	assert.Nil(t, k.TotalProfit, "absent profit is withheld, not zero")
	assert.Nil(t, k.ProfitMargin)
}

func TestKPIsFullSchema(t *testing.T) {
	c := normalizeCols(schema.Mapping{
		schema.Sales: "s", schema.Profit: "p", schema.Quantity: "q",
		schema.OrderID: "o", schema.Customer: "c", schema.Discount: "d",
	},
		col("s", 100.0, 50.0, 50.0),
		col("p", 20.0, 5.0, 5.0),
		col("q", 1.0, 2.0, 3.0),
		col("o", "A", "B", "B"),
		col("c", "X", "Y", "Y"),
		col("d", 0.1, 0.2, 0.0),
	)
	k := ComputeKPIs(c, c.Available())
	assert.Equal(t, 2, k.TotalOrders)
	assert.Equal(t, 100.0, k.AvgOrderValue)
	assert.Equal(t, 2, *k.TotalCustomers)
	assert.Equal(t, 6.0, *k.TotalQuantity)
	assert.InDelta(t, 15.0, *k.ProfitMargin, 1e-9)
	assert.InDelta(t, 10.0, *k.AvgDiscount, 1e-9)
}

func TestKPIsCountOrdersAgainstAvail(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s", schema.OrderID: "o"},
		col("s", 10.0, 20.0, 30.0),
		col("o", "A", "A", "B"),
	)
	assert.Equal(t, 2, ComputeKPIs(c, c.Available()).TotalOrders)

	narrow := schema.NewRoleSet(schema.Sales)
	k := ComputeKPIs(c, narrow)
	assert.Equal(t, k.RowCount, k.TotalOrders, "without order_id every row is an order")
	assert.Equal(t, 20.0, k.AvgOrderValue)
}

func TestKPIsEmptyView(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s", schema.Profit: "p"},
		col("s", 1.0), col("p", 1.0))
	empty := newSubView(c, nil)

	k := ComputeKPIs(empty, c.Available())
	assert.Equal(t, 0, k.RowCount)
	assert.Equal(t, 0.0, k.TotalSales)
	assert.Equal(t, 0, k.TotalOrders)
	assert.Equal(t, 0.0, k.AvgOrderValue)
	assert.Equal(t, 0.0, *k.ProfitMargin)
}

// ============================================================================
// MONTHLY SERIES
// ============================================================================

func TestMonthlySeriesOrderingAndChange(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Date: "d", schema.Sales: "s", schema.Profit: "p"},
		col("d", "2024-03-05", "2024-01-10", "2024-02-01", "2024-01-20", "bad"),
		col("s", 30.0, 5.0, 20.0, 5.0, 999.0),
		col("p", 3.0, 1.0, 2.0, 1.0, 0.0),
	)
	series := MonthlySeries(c, c.Available())
	require.Len(t, series, 3)

	months := []string{series[0].Month, series[1].Month, series[2].Month}
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, months)

	first := series[0]
	assert.Equal(t, 10.0, first.Sales)
	assert.Equal(t, 2, first.Orders)
	assert.Nil(t, first.SalesChange)
	assert.Nil(t, first.ProfitChange)
	assert.Nil(t, first.OrdersChange)

	assert.Equal(t, 100.0, *series[1].SalesChange)
	assert.Equal(t, 0.0, *series[1].ProfitChange)
	assert.Equal(t, 50.0, *series[2].SalesChange)
	assert.Nil(t, series[2].Quantity, "quantity unmapped")
	assert.Nil(t, series[2].QuantityChange)
}

func TestMonthlySeriesSingleBucket(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Date: "d", schema.Sales: "s"},
		col("d", "2024-05-01", "2024-05-30"),
		col("s", 1.0, 2.0),
	)
	series := MonthlySeries(c, c.Available())
	require.Len(t, series, 1)
	assert.Nil(t, series[0].SalesChange)
}

func TestMonthlySeriesWithoutDate(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s"}, col("s", 1.0))
	assert.Nil(t, MonthlySeries(c, c.Available()))
}

func TestMonthlyChangeFromZeroIsZero(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Date: "d", schema.Sales: "s"},
		col("d", "2024-01-01", "2024-02-01"),
		col("s", 0.0, 10.0),
	)
	series := MonthlySeries(c, c.Available())
	require.Len(t, series, 2)
	assert.Equal(t, 0.0, *series[1].SalesChange)
}

// ============================================================================
// BREAKDOWN + RANKING
// ============================================================================

func breakdownFixture() *Canonical {
	return normalizeCols(schema.Mapping{
		schema.Sales: "s", schema.Profit: "p", schema.Category: "cat", schema.OrderID: "o",
	},
		col("s", 10.0, 20.0, 30.0, 5.0, 5.0, 1.0),
		col("p", 1.0, -2.0, 3.0, 0.5, 0.5, 100.0),
		col("cat", "B", "A", "C", "D", "D", nil),
		col("o", "1", "2", "3", "4", "4", "5"),
	)
}

func TestBreakdownSortedBySales(t *testing.T) {
	c := breakdownFixture()
	rows, err := Breakdown(c, c.Available(), schema.Category)
	require.NoError(t, err)
	require.Len(t, rows, 4, "empty category excluded")

	got := []string{rows[0].Key, rows[1].Key, rows[2].Key, rows[3].Key}
	assert.Equal(t, []string{"C", "A", "B", "D"}, got)

	d := rows[3]
	assert.Equal(t, 10.0, d.Sales)
	assert.Equal(t, 1, d.Orders, "two rows of one order")
	assert.Equal(t, 10.0, d.AvgOrderValue)
	assert.Equal(t, 10.0, *d.ProfitMargin)
	assert.Nil(t, d.Customers)
	assert.Nil(t, d.Quantity)
}

func TestBreakdownTiesKeepKeyOrder(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s", schema.Region: "r"},
		col("s", 5.0, 5.0, 5.0),
		col("r", "West", "East", "North"),
	)
	rows, err := Breakdown(c, c.Available(), schema.Region)
	require.NoError(t, err)
	assert.Equal(t, "East", rows[0].Key)
	assert.Equal(t, "North", rows[1].Key)
	assert.Equal(t, "West", rows[2].Key)
}

func TestBreakdownRejectsNonDimension(t *testing.T) {
	c := breakdownFixture()
	_, err := Breakdown(c, c.Available(), schema.Sales)
	assert.ErrorIs(t, err, ErrNotDimension)

	rows, err := Breakdown(c, c.Available(), schema.Region)
	assert.NoError(t, err)
	assert.Nil(t, rows, "absent dimension is not computed")
}

func TestTopItemsByMetric(t *testing.T) {
	c := breakdownFixture()

	ranked, err := TopItems(c, c.Available(), schema.Category, RankProfit, 2)
	require.NoError(t, err)
	assert.Equal(t, RankProfit, ranked.Metric)
	require.Len(t, ranked.Items, 2)
	assert.Equal(t, "C", ranked.Items[0].Key)
	assert.Equal(t, 3.0, ranked.Items[0].Value)
	assert.Equal(t, "B", ranked.Items[1].Key)

	all, err := TopItems(c, c.Available(), schema.Category, RankSales, 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)
}

func TestTopItemsFallsBackToSales(t *testing.T) {
	c := breakdownFixture()
	ranked, err := TopItems(c, c.Available(), schema.Category, RankQuantity, 1)
	require.NoError(t, err)
	assert.Equal(t, RankQuantity, ranked.Requested)
	assert.Equal(t, RankSales, ranked.Metric)
	assert.Equal(t, "C", ranked.Items[0].Key)
	assert.Equal(t, 30.0, ranked.Items[0].Value)

	ranked, err = TopItems(c, c.Available(), schema.Category, RankMetric("margin"), 1)
	require.NoError(t, err)
	assert.Equal(t, RankSales, ranked.Metric)
}

func TestParseRankMetric(t *testing.T) {
	m, ok := ParseRankMetric(" Profit ")
	assert.True(t, ok)
	assert.Equal(t, RankProfit, m)

	m, ok = ParseRankMetric("margin")
	assert.False(t, ok)
	assert.Equal(t, RankSales, m)
}

// ============================================================================
// SUMMARY + FORMATTING
// ============================================================================

func TestSummarize(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s", schema.Quantity: "q", schema.Category: "c"},
		col("s", 1.0, 2.0, 6.0),
		col("q", 3.0, -1.0, 1.0),
		col("c", "a", "b", "c"),
	)
	sums := Summarize(c, c.Available())
	require.Len(t, sums, 2)
	assert.Equal(t, NumericSummary{Role: schema.Sales, Count: 3, Sum: 9, Mean: 3, Min: 1, Max: 6}, sums[0])
	assert.Equal(t, schema.Quantity, sums[1].Role)
	assert.Equal(t, -1.0, sums[1].Min)
}

func TestSumRoleIsExact(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s"}, col("s", 0.1, 0.2, 0.3))
	assert.Equal(t, 0.6, sumRole(c, schema.Sales))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$ 1,234.50", FormatCurrency(1234.5, "$"))
	assert.Equal(t, "-1,000,000.00", FormatCurrency(-1e6, ""))
	assert.Equal(t, "2.00", FormatCurrency(1.999, ""))
	assert.Equal(t, "12,345", FormatInt(12345))
	assert.Equal(t, "66.7%", FormatPercent(200.0/3))
	assert.Equal(t, 66.67, RoundTo2(200.0/3))
	assert.Equal(t, "-1,200", FormatInt(-1200))
	assert.Equal(t, "999", FormatInt(999))
	assert.Equal(t, "-9,223,372,036,854,775,808", FormatInt(math.MinInt))
	assert.Equal(t, "2.5", FormatQuantity(2.5))
	assert.Equal(t, "1,234.75", FormatQuantity(1234.75))
	assert.Equal(t, "-1,200", FormatQuantity(-1200))
	assert.Equal(t, "3", FormatQuantity(3))
}

func TestMeasuresStayFinite(t *testing.T) {
	c := normalizeCols(schema.Mapping{schema.Sales: "s"}, col("s", 1e308, 1e308))
	assert.Equal(t, math.MaxFloat64, sumRole(c, schema.Sales))
	assert.Equal(t, -math.MaxFloat64, pctChange(1e308, -1e308))
	assert.Zero(t, safeDiv(math.NaN(), 1))

	assert.NotPanics(t, func() {
		FormatCurrency(math.Inf(1), "$")
		FormatPercent(math.Inf(-1))
		FormatQuantity(math.NaN())
		RoundTo2(math.Inf(1))
		round1(math.Inf(-1))
	})
	assert.Equal(t, "0.0%", FormatPercent(math.NaN()))
}
