package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/datadash/schema"
)

func TestBreakdownChart(t *testing.T) {
	c := breakdownFixture()
	rows, err := Breakdown(c, c.Available(), schema.Category)
	require.NoError(t, err)

	chart := BreakdownChart(schema.Category, rows)
	require.NotNil(t, chart)
	assert.Equal(t, "bar", chart.ChartType)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, "Sales", chart.Series[0].Name)
	assert.Equal(t, ChartPoint{Label: "C", Value: 30}, chart.Series[0].Data[0])
	assert.Len(t, chart.Series[1].Data, len(rows))

	assert.Nil(t, BreakdownChart(schema.Category, nil))
}

func TestMonthlyChartWithoutProfit(t *testing.T) {
	points := []MonthlyPoint{{Month: "2024-01", Sales: 10}, {Month: "2024-02", Sales: 12.345}}
	chart := MonthlyChart(points, schema.NewRoleSet(schema.Date, schema.Sales))
	require.NotNil(t, chart)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, []ChartPoint{{"2024-01", 10}, {"2024-02", 12.35}}, chart.Series[0].Data)

	assert.Nil(t, MonthlyChart(nil, schema.NewRoleSet(schema.Sales)))
}

func TestReportCharts(t *testing.T) {
	rep, err := Run(context.Background(), storeRequest(t), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	charts := rep.Charts()
	require.NotEmpty(t, charts)
	assert.Equal(t, "line", charts[0].ChartType)
	titles := make([]string, len(charts))
	for i, c := range charts {
		titles[i] = c.Title
		for _, s := range c.Series {
			assert.NotEmpty(t, s.Data, c.Title)
		}
	}
	assert.Contains(t, titles, "Sales by "+schema.Region.Label())
	assert.Contains(t, titles, "Top "+schema.Customer.Label()+" by Sales")
}
