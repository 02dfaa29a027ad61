package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/schema"
)

const ordersCSV = `Order ID,Order Date,Customer,Region,Category,Amount,Profit
1,2024-01-05,Ann,West,Tech,100,10
2,2024-01-31,Bo,East,Tech,200,20
3,2024-02-01,Ann,West,Office,300,-30
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestParseBound(t *testing.T) {
	got, err := parseBound("", true)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseBound("2024-01-31", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseBound("2024-01-31", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *got)

	got, err = parseBound("2024-01-31 12:00:00", true)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Hour(), "explicit time of day is kept")

	got, err = parseBound("31/01/2024", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *got, "day-first bounds are accepted")

	_, err = parseBound("not a date", false)
	assert.Error(t, err)
}

func TestResolveMapping(t *testing.T) {
	ds, err := dataset.ParseCSV([]byte(ordersCSV))
	require.NoError(t, err)

	m, err := resolveMapping(ds, "", []string{"sales=Profit", "profit="})
	require.NoError(t, err)
	assert.Equal(t, "Profit", m[schema.Sales])
	_, ok := m.Column(schema.Profit)
	assert.False(t, ok, "an empty override clears the role")
	assert.Equal(t, "Customer", m[schema.Customer])

	path := writeFile(t, "mapping.yaml", "sales: Amount\n")
	m, err = resolveMapping(ds, path, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.Mapping{schema.Sales: "Amount"}, m)

	_, err = resolveMapping(ds, "", []string{"margin=Profit"})
	assert.ErrorIs(t, err, schema.ErrUnknownRole)
}

func TestReportCommandJSON(t *testing.T) {
	path := writeFile(t, "orders.csv", ordersCSV)
	out := execute(t, "report", "--file", path, "--map", "sales=Amount", "--to", "2024-01-31", "--log-level", "error")

	var rep struct {
		FilteredRows int `json:"filtered_rows"`
		KPIs         struct {
			TotalSales float64 `json:"total_sales"`
		} `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.FilteredRows, "--to covers the whole last day")
	assert.Equal(t, 300.0, rep.KPIs.TotalSales)
}

func TestReportCommandCSV(t *testing.T) {
	path := writeFile(t, "orders.csv", ordersCSV)
	outPath := filepath.Join(t.TempDir(), "report.csv")
	execute(t, "report", "--file", path, "--map", "sales=Amount", "--format", "csv", "--out", outPath, "--log-level", "error")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"Key Metrics"}, records[0])
	assert.Equal(t, []string{"Metric", "Value"}, records[1])
	assert.Contains(t, string(data), "Sales by Category")
}

func TestInspectCommand(t *testing.T) {
	path := writeFile(t, "orders.csv", ordersCSV)
	mappingPath := filepath.Join(t.TempDir(), "suggested.yaml")
	out := execute(t, "inspect", "--file", path, "--save-mapping", mappingPath, "--log-level", "error")

	assert.Contains(t, out, "Suggested mapping:")
	assert.Contains(t, out, "Order Date")

	m, err := schema.LoadMapping(mappingPath)
	require.NoError(t, err)
	assert.Equal(t, "Order Date", m[schema.Date])
}

func TestReportCommandRejectsBadFlags(t *testing.T) {
	path := writeFile(t, "orders.csv", ordersCSV)
	for _, args := range [][]string{
		{"report", "--file", path, "--rank-by", "margin"},
		{"report", "--file", path, "--format", "xml"},
		{"report", "--file", path, "--from", "someday"},
	} {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--log-level", "error"))
		assert.Error(t, cmd.Execute(), "%v", args)
	}
}
