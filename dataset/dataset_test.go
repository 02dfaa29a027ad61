package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var superstoreCSV = []byte(`Order ID,Order Date,Customer,Category,Sales,Profit,Returned
CA-1001,2024-01-05,Alice,Furniture,100.50,10,Yes
CA-1002,2024-01-20,Bob,Technology,200,-5,No
CA-1003,2024-02-11,Alice,,300,,
`)

func TestParseCSVTypesColumns(t *testing.T) {
	ds, err := ParseCSV(superstoreCSV)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"Order ID", "Order Date", "Customer", "Category", "Sales", "Profit", "Returned"}, ds.Names())

	sales, ok := ds.Column("Sales")
	require.True(t, ok)
	assert.Equal(t, []any{100.5, 200.0, 300.0}, sales.Values)

	profit, _ := ds.Column("Profit")
	assert.Equal(t, []any{10.0, -5.0, nil}, profit.Values, "empty numeric cell is null")

	cat, _ := ds.Column("Category")
	assert.Equal(t, []any{"Furniture", "Technology", nil}, cat.Values)

	date, _ := ds.Column("Order Date")
	assert.Equal(t, "2024-01-05", date.Values[0], "dates stay text for the normalizer")
}

func TestParseCSVWindows1252Fallback(t *testing.T) {
	// "Café" encoded as Windows-1252 (0xE9), not valid UTF-8.
	data := []byte("Customer,Sales\nCaf\xe9,10\n")
	ds, err := ParseCSV(data)
	require.NoError(t, err)

	c, _ := ds.Column("Customer")
	assert.Equal(t, "Café", c.Values[0])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseCSVRaggedRowsAndDuplicateHeaders(t *testing.T) {
	ds, err := ParseCSV([]byte("A,A,B\n1,2\n3,4,5,6\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "A.1", "B"}, ds.Names())
	b, _ := ds.Column("B")
	assert.Equal(t, []any{nil, 5.0}, b.Values)
}

func TestNewRejectsRaggedColumns(t *testing.T) {
	_, err := New(
		Column{Name: "a", Values: []any{1, 2}},
		Column{Name: "b", Values: []any{1}},
	)
	assert.Error(t, err)

	_, err = New(
		Column{Name: "a", Values: []any{1}},
		Column{Name: "a", Values: []any{1}},
	)
	assert.Error(t, err)
}

func TestWithColumnDoesNotMutate(t *testing.T) {
	ds := MustNew(Column{Name: "a", Values: []any{1.0, 2.0}})
	next, err := ds.WithColumn(Column{Name: "b", Values: []any{"x", "y"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ds.Names())
	assert.Equal(t, []string{"a", "b"}, next.Names())

	_, err = ds.WithColumn(Column{Name: "c", Values: []any{"x"}})
	assert.Error(t, err)
}

func TestStringify(t *testing.T) {
	cases := map[string]any{
		"":       nil,
		"1001":   1001.0,
		"12.5":   12.5,
		"7":      7,
		"True":   true,
		"False":  false,
		"Alpha":  "Alpha",
		"-3":     int64(-3),
		"0.0001": 0.0001,
	}
	for want, in := range cases {
		assert.Equal(t, want, Stringify(in), "Stringify(%v)", in)
	}
}

func TestReadExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Region", "Sales"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"East", 120}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"West", 80}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ds, err := ReadExcel(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	sales, _ := ds.Column("Sales")
	assert.Equal(t, []any{120.0, 80.0}, sales.Values)
	region, _ := ds.Column("Region")
	assert.Equal(t, []any{"East", "West"}, region.Values)
}

func TestHead(t *testing.T) {
	ds := MustNew(Column{Name: "a", Values: []any{1.0, 2.0, 3.0}})
	assert.Equal(t, 2, ds.Head(2).Len())
	assert.Equal(t, 3, ds.Head(10).Len())
}
