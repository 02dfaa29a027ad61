package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/datadash/session"
)

var ordersCSV = `Order ID,Order Date,Customer,Region,Category,Sales,Profit,Returned
1,2024-01-05,Ann,West,Tech,100,10,No
2,2024-01-09,Bo,East,Tech,200,20,Yes
3,2024-02-01,Ann,West,Office,300,-30,No
`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(session.NewStore(), Options{})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, method, url, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions?name=orders.csv", "text/csv", []byte(ordersCSV))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	return got["id"].(string)
}

func TestCreateSessionSuggestsMapping(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions?name=orders.csv", "text/csv", []byte(ordersCSV))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var got struct {
		ID        string            `json:"id"`
		Rows      int               `json:"rows"`
		Source    string            `json:"source"`
		Mapping   map[string]string `json:"mapping"`
		Detection struct {
			Rows        int      `json:"rows"`
			DateColumns []string `json:"dateColumns"`
		} `json:"detection"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, "orders.csv", got.Source)
	assert.Equal(t, "Sales", got.Mapping["sales"])
	assert.Equal(t, "Order ID", got.Mapping["order_id"])
	assert.Equal(t, 3, got.Detection.Rows)
	assert.Equal(t, []string{"Order Date"}, got.Detection.DateColumns)
}

func TestReportLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/v1/sessions/" + id

	resp, body := do(t, http.MethodGet, base+"/options", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opts struct {
		Available  map[string]bool `json:"available"`
		Categories []string        `json:"categories"`
		MinDate    string          `json:"min_date"`
	}
	require.NoError(t, json.Unmarshal(body, &opts))
	assert.Equal(t, []string{"Office", "Tech"}, opts.Categories)
	assert.True(t, opts.Available["has_returned"])
	assert.False(t, opts.Available["has_segment"])
	assert.True(t, strings.HasPrefix(opts.MinDate, "2024-01-05"))

	resp, body = do(t, http.MethodPost, base+"/report?tables=true&charts=true", "application/json",
		[]byte(`{"filters":{"categories":["Tech"]},"top_n":1,"rank_by":"profit"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var rep struct {
		FilteredRows int `json:"filtered_rows"`
		KPIs         struct {
			TotalSales  float64 `json:"total_sales"`
			TotalOrders int     `json:"total_orders"`
		} `json:"kpis"`
		Returns struct {
			ReturnRate float64 `json:"return_rate"`
		} `json:"returns"`
		ReturnHealth string `json:"return_health"`
		TopCustomers struct {
			Items []map[string]any `json:"items"`
		} `json:"top_customers"`
		Tables []map[string]any `json:"tables"`
		Charts []map[string]any `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, 2, rep.FilteredRows)
	assert.Equal(t, 300.0, rep.KPIs.TotalSales)
	assert.Equal(t, 2, rep.KPIs.TotalOrders)
	assert.Equal(t, 50.0, rep.Returns.ReturnRate)
	assert.Equal(t, "high", rep.ReturnHealth)
	assert.Len(t, rep.TopCustomers.Items, 1)
	assert.NotEmpty(t, rep.Tables)
	assert.NotEmpty(t, rep.Charts)

	resp, body = do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"categories":["Tech"]`, "filters are kept on the session")

	resp, body = do(t, http.MethodGet, ts.URL+"/v1/sessions", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"sessions":["`+id+`"]}`, string(body))

	resp, _ = do(t, http.MethodDelete, base, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetMapping(t *testing.T) {
	_, ts := newTestServer(t)
	base := ts.URL + "/v1/sessions/" + createSession(t, ts)

	resp, _ := do(t, http.MethodPut, base+"/mapping", "application/json", []byte(`{"sales":"Profit","customer":"Customer"}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, base+"/report", "application/json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep struct {
		KPIs struct {
			TotalSales float64 `json:"total_sales"`
		} `json:"kpis"`
		Monthly []any `json:"monthly"`
	}
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, 0.0, rep.KPIs.TotalSales)
	assert.Nil(t, rep.Monthly, "date is no longer mapped")

	cases := []struct {
		payload string
		want    int
	}{
		{`{"sales":"Nope"}`, http.StatusUnprocessableEntity},
		{`{"sales":"Sales","profit":"Sales"}`, http.StatusUnprocessableEntity},
		{`{"margin":"Sales"}`, http.StatusUnprocessableEntity},
		{`{"sales":`, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, body := do(t, http.MethodPut, base+"/mapping", "application/json", []byte(c.payload))
		assert.Equal(t, c.want, resp.StatusCode, "%s → %s", c.payload, body)
	}

	resp, _ = do(t, http.MethodPut, base+"/mapping", "application/json", []byte(`{"customer":"Customer"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, base+"/report", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "sales is required")
}

func TestEmptySessionAndErrors(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	base := ts.URL + "/v1/sessions/" + got["id"].(string)

	resp, _ = do(t, http.MethodGet, base+"/options", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, base+"/report", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, base+"/data", "text/csv", []byte(""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/sessions/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, ts.URL+"/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadExcel(t *testing.T) {
	_, ts := newTestServer(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Client", "Amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ann", 10}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Bo", 32.5}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/sessions", xlsxContentType, buf.Bytes())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var got struct {
		ID      string            `json:"id"`
		Rows    int               `json:"rows"`
		Mapping map[string]string `json:"mapping"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, "Amount", got.Mapping["sales"])

	resp, body = do(t, http.MethodPost, ts.URL+"/v1/sessions/"+got.ID+"/report", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_sales":42.5`)
}

func TestUploadTooLarge(t *testing.T) {
	srv := New(session.NewStore(), Options{MaxUploadBytes: 16})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, _ := do(t, http.MethodPost, ts.URL+"/v1/sessions", "text/csv", []byte(ordersCSV))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, 0, srv.store.Len(), "failed upload does not leave a session behind")
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)
	resp, _ := do(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/report", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, `datadash_reports_total{outcome="ok"} 1`)
	assert.Contains(t, text, `datadash_sessions 1`)
	assert.Contains(t, text, `datadash_rows_ingested_total 3`)
	assert.Contains(t, text, `datadash_report_duration_seconds_count 1`)
	assert.Contains(t, text, `datadash_http_requests_total{code="201",route="/v1/sessions"} 1`)
}
