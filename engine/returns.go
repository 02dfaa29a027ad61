package engine

import (
	"fmt"
	"sort"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// RETURNS — Return metrics and return-rate rankings
// ============================================================================
// Both need the returned flag. Returned orders are distinct order ids among
// returned rows, or returned rows without an order_id role.
// ============================================================================

// ReturnMetrics summarizes returns over a view.
type ReturnMetrics struct {
	TotalOrders        int     `json:"total_orders"`
	ReturnedOrders     int     `json:"returned_orders"`
	ReturnRate         float64 `json:"return_rate"`
	ReturnedSales      float64 `json:"returned_sales"`
	ReturnedProfitLoss float64 `json:"returned_profit_loss"`
}

// ComputeReturns reports ok=false when the returned role is absent.
// ReturnedProfitLoss is 0 without a profit role.
func ComputeReturns(view View, avail schema.RoleSet) (ReturnMetrics, bool) {
	if !avail.Has(schema.Returned) {
		return ReturnMetrics{}, false
	}
	returned := returnedRows(view)
	m := ReturnMetrics{
		TotalOrders:    orderCount(view, avail),
		ReturnedOrders: orderCount(returned, avail),
		ReturnedSales:  sumRole(returned, schema.Sales),
	}
	if avail.Has(schema.Profit) {
		m.ReturnedProfitLoss = sumRole(returned, schema.Profit)
	}
	m.ReturnRate = safeDiv(float64(m.ReturnedOrders), float64(m.TotalOrders)) * 100
	return m, true
}

// ReturnRateRow is the return rate of one dimension value.
type ReturnRateRow struct {
	Key         string   `json:"key"`
	TotalOrders int      `json:"total_orders"`
	Returns     int      `json:"returns"`
	ReturnRate  float64  `json:"return_rate"`
	Profit      *float64 `json:"profit,omitempty"`
}

// ReturnRateRanking ranks dimension values by return rate, highest first,
// keeping n (n <= 0 keeps all). Orders are counted per group. Groups with
// no returns are left out.
func ReturnRateRanking(view View, avail schema.RoleSet, by schema.Role, n int) ([]ReturnRateRow, error) {
	if !by.IsDimension() {
		return nil, fmt.Errorf("return rate by %s: %w", by, ErrNotDimension)
	}
	if !avail.Has(schema.Returned) || !avail.Has(by) {
		return nil, nil
	}

	rows := []ReturnRateRow{}
	for _, g := range groupBy(view, by) {
		returns := orderCount(returnedRows(g.View), avail)
		if returns == 0 {
			continue
		}
		row := ReturnRateRow{
			Key:         g.Key,
			TotalOrders: orderCount(g.View, avail),
			Returns:     returns,
		}
		row.ReturnRate = safeDiv(float64(row.Returns), float64(row.TotalOrders)) * 100
		if avail.Has(schema.Profit) {
			row.Profit = floatPtr(sumRole(g.View, schema.Profit))
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ReturnRate > rows[j].ReturnRate })
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func returnedRows(view View) View {
	return where(view, view.Returned)
}
