package engine

import (
	"sort"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// ORDERS + GROUPING — shared counting rules
// ============================================================================
// orderCount is the only place the order fallback lives: with an order_id
// role, orders are distinct non-empty ids; without one, every row is an
// order. KPIs, monthly buckets, breakdowns, customer stats and return rates
// all count orders through it.
// ============================================================================

// orderCount counts orders in view, falling back to rows when avail has no
// order_id.
func orderCount(view View, avail schema.RoleSet) int {
	if !avail.Has(schema.OrderID) {
		return view.Len()
	}
	return distinctCount(view, schema.OrderID)
}

// distinctCount counts distinct non-empty values of a text role.
func distinctCount(view View, r schema.Role) int {
	seen := make(map[string]struct{})
	for i := 0; i < view.Len(); i++ {
		if v := view.Text(i, r); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// group is one value of a dimension and the rows carrying it.
type group struct {
	Key  string
	View View
}

// groupBy partitions view by a text role, in ascending key order.
// Rows with an empty value belong to no group.
func groupBy(view View, r schema.Role) []group {
	return partition(view, func(i int) string { return view.Text(i, r) })
}

// groupByPeriod partitions view by year-month bucket. Rows without a parsed
// date belong to no bucket.
func groupByPeriod(view View) []group {
	return partition(view, func(i int) string {
		p, ok := view.Period(i)
		if !ok {
			return ""
		}
		return p.Key
	})
}

func partition(view View, keyOf func(i int) string) []group {
	indices := make(map[string][]int)
	for i := 0; i < view.Len(); i++ {
		k := keyOf(i)
		if k == "" {
			continue
		}
		indices[k] = append(indices[k], i)
	}

	keys := make([]string, 0, len(indices))
	for k := range indices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]group, len(keys))
	for j, k := range keys {
		groups[j] = group{Key: k, View: newSubView(view, indices[k])}
	}
	return groups
}
