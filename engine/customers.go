package engine

import (
	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// CUSTOMERS — Top customers, repeat rate, loyalty buckets
// ============================================================================
// Every function here needs the customer role; without it they report
// ok=false (or an empty ranking). Orders per customer use the same
// order fallback as everything else.
// ============================================================================

// TopCustomers ranks customers by sales, highest first, keeping n.
// Items carries the quantity total when quantity is mapped.
func TopCustomers(view View, avail schema.RoleSet, n int) RankedItems {
	ranked, _ := TopItems(view, avail, schema.Customer, RankSales, n)
	for i := range ranked.Items {
		ranked.Items[i].Items = ranked.Items[i].Quantity
	}
	return ranked
}

// RepeatStats is the repeat-customer classification.
type RepeatStats struct {
	Total  int     `json:"total_customers"`
	Repeat int     `json:"repeat_customers"`
	Rate   float64 `json:"repeat_rate"`
}

// RepeatCustomers counts customers with two or more orders.
func RepeatCustomers(view View, avail schema.RoleSet) (RepeatStats, bool) {
	if !avail.Has(schema.Customer) {
		return RepeatStats{}, false
	}
	var s RepeatStats
	for _, orders := range ordersPerCustomer(view, avail) {
		s.Total++
		if orders >= 2 {
			s.Repeat++
		}
	}
	s.Rate = safeDiv(float64(s.Repeat), float64(s.Total)) * 100
	return s, true
}

// CustomerStats are per-customer averages.
type CustomerStats struct {
	Customers             int     `json:"customers"`
	AvgRevenuePerCustomer float64 `json:"avg_revenue_per_customer"`
	AvgOrdersPerCustomer  float64 `json:"avg_orders_per_customer"`
}

// CustomerSummary averages revenue and orders over distinct customers.
func CustomerSummary(view View, avail schema.RoleSet) (CustomerStats, bool) {
	if !avail.Has(schema.Customer) {
		return CustomerStats{}, false
	}
	customers := distinctCount(view, schema.Customer)
	return CustomerStats{
		Customers:             customers,
		AvgRevenuePerCustomer: safeDiv(sumRole(view, schema.Sales), float64(customers)),
		AvgOrdersPerCustomer:  safeDiv(float64(orderCount(view, avail)), float64(customers)),
	}, true
}

// LoyaltyBucket counts customers whose order count falls in a range.
type LoyaltyBucket struct {
	Label     string  `json:"label"`
	Customers int     `json:"customers"`
	Percent   float64 `json:"percent"`
}

// LoyaltyDistribution buckets customers by how often they ordered.
type LoyaltyDistribution struct {
	Buckets       []LoyaltyBucket `json:"buckets"`
	Total         int             `json:"total_customers"`
	OneTime       int             `json:"one_time"`
	MultiOrder    int             `json:"multi_order"`
	Loyal         int             `json:"loyal"`
	OneTimePct    float64         `json:"one_time_pct"`
	MultiOrderPct float64         `json:"multi_order_pct"`
	LoyalPct      float64         `json:"loyal_pct"`
}

var loyaltyBuckets = []struct {
	label string
	min   int
	max   int // inclusive, 0 = unbounded
}{
	{"1 order", 1, 1},
	{"2 orders", 2, 2},
	{"3-4 orders", 3, 4},
	{"5-9 orders", 5, 9},
	{"10+ orders", 10, 0},
}

// Loyalty classifies customers as one-time (1 order), multi-order (2+) and
// loyal (3+), and buckets them by order count.
func Loyalty(view View, avail schema.RoleSet) (LoyaltyDistribution, bool) {
	if !avail.Has(schema.Customer) {
		return LoyaltyDistribution{}, false
	}

	d := LoyaltyDistribution{Buckets: make([]LoyaltyBucket, len(loyaltyBuckets))}
	for i, b := range loyaltyBuckets {
		d.Buckets[i].Label = b.label
	}

	for _, orders := range ordersPerCustomer(view, avail) {
		d.Total++
		switch {
		case orders >= 3:
			d.Loyal++
			d.MultiOrder++
		case orders == 2:
			d.MultiOrder++
		case orders == 1:
			d.OneTime++
		}
		for i, b := range loyaltyBuckets {
			if orders >= b.min && (b.max == 0 || orders <= b.max) {
				d.Buckets[i].Customers++
				break
			}
		}
	}

	total := float64(d.Total)
	for i := range d.Buckets {
		d.Buckets[i].Percent = safeDiv(float64(d.Buckets[i].Customers), total) * 100
	}
	d.OneTimePct = safeDiv(float64(d.OneTime), total) * 100
	d.MultiOrderPct = safeDiv(float64(d.MultiOrder), total) * 100
	d.LoyalPct = safeDiv(float64(d.Loyal), total) * 100
	return d, true
}

// ordersPerCustomer maps each non-empty customer to their order count.
func ordersPerCustomer(view View, avail schema.RoleSet) map[string]int {
	out := make(map[string]int)
	for _, g := range groupBy(view, schema.Customer) {
		out[g.Key] = orderCount(g.View, avail)
	}
	return out
}
