package engine

import (
	"time"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// VIEW — Zero-Copy Access to Canonical Rows
// ============================================================================
// The aggregator never copies rows. It reads through this interface.
//
// Implementations:
//   *Canonical — every row of a normalized dataset
//   SubView    — filtered or grouped subset (indices into parent, zero-copy)
//
// Fields are addressed by schema.Role, never by column name. Reading a role
// that is not Available returns the zero value; callers must check
// Available() to tell "absent" from "zero".
// ============================================================================

// View provides indexed, role-typed access to canonical rows.
// Aggregators call these in tight loops; keep implementations fast.
type View interface {
	Len() int
	Available() schema.RoleSet
	Text(i int, r schema.Role) string
	Number(i int, r schema.Role) float64
	Date(i int) (time.Time, bool)
	Period(i int) (Period, bool)
	Returned(i int) bool
}

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a subset of a parent View.
// Holds indices into the parent, no data copy.
type SubView struct {
	parent  View
	indices []int
}

func newSubView(parent View, indices []int) View {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int                  { return len(v.indices) }
func (v *SubView) Available() schema.RoleSet { return v.parent.Available() }

func (v *SubView) Text(i int, r schema.Role) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Text(v.indices[i], r)
}

func (v *SubView) Number(i int, r schema.Role) float64 {
	if i < 0 || i >= len(v.indices) {
		return 0
	}
	return v.parent.Number(v.indices[i], r)
}

func (v *SubView) Date(i int) (time.Time, bool) {
	if i < 0 || i >= len(v.indices) {
		return time.Time{}, false
	}
	return v.parent.Date(v.indices[i])
}

func (v *SubView) Period(i int) (Period, bool) {
	if i < 0 || i >= len(v.indices) {
		return Period{}, false
	}
	return v.parent.Period(v.indices[i])
}

func (v *SubView) Returned(i int) bool {
	if i < 0 || i >= len(v.indices) {
		return false
	}
	return v.parent.Returned(v.indices[i])
}

// where returns the rows of view matching keep, as a SubView.
func where(view View, keep func(i int) bool) View {
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if keep(i) {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}
