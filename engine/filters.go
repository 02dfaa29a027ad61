package engine

import (
	"sort"
	"time"

	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// FILTERS — Option domains + single-pass selection via View
// ============================================================================
// DeriveOptions scans a view once and reports what can be filtered on.
// ApplyFilter checks ALL constraints per row in one loop and returns a
// SubView (index list into parent) with zero data copy.
// ============================================================================

// FilterOptions describes the filterable domains of a dataset.
type FilterOptions struct {
	Available  schema.RoleSet `json:"available"`
	MinDate    *time.Time     `json:"min_date,omitempty"`
	MaxDate    *time.Time     `json:"max_date,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Regions    []string       `json:"regions,omitempty"`
	Segments   []string       `json:"segments,omitempty"`
}

// DeriveOptions computes availability flags and sorted distinct domains.
// Empty values are excluded; min/max date ignore nulls and stay nil when no
// date parsed.
func DeriveOptions(view View) FilterOptions {
	avail := view.Available()
	opts := FilterOptions{Available: avail}

	if avail.Has(schema.Date) {
		var lo, hi time.Time
		found := false
		for i := 0; i < view.Len(); i++ {
			t, ok := view.Date(i)
			if !ok {
				continue
			}
			if !found || t.Before(lo) {
				lo = t
			}
			if !found || t.After(hi) {
				hi = t
			}
			found = true
		}
		if found {
			opts.MinDate, opts.MaxDate = &lo, &hi
		}
	}

	if avail.Has(schema.Category) {
		opts.Categories = DistinctValues(view, schema.Category)
	}
	if avail.Has(schema.Region) {
		opts.Regions = DistinctValues(view, schema.Region)
	}
	if avail.Has(schema.Segment) {
		opts.Segments = DistinctValues(view, schema.Segment)
	}
	return opts
}

// DistinctValues returns the sorted non-empty values of a text role.
func DistinctValues(view View, r schema.Role) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := 0; i < view.Len(); i++ {
		v := view.Text(i, r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// SELECTION
// ============================================================================

// Selection is a filter request. Nil bounds and empty lists are no-ops.
type Selection struct {
	Start      *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End        *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
	Categories []string   `json:"categories,omitempty" yaml:"categories,omitempty"`
	Regions    []string   `json:"regions,omitempty" yaml:"regions,omitempty"`
	Segments   []string   `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// IsEmpty reports whether the selection restricts nothing.
func (s Selection) IsEmpty() bool {
	return s.Start == nil && s.End == nil &&
		len(s.Categories) == 0 && len(s.Regions) == 0 && len(s.Segments) == 0
}

// ApplyFilter returns the rows of view matching every constraint.
//
//   - date bounds are inclusive; once any bound is set, rows without a
//     parsed date are dropped. Without a date role the bounds are ignored.
//   - allow-lists match exactly; an empty list, or a list for an unmapped
//     role, does not restrict.
//   - constraints are AND-combined.
//
// The parent view is never modified. An empty result is valid.
func ApplyFilter(view View, sel Selection) View {
	if sel.IsEmpty() {
		return view
	}

	avail := view.Available()
	useDates := avail.Has(schema.Date) && (sel.Start != nil || sel.End != nil)

	type allowList struct {
		role schema.Role
		set  map[string]bool
	}
	var lists []allowList
	for _, f := range []struct {
		role   schema.Role
		values []string
	}{
		{schema.Category, sel.Categories},
		{schema.Region, sel.Regions},
		{schema.Segment, sel.Segments},
	} {
		if len(f.values) == 0 || !avail.Has(f.role) {
			continue
		}
		lists = append(lists, allowList{role: f.role, set: toSet(f.values)})
	}

	if !useDates && len(lists) == 0 {
		return view
	}

	return where(view, func(i int) bool {
		if useDates {
			t, ok := view.Date(i)
			if !ok {
				return false
			}
			if sel.Start != nil && t.Before(*sel.Start) {
				return false
			}
			if sel.End != nil && t.After(*sel.End) {
				return false
			}
		}
		for _, l := range lists {
			if !l.set[view.Text(i, l.role)] {
				return false
			}
		}
		return true
	})
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
