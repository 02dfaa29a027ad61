package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/schema"
)

// ============================================================================
// NORMALIZER — Raw dataset + role mapping → canonical, role-typed columns
// ============================================================================
// Normalize is total: it never fails on cell contents. Each role reads only
// its own mapped column, so roles are independent of one another.
//
//   date                            → time (null on failure) + Period
//   sales/profit/quantity/discount  → float64 (0 on failure)
//   category/customer/order_id/...  → string
//   returned                        → bool
//
// A role mapped to a column the dataset does not have is treated as absent.
// The raw dataset is never mutated; Materialize returns a new one.
// ============================================================================

// Canonical is a normalized dataset. It implements View over all its rows.
type Canonical struct {
	raw     *dataset.Dataset
	mapping schema.Mapping
	present schema.RoleSet
	n       int

	dates     []time.Time
	dateValid []bool
	periods   []Period

	numbers  map[schema.Role][]float64
	texts    map[schema.Role][]string
	returned []bool

	defaults map[schema.Role]int
}

// Normalize derives the canonical fields for every mapped role of raw.
func Normalize(raw *dataset.Dataset, mapping schema.Mapping) *Canonical {
	c := &Canonical{
		raw:      raw,
		mapping:  schema.Mapping{},
		n:        raw.Len(),
		numbers:  make(map[schema.Role][]float64),
		texts:    make(map[schema.Role][]string),
		defaults: make(map[schema.Role]int),
	}

	for _, role := range mapping.Roles() {
		name, _ := mapping.Column(role)
		var col *dataset.Column
		if raw != nil {
			col, _ = raw.Column(name)
		}
		if col == nil {
			log.Warn().Str("role", role.String()).Str("column", name).Msg("mapped column not in dataset, role treated as absent")
			continue
		}
		c.mapping.Set(role, name)
		c.present = c.present.With(role)
		c.normalizeRole(role, col.Values)
	}

	log.Debug().Int("rows", c.n).Stringer("mapping", c.mapping).Msg("dataset normalized")
	return c
}

func (c *Canonical) normalizeRole(role schema.Role, values []any) {
	defaulted := 0
	switch role.Kind() {
	case schema.KindTemporal:
		c.dates = make([]time.Time, c.n)
		c.dateValid = make([]bool, c.n)
		c.periods = make([]Period, c.n)
		for i, v := range values {
			out := CoerceDate(v)
			if out.Defaulted {
				defaulted++
				continue
			}
			c.dates[i] = out.Value
			c.dateValid[i] = true
			c.periods[i] = PeriodOf(out.Value)
		}
	case schema.KindNumeric:
		col := make([]float64, c.n)
		for i, v := range values {
			out := CoerceNumber(v)
			if out.Defaulted {
				defaulted++
			}
			col[i] = out.Value
		}
		c.numbers[role] = col
	case schema.KindText:
		col := make([]string, c.n)
		for i, v := range values {
			out := CoerceText(v)
			if out.Defaulted {
				defaulted++
			}
			col[i] = out.Value
		}
		c.texts[role] = col
	case schema.KindFlag:
		c.returned = make([]bool, c.n)
		for i, v := range values {
			out := CoerceFlag(v)
			if out.Defaulted {
				defaulted++
			}
			c.returned[i] = out.Value
		}
	}
	c.defaults[role] = defaulted
}

// ── View implementation ────────────────────────────────────────────────────

func (c *Canonical) Len() int                  { return c.n }
func (c *Canonical) Available() schema.RoleSet { return c.present }

func (c *Canonical) Text(i int, r schema.Role) string {
	col, ok := c.texts[r]
	if !ok || i < 0 || i >= len(col) {
		return ""
	}
	return col[i]
}

func (c *Canonical) Number(i int, r schema.Role) float64 {
	col, ok := c.numbers[r]
	if !ok || i < 0 || i >= len(col) {
		return 0
	}
	return col[i]
}

func (c *Canonical) Date(i int) (time.Time, bool) {
	if i < 0 || i >= len(c.dateValid) || !c.dateValid[i] {
		return time.Time{}, false
	}
	return c.dates[i], true
}

func (c *Canonical) Period(i int) (Period, bool) {
	if i < 0 || i >= len(c.dateValid) || !c.dateValid[i] {
		return Period{}, false
	}
	return c.periods[i], true
}

func (c *Canonical) Returned(i int) bool {
	if i < 0 || i >= len(c.returned) {
		return false
	}
	return c.returned[i]
}

// ── Accessors ──────────────────────────────────────────────────────────────

// Mapping returns the roles that were actually resolved to columns.
func (c *Canonical) Mapping() schema.Mapping { return c.mapping.Clone() }

// Defaults returns, per present role, how many cells fell back to the
// role's default during coercion.
func (c *Canonical) Defaults() map[schema.Role]int {
	out := make(map[schema.Role]int, len(c.defaults))
	for r, n := range c.defaults {
		out[r] = n
	}
	return out
}

// ============================================================================
// MATERIALIZE — canonical fields as dataset columns
// ============================================================================

// Derived column names.
const (
	ColYear      = "_year"
	ColMonth     = "_month"
	ColQuarter   = "_quarter"
	ColYearMonth = "_year_month"
)

// CanonicalColumn names the derived column holding role's canonical values.
func CanonicalColumn(r schema.Role) string { return "_" + r.String() }

// CanonicalMapping maps every present role to its derived column, so that
// Normalize(c.Materialize(), c.CanonicalMapping()) re-reads canonical values.
func (c *Canonical) CanonicalMapping() schema.Mapping {
	m := schema.Mapping{}
	for _, r := range c.present.Roles() {
		m.Set(r, CanonicalColumn(r))
	}
	return m
}

// Materialize returns the raw dataset plus one derived column per present
// role. Date roles also get _year, _month, _quarter and _year_month.
func (c *Canonical) Materialize() *dataset.Dataset {
	cols := []dataset.Column{}
	if c.raw != nil {
		cols = append(cols, c.raw.Columns()...)
	}
	add := func(name string, values []any) {
		for i := range cols {
			if cols[i].Name == name {
				cols[i].Values = values
				return
			}
		}
		cols = append(cols, dataset.Column{Name: name, Values: values})
	}

	for _, r := range c.present.Roles() {
		values := make([]any, c.n)
		switch r.Kind() {
		case schema.KindTemporal:
			year, month, quarter, ym := make([]any, c.n), make([]any, c.n), make([]any, c.n), make([]any, c.n)
			for i := 0; i < c.n; i++ {
				if !c.dateValid[i] {
					continue
				}
				p := c.periods[i]
				values[i] = c.dates[i]
				year[i], month[i], quarter[i], ym[i] = p.Year, p.Month, p.Quarter, p.Key
			}
			add(CanonicalColumn(r), values)
			add(ColYear, year)
			add(ColMonth, month)
			add(ColQuarter, quarter)
			add(ColYearMonth, ym)
			continue
		case schema.KindNumeric:
			for i, v := range c.numbers[r] {
				values[i] = v
			}
		case schema.KindText:
			for i, v := range c.texts[r] {
				values[i] = v
			}
		case schema.KindFlag:
			for i, v := range c.returned {
				values[i] = v
			}
		}
		add(CanonicalColumn(r), values)
	}
	return dataset.MustNew(cols...)
}
