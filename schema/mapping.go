package schema

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAPPING — Role → raw column name
// ============================================================================
// An absent key (or empty column name) means the role is not supplied.
// Validation enforces: every role valid, every column exists, and no column
// is used for more than one role.
// ============================================================================

var (
	// ErrColumnNotFound is returned when a mapping names a missing column.
	ErrColumnNotFound = errors.New("column not found")
	// ErrColumnReused is returned when one column is mapped to two roles.
	ErrColumnReused = errors.New("column mapped to more than one role")
	// ErrDuplicateRole is returned when textual input assigns a role twice.
	ErrDuplicateRole = errors.New("role assigned more than once")
)

// Mapping assigns raw column names to roles.
type Mapping map[Role]string

// Column returns the raw column for a role, if set.
func (m Mapping) Column(r Role) (string, bool) {
	col, ok := m[r]
	return col, ok && col != ""
}

// Set assigns col to r; an empty col clears the role.
func (m Mapping) Set(r Role, col string) Mapping {
	if m == nil {
		m = Mapping{}
	}
	if col == "" {
		delete(m, r)
		return m
	}
	m[r] = col
	return m
}

// Present returns the set of mapped roles.
func (m Mapping) Present() RoleSet {
	var s RoleSet
	for r, col := range m {
		if col != "" {
			s = s.With(r)
		}
	}
	return s
}

// Roles returns mapped roles in declaration order.
func (m Mapping) Roles() []Role { return m.Present().Roles() }

// Clone returns an independent copy.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for r, col := range m {
		if col != "" {
			out[r] = col
		}
	}
	return out
}

// Validate checks the mapping against the available column names.
func (m Mapping) Validate(columns []string) error {
	exists := make(map[string]bool, len(columns))
	for _, c := range columns {
		exists[c] = true
	}

	usedBy := make(map[string]Role, len(m))
	var errs []error
	for _, r := range sortedRoles(m) {
		col := m[r]
		if !r.Valid() {
			errs = append(errs, fmt.Errorf("%s: %w", r, ErrUnknownRole))
			continue
		}
		if col == "" {
			continue
		}
		if !exists[col] {
			errs = append(errs, fmt.Errorf("%s → %q: %w", r, col, ErrColumnNotFound))
			continue
		}
		if prev, dup := usedBy[col]; dup {
			errs = append(errs, fmt.Errorf("%q used by %s and %s: %w", col, prev, r, ErrColumnReused))
			continue
		}
		usedBy[col] = r
	}
	return errors.Join(errs...)
}

// String renders "role=Column" pairs in role order.
func (m Mapping) String() string {
	parts := make([]string, 0, len(m))
	for _, r := range m.Roles() {
		parts = append(parts, r.String()+"="+m[r])
	}
	return strings.Join(parts, ", ")
}

// ParsePairs builds a Mapping from "role=Column Name" pairs. "role=" keeps
// an empty entry so that applying the pairs over another mapping clears it.
func ParsePairs(pairs []string) (Mapping, error) {
	m := Mapping{}
	for _, p := range pairs {
		key, col, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("mapping %q: expected role=column", p)
		}
		r, err := ParseRole(key)
		if err != nil {
			return nil, err
		}
		if _, dup := m[r]; dup {
			return nil, fmt.Errorf("%s: %w", r, ErrDuplicateRole)
		}
		m[r] = strings.TrimSpace(col)
	}
	return m, nil
}

// LoadMapping reads a YAML file of "role: Column Name" entries.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	m := Mapping{}
	for key, col := range raw {
		r, err := ParseRole(key)
		if err != nil {
			return nil, err
		}
		if _, dup := m[r]; dup {
			return nil, fmt.Errorf("%s: %w", r, ErrDuplicateRole)
		}
		m.Set(r, col)
	}
	return m, nil
}

// SaveMapping writes the mapping as YAML.
func SaveMapping(m Mapping, path string) error {
	out := make(map[string]string, len(m))
	for r, col := range m.Clone() {
		out[r.String()] = col
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	return nil
}

func sortedRoles(m Mapping) []Role {
	roles := make([]Role, 0, len(m))
	for r := range m {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
