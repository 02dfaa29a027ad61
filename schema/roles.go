package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// ROLES — Fixed business meanings a raw column can play
// ============================================================================
// A Role is assigned to at most one raw column by a Mapping. Each role has a
// fixed canonical Kind that decides how the normalizer coerces its values.
// ============================================================================

// ErrUnknownRole is returned when text does not name a role.
var ErrUnknownRole = errors.New("unknown role")

// Role is a semantic business meaning for a column.
type Role uint8

const (
	Date Role = iota
	Sales
	Profit
	Quantity
	Category
	Customer
	OrderID
	Region
	Segment
	Product
	Discount
	Returned

	numRoles
)

// Kind is the canonical type a role's values are coerced to.
type Kind uint8

const (
	KindTemporal Kind = iota
	KindNumeric
	KindText
	KindFlag
)

type roleDescriptor struct {
	key     string
	label   string
	kind    Kind
	aliases []string
}

// roleTable is the typed lookup from role to its canonical descriptor.
var roleTable = [numRoles]roleDescriptor{
	Date:     {"date", "Date", KindTemporal, []string{"order_date"}},
	Sales:    {"sales", "Sales", KindNumeric, []string{"revenue"}},
	Profit:   {"profit", "Profit", KindNumeric, nil},
	Quantity: {"quantity", "Quantity", KindNumeric, []string{"qty"}},
	Category: {"category", "Category", KindText, nil},
	Customer: {"customer", "Customer", KindText, nil},
	OrderID:  {"order_id", "Order ID", KindText, []string{"order"}},
	Region:   {"region", "Region", KindText, nil},
	Segment:  {"segment", "Segment", KindText, nil},
	Product:  {"product", "Product", KindText, nil},
	Discount: {"discount", "Discount", KindNumeric, nil},
	Returned: {"returned", "Returned", KindFlag, []string{"return", "returns"}},
}

// AllRoles lists every role in declaration order.
func AllRoles() []Role {
	roles := make([]Role, numRoles)
	for i := range roles {
		roles[i] = Role(i)
	}
	return roles
}

// Valid reports whether r is a declared role.
func (r Role) Valid() bool { return r < numRoles }

// String returns the role key ("order_id").
func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleTable[r].key
}

// Label returns a display label ("Order ID").
func (r Role) Label() string {
	if !r.Valid() {
		return r.String()
	}
	return roleTable[r].label
}

// Kind returns the canonical kind. Panics on an undeclared role: that is a
// programming error at the API boundary.
func (r Role) Kind() Kind {
	if !r.Valid() {
		panic(fmt.Sprintf("schema: %s has no kind", r))
	}
	return roleTable[r].kind
}

// IsNumeric reports whether the role coerces to a number.
func (r Role) IsNumeric() bool { return r.Valid() && roleTable[r].kind == KindNumeric }

// IsDimension reports whether the role is a groupable text dimension.
func (r Role) IsDimension() bool { return r.Valid() && roleTable[r].kind == KindText }

// ParseRole maps "order_id", "Order ID", "order-id" or an alias to a Role.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for i, d := range roleTable {
		if d.key == key {
			return Role(i), nil
		}
		for _, a := range d.aliases {
			if a == key {
				return Role(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownRole)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%s: %w", r, ErrUnknownRole)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ============================================================================
// ROLE SET — Availability flags
// ============================================================================

// RoleSet is a set of present roles. The zero value is empty.
type RoleSet uint16

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

// With returns s plus r.
func (s RoleSet) With(r Role) RoleSet {
	if !r.Valid() {
		return s
	}
	return s | 1<<r
}

// Has reports membership.
func (s RoleSet) Has(r Role) bool { return r.Valid() && s&(1<<r) != 0 }

// Roles lists members in declaration order.
func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range AllRoles() {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Flags renders the set as has_<role> booleans for every declared role.
func (s RoleSet) Flags() map[string]bool {
	flags := make(map[string]bool, numRoles)
	for _, r := range AllRoles() {
		flags["has_"+r.String()] = s.Has(r)
	}
	return flags
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Flags())
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	var flags map[string]bool
	if err := json.Unmarshal(b, &flags); err != nil {
		return err
	}
	var out RoleSet
	for k, set := range flags {
		if !set {
			continue
		}
		r, err := ParseRole(strings.TrimPrefix(k, "has_"))
		if err != nil {
			return err
		}
		out = out.With(r)
	}
	*s = out
	return nil
}
