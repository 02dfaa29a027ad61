package engine

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/datadash/dataset"
)

// ============================================================================
// COERCION — Raw cell → canonical value, never an error
// ============================================================================
// Every coercion returns the canonical value plus whether it fell back to the
// role's default. Callers outside the engine only ever see Value; the
// Defaulted flag feeds the per-role data-quality counts.
//
//   numeric → 0 on failure (revenue-bearing fields are never null)
//   date    → null (Valid=false) on failure
//   text    → "" for null, otherwise the stringified cell
//   flag    → true iff lower(stringified) ∈ {yes,true,1,returned}
// ============================================================================

// Reasons a coercion fell back to its default.
const (
	ReasonNull        = "null"
	ReasonUnparseable = "unparseable"
	ReasonWrongType   = "wrong type"
	ReasonNotFinite   = "not finite"
)

// Coerced is the outcome of converting one cell.
type Coerced[T any] struct {
	Value     T
	Defaulted bool
	Reason    string
}

func success[T any](v T) Coerced[T] { return Coerced[T]{Value: v} }

func fallback[T any](v T, reason string) Coerced[T] {
	return Coerced[T]{Value: v, Defaulted: true, Reason: reason}
}

// CoerceNumber converts a cell to float64, defaulting to 0.
func CoerceNumber(v any) Coerced[float64] {
	switch x := v.(type) {
	case nil:
		return fallback(0.0, ReasonNull)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fallback(0.0, ReasonNotFinite)
		}
		return success(x)
	case float32:
		return CoerceNumber(float64(x))
	case int:
		return success(float64(x))
	case int64:
		return success(float64(x))
	case bool:
		if x {
			return success(1.0)
		}
		return success(0.0)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return fallback(0.0, ReasonNull)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback(0.0, ReasonUnparseable)
		}
		return CoerceNumber(f)
	default:
		return fallback(0.0, ReasonWrongType)
	}
}

// CoerceDate converts a cell to a time. Times keep their location so that
// period bucketing follows the wall clock the source recorded. A defaulted
// result is null.
func CoerceDate(v any) Coerced[time.Time] {
	switch x := v.(type) {
	case nil:
		return fallback(time.Time{}, ReasonNull)
	case time.Time:
		if x.IsZero() {
			return fallback(time.Time{}, ReasonNull)
		}
		return success(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return fallback(time.Time{}, ReasonNull)
		}
		t, err := dataset.ParseDate(s)
		if err != nil {
			return fallback(time.Time{}, ReasonUnparseable)
		}
		return success(t)
	default:
		return fallback(time.Time{}, ReasonWrongType)
	}
}

// CoerceText stringifies a cell. Null becomes "".
func CoerceText(v any) Coerced[string] {
	if v == nil {
		return fallback("", ReasonNull)
	}
	return success(dataset.Stringify(v))
}

// CoerceFlag reports whether a cell marks a returned order.
// Matching is case-insensitive and exact; nothing is trimmed.
func CoerceFlag(v any) Coerced[bool] {
	if v == nil {
		return fallback(false, ReasonNull)
	}
	switch strings.ToLower(dataset.Stringify(v)) {
	case "yes", "true", "1", "returned":
		return success(true)
	}
	return success(false)
}
