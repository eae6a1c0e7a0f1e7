// internal/rules/operators.go
package rules

import (
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the 13 condition operators. actual is the resolved entity value
 * (possibly Undefined); expected is Condition.Value; values is Condition.Values.
 *
 * Operators:
 *   - eq/neq: string-form equality, case-sensitive
 *   - gt/gte/lt/lte: numeric after ToNumber on both sides, NaN never matches
 *   - contains/starts_with/ends_with: case-insensitive on string forms.
 *     Policy: a null or undefined actual never matches, even though its
 *     string form ("null", "undefined") might contain the expected text
 *   - in/not_in: values contains the string form of actual
 *   - is_null/is_not_null: undefined, null or ""
 *
 * Unknown operators return false. No operator panics on any input.
 */

// Compare applies op to actual against expected (or values for in/not_in).
func Compare(op types.Operator, actual, expected any, values []any) bool {
	switch op {
	case types.OpEq:
		return compareEqual(actual, expected)
	case types.OpNeq:
		return !compareEqual(actual, expected)
	case types.OpGt:
		return ToNumber(actual) > ToNumber(expected)
	case types.OpGte:
		return ToNumber(actual) >= ToNumber(expected)
	case types.OpLt:
		return ToNumber(actual) < ToNumber(expected)
	case types.OpLte:
		return ToNumber(actual) <= ToNumber(expected)
	case types.OpContains:
		return compareText(actual, expected, strings.Contains)
	case types.OpStartsWith:
		return compareText(actual, expected, strings.HasPrefix)
	case types.OpEndsWith:
		return compareText(actual, expected, strings.HasSuffix)
	case types.OpIn:
		return compareIn(actual, values)
	case types.OpNotIn:
		return !compareIn(actual, values)
	case types.OpIsNull:
		return isEmpty(actual)
	case types.OpIsNotNull:
		return !isEmpty(actual)
	default:
		return false
	}
}

// compareEqual compares string forms, so 9 equals "9" and true equals "true".
func compareEqual(actual, expected any) bool {
	return ToString(actual) == ToString(expectedOrEmpty(expected))
}

// compareText lowercases both string forms and applies match.
// A nullish actual is never matched, so "contains null" does not hit
// missing fields.
func compareText(actual, expected any, match func(s, substr string) bool) bool {
	if isNullish(actual) {
		return false
	}
	a := strings.ToLower(ToString(actual))
	e := strings.ToLower(ToString(expectedOrEmpty(expected)))
	return match(a, e)
}

// compareIn reports whether any element of values has the same string form as actual.
func compareIn(actual any, values []any) bool {
	s := ToString(actual)
	for _, v := range values {
		if ToString(v) == s {
			return true
		}
	}
	return false
}

// isEmpty is the is_null predicate: undefined, null, or the empty string.
func isEmpty(v any) bool {
	if isNullish(v) {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// expectedOrEmpty maps an unset expected value to "", the builder's default.
func expectedOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
