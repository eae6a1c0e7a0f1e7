// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

/*
 * Value coercion for condition evaluation.
 *
 * Rules are authored in a browser and compared with script conversion
 * semantics, so the two conversions here follow String() and Number():
 *
 *   ToString: undefined -> "undefined", null -> "null", booleans -> "true"/"false",
 *             numbers in shortest round-trip form ("9", "9.1", "1e+21"),
 *             arrays comma-joined, objects "[object Object]".
 *   ToNumber: undefined -> NaN, null -> 0, true/false -> 1/0, blank string -> 0,
 *             decimal, exponent and 0x/0o/0b literals, "Infinity" forms;
 *             every other string is NaN.
 *
 * NaN propagates through comparisons as false, which is how a non-numeric
 * actual value fails gt/gte/lt/lte without an error path.
 *
 * Undefined is a sentinel for "path did not resolve", kept distinct from
 * nil (JSON null) until the result is reported.
 */

type undefinedValue struct{}

// Undefined marks a field path that did not resolve.
var Undefined any = undefinedValue{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// isNullish reports whether v is undefined or null.
func isNullish(v any) bool {
	return v == nil || IsUndefined(v)
}

// decimalLiteral matches what Number() accepts as a decimal numeral after trimming.
var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ToNumber converts v to float64 using script Number() semantics.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case undefinedValue:
		return math.NaN()
	case nil:
		return 0
	case bool:
		if n {
			return 1
		}
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		return stringToNumber(string(n))
	case string:
		return stringToNumber(n)
	case []any:
		// Number(arr) is Number(String(arr)): [] and [null] are 0, [x, y] is NaN
		return stringToNumber(ToString(n))
	default:
		return math.NaN()
	}
}

// stringToNumber parses a numeric string the way Number() does.
func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(u)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out-of-range literals overflow to ±Inf or underflow to 0, like Number()
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// ToString converts v to its string form using script String() semantics.
func ToString(v any) string {
	switch s := v.(type) {
	case undefinedValue:
		return "undefined"
	case nil:
		return "null"
	case string:
		return s
	case bool:
		if s {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(s)
	case float32:
		return formatNumber(float64(s))
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	case json.Number:
		return formatNumber(stringToNumber(string(s)))
	case []any:
		parts := make([]string, len(s))
		for i, elem := range s {
			// Array join renders null and undefined elements as empty
			if isNullish(elem) {
				continue
			}
			parts[i] = ToString(elem)
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

// formatNumber renders f like Number.prototype.toString with radix 10.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		// Covers -0 as well
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		// Go renders 1e-07; script renders 1e-7
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
