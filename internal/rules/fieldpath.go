// internal/rules/fieldpath.go
package rules

import (
	"strconv"
	"strings"
)

/*
 * Dotted field path resolution for parsed JSON entities.
 *
 * Each "." is a null-safe property access: resolution walks the entity one
 * segment at a time and stops with Found=false the moment an intermediate
 * value is null, missing, or not a container. Nothing here returns an error.
 *
 * Key functions:
 *   - ParsePath: splits "threat_actor.trend_status" into segments
 *   - Resolve: walks a parsed entity following a dotted path
 *   - resolveRecursive: internal traversal over maps and arrays
 *
 * Arrays: a segment made only of decimal digits indexes into an array, the
 * same way property access by numeric key works on script arrays. The same
 * segment is a plain key when the container is an object.
 *
 * Null vs undefined: a present JSON null resolves with Found=true and a nil
 * Value so the explanation tree can tell "null" from "missing".
 */

// PathSegment is one component of a dotted field path.
type PathSegment struct {
	Key     string // raw segment text, always set
	Index   int    // array index, valid only when IsIndex
	IsIndex bool   // segment is a non-negative decimal integer
}

// ResolveResult contains the resolved value.
type ResolveResult struct {
	Value any  // resolved value (nil for JSON null or not found)
	Found bool // false when any segment could not be followed
}

// ParsePath splits a dotted path into segments.
// An empty path yields no segments.
func ParsePath(path string) []PathSegment {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	segments := make([]PathSegment, len(parts))
	for i, p := range parts {
		segments[i] = PathSegment{Key: p}
		if isArrayIndex(p) {
			if n, err := strconv.Atoi(p); err == nil {
				segments[i].Index = n
				segments[i].IsIndex = true
			}
		}
	}
	return segments
}

// isArrayIndex reports whether s is a canonical non-negative decimal integer.
// "01" is a property name, not an index.
func isArrayIndex(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Resolve extracts the value at path from a parsed entity.
// An empty path resolves to not found.
func Resolve(entity any, path string) ResolveResult {
	segments := ParsePath(path)
	if len(segments) == 0 {
		return ResolveResult{}
	}
	return resolveRecursive(segments, entity)
}

// resolveRecursive follows segments through nested maps and arrays.
func resolveRecursive(path []PathSegment, current any) ResolveResult {
	if len(path) == 0 {
		return ResolveResult{Value: current, Found: true}
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case map[string]any:
		val, ok := v[seg.Key]
		if !ok {
			return ResolveResult{}
		}
		return resolveRecursive(remaining, val)

	case []any:
		if !seg.IsIndex || seg.Index >= len(v) {
			return ResolveResult{}
		}
		return resolveRecursive(remaining, v[seg.Index])

	case nil:
		// Null at an intermediate position
		return ResolveResult{}

	default:
		// Scalar value but path continues
		return ResolveResult{}
	}
}
