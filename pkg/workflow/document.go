// Package workflow reads, repairs and writes node-graph workflow documents
// in the host's save format.
//
// A document is kept as decoded JSON (maps, slices and json.Number) rather
// than a fixed struct so that keys this package does not know about survive
// a load/normalize/save cycle untouched.
package workflow

import (
	"errors"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

// SchemaVersion is written to documents that carry no version.
const SchemaVersion = 0.4

// GroupPadding is the margin added around member nodes when a group bound
// is recomputed.
const GroupPadding = 20

// DefaultPortType is used for rebuilt links whose origin port has no type.
const DefaultPortType = "STRING"

// DefaultGroupBound is assigned to groups whose members cannot be located.
var DefaultGroupBound = []any{0, 0, 400, 300}

// ErrNotObject is returned when the top-level JSON value is not an object.
var ErrNotObject = errors.New("workflow: top-level value is not a JSON object")

// Document is a decoded workflow file.
type Document = map[string]any

// asObject returns v as a JSON object, or nil.
func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asArray returns v as a JSON array and whether it was one.
func asArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// toFloat converts a decoded JSON scalar to float64. Numeric strings are
// accepted; booleans, objects and arrays are not.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// toFinite is toFloat restricted to finite values.
func toFinite(v any) (float64, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt converts an id-like value to an integer. nil counts as zero.
// Strings must hold an integer literal.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// isNumber reports whether v is a JSON number.
func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64:
		return true
	}
	return false
}

// isZero reports whether v is the number zero.
func isZero(v any) bool {
	if !isNumber(v) {
		return false
	}
	f, ok := toFloat(v)
	return ok && f == 0
}

// intNumber renders an integer as a JSON number.
func intNumber(i int64) json.Number {
	return json.Number(strconv.FormatInt(i, 10))
}

// deepCopy clones the map/slice structure of a decoded JSON value.
// Scalars are immutable and shared.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	}
	return v
}
