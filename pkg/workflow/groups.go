package workflow

import (
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

type rect struct {
	x, y, w, h float64
}

// pair reads the first two finite numbers of a [a, b] array.
func pair(v any) (float64, float64, bool) {
	arr, ok := asArray(v)
	if !ok || len(arr) < 2 {
		return 0, 0, false
	}
	a, okA := toFinite(arr[0])
	b, okB := toFinite(arr[1])
	return a, b, okA && okB
}

// nodeRect returns a node's canvas rectangle from its pos and size.
func nodeRect(node map[string]any) (rect, bool) {
	x, y, ok := pair(node["pos"])
	if !ok {
		return rect{}, false
	}
	w, h, ok := pair(node["size"])
	if !ok {
		return rect{}, false
	}
	return rect{x, y, w, h}, true
}

// validBound reports whether b holds at least four finite numbers. Booleans
// count as 0 and 1.
func validBound(b any) bool {
	arr, ok := asArray(b)
	if !ok || len(arr) < 4 {
		return false
	}
	for _, v := range arr[:4] {
		if _, ok := v.(bool); ok {
			continue
		}
		if _, ok := toFinite(v); !ok {
			return false
		}
	}
	return true
}

// floatNumber renders f as a JSON number, without a fraction when integral.
func floatNumber(f float64) json.Number {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return intNumber(int64(f))
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}

func defaultBound() []any {
	out := make([]any, len(DefaultGroupBound))
	for i, v := range DefaultGroupBound {
		f, _ := toFloat(v)
		out[i] = floatNumber(f)
	}
	return out
}

// sanitizeGroups drops entries that are not JSON objects.
func sanitizeGroups(v any) []any {
	arr, ok := asArray(v)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(arr))
	for _, g := range arr {
		if asObject(g) != nil {
			out = append(out, g)
		}
	}
	return out
}

// EnsureGroupBounds gives every group a valid [x, y, w, h] bound. Existing
// valid bounds are left alone; the rest are recomputed as the padded box
// around the group's member nodes, or DefaultGroupBound when no member can
// be located. Groups are modified in place.
func EnsureGroupBounds(groups, nodes []any) {
	byID := map[linkKey]map[string]any{}
	for _, n := range nodes {
		node := asObject(n)
		if node == nil {
			continue
		}
		if k, ok := keyOf(node["id"]); ok {
			byID[k] = node
		}
	}

	for _, g := range groups {
		group := asObject(g)
		if group == nil {
			continue
		}
		if validBound(group["bound"]) {
			continue
		}

		members, _ := asArray(group["nodes"])
		var rects []rect
		for _, id := range members {
			k, ok := keyOf(id)
			if !ok {
				continue
			}
			node, ok := byID[k]
			if !ok {
				continue
			}
			if r, ok := nodeRect(node); ok {
				rects = append(rects, r)
			}
		}
		if len(rects) == 0 {
			group["bound"] = defaultBound()
			continue
		}

		minX, minY := rects[0].x, rects[0].y
		maxX, maxY := rects[0].x+rects[0].w, rects[0].y+rects[0].h
		for _, r := range rects[1:] {
			minX = math.Min(minX, r.x)
			minY = math.Min(minY, r.y)
			maxX = math.Max(maxX, r.x+r.w)
			maxY = math.Max(maxY, r.y+r.h)
		}
		group["bound"] = []any{
			floatNumber(math.Max(0, minX-GroupPadding)),
			floatNumber(math.Max(0, minY-GroupPadding)),
			floatNumber(maxX - minX + 2*GroupPadding),
			floatNumber(maxY - minY + 2*GroupPadding),
		}
	}
}
