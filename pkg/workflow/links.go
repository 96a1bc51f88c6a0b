package workflow

import (
	"fmt"
	"sort"
)

// requiredLinkFields lists the keys every object-style link must carry.
var requiredLinkFields = []string{"id", "origin_id", "origin_slot", "target_id", "target_slot", "type"}

// LinksCorrupted reports whether a document's "links" value must be
// discarded and rebuilt from the node ports.
//
// An empty array is valid. Positional arrays ([id, origin, slot, ...]) and
// anything that is not an array of complete link objects are not. A link
// object with both endpoints null is treated as corruption; a link missing
// only one endpoint is accepted as stored.
func LinksCorrupted(v any) bool {
	links, ok := asArray(v)
	if !ok {
		return true
	}
	if len(links) == 0 {
		return false
	}
	switch links[0].(type) {
	case []any:
		return true
	case map[string]any:
		for _, l := range links {
			obj := asObject(l)
			if obj == nil {
				return true
			}
			for _, f := range requiredLinkFields {
				if _, ok := obj[f]; !ok {
					return true
				}
			}
			if obj["origin_id"] == nil && obj["target_id"] == nil {
				return true
			}
		}
		return false
	}
	return true
}

// ─── link reconstruction ─────────────────────────────────────────────────────

// linkKey buckets a link id by kind so mixed numeric and string ids never
// compare across types. Numbers equal in value share a key.
type linkKey struct {
	kind int // 0 number, 1 string, 2 anything else
	num  float64
	str  string
}

func keyOf(id any) (linkKey, bool) {
	switch t := id.(type) {
	case nil, map[string]any, []any:
		return linkKey{}, false
	case string:
		return linkKey{kind: 1, str: t}, true
	}
	if isNumber(id) {
		f, ok := toFloat(id)
		if !ok {
			return linkKey{}, false
		}
		return linkKey{kind: 0, num: f}, true
	}
	return linkKey{kind: 2, str: fmt.Sprint(id)}, true
}

func (k linkKey) less(o linkKey) bool {
	if k.kind != o.kind {
		return k.kind < o.kind
	}
	if k.kind == 0 {
		return k.num < o.num
	}
	return k.str < o.str
}

type endpoint struct {
	node any
	slot any
	typ  any
}

// portIDs flattens an output port's "links" value, which may be null, a
// single id or an array of ids.
func portIDs(v any) []any {
	if v == nil {
		return nil
	}
	if arr, ok := asArray(v); ok {
		out := make([]any, 0, len(arr))
		for _, id := range arr {
			if id != nil {
				out = append(out, id)
			}
		}
		return out
	}
	return []any{v}
}

// slotOf returns the port's explicit slot_index, or its position.
func slotOf(port map[string]any, index int) any {
	if s, ok := port["slot_index"]; ok && s != nil {
		return s
	}
	return intNumber(int64(index))
}

// RebuildLinks derives the link table from each node's outputs[*].links and
// inputs[*].link fields. Only ids that have both an origin and a target are
// emitted; the result is ordered by id.
func RebuildLinks(nodes []any) []any {
	origins := map[linkKey]endpoint{}
	targets := map[linkKey]endpoint{}
	raw := map[linkKey]any{}

	remember := func(id any) (linkKey, bool) {
		k, ok := keyOf(id)
		if !ok {
			return k, false
		}
		if _, seen := raw[k]; !seen {
			raw[k] = id
		}
		return k, true
	}

	for _, n := range nodes {
		node := asObject(n)
		if node == nil {
			continue
		}
		nid := node["id"]
		if nid == nil {
			continue
		}

		outputs, _ := asArray(node["outputs"])
		for i, o := range outputs {
			port := asObject(o)
			if port == nil {
				continue
			}
			typ := port["type"]
			if typ == nil {
				typ = DefaultPortType
			}
			ep := endpoint{node: nid, slot: slotOf(port, i), typ: typ}
			for _, id := range portIDs(port["links"]) {
				if k, ok := remember(id); ok {
					origins[k] = ep
				}
			}
		}

		inputs, _ := asArray(node["inputs"])
		for i, in := range inputs {
			port := asObject(in)
			if port == nil || port["link"] == nil {
				continue
			}
			if k, ok := remember(port["link"]); ok {
				targets[k] = endpoint{node: nid, slot: slotOf(port, i)}
			}
		}
	}

	keys := make([]linkKey, 0, len(origins))
	for k := range origins {
		if _, ok := targets[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	links := make([]any, 0, len(keys))
	for _, k := range keys {
		o, t := origins[k], targets[k]
		links = append(links, map[string]any{
			"id":          raw[k],
			"origin_id":   o.node,
			"origin_slot": o.slot,
			"target_id":   t.node,
			"target_slot": t.slot,
			"type":        o.typ,
		})
	}
	return links
}

// maxLinkID returns the largest integer id in a link table. Links that are
// not objects or have no integer-like id are ignored.
func maxLinkID(links []any) (int64, bool) {
	var (
		best  int64
		found bool
	)
	for _, l := range links {
		obj := asObject(l)
		if obj == nil {
			continue
		}
		id, ok := toInt(obj["id"])
		if !ok {
			continue
		}
		if !found || id > best {
			best, found = id, true
		}
	}
	return best, found
}
