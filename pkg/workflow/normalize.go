package workflow

// Legacy snake_case counters written by older hosts.
const (
	legacyLastLinkID = "last_link_id"
	legacyLastNodeID = "last_node_id"
)

// Normalize returns a repaired copy of doc. The input is not modified.
//
// Steps run in a fixed order: nodes are coerced to an array, the link table
// is rebuilt from node ports when it is corrupted, the id counters are
// migrated to their camelCase keys, group bounds are repaired, and the
// config and extra keys are defaulted. A missing version is set to
// SchemaVersion; an explicit null is kept.
func Normalize(doc Document) (Document, error) {
	if doc == nil {
		return nil, ErrNotObject
	}
	out, _ := deepCopy(map[string]any(doc)).(map[string]any)

	nodes, ok := asArray(out["nodes"])
	if !ok {
		nodes = []any{}
	}
	out["nodes"] = nodes

	links, _ := asArray(out["links"])
	if LinksCorrupted(out["links"]) {
		links = RebuildLinks(nodes)
	}
	out["links"] = links

	migrateCounter(out, "lastLinkId", legacyLastLinkID, func() (int64, bool) {
		return maxLinkID(links)
	}, len(links) > 0)
	migrateCounter(out, "lastNodeId", legacyLastNodeID, func() (int64, bool) {
		return maxNodeID(nodes)
	}, len(nodes) > 0)

	groups := sanitizeGroups(out["groups"])
	EnsureGroupBounds(groups, nodes)
	out["groups"] = groups

	if out["config"] == nil {
		out["config"] = map[string]any{}
	}
	if out["extra"] == nil {
		out["extra"] = map[string]any{}
	}
	if _, ok := out["version"]; !ok {
		out["version"] = floatNumber(SchemaVersion)
	}
	return out, nil
}

// migrateCounter resolves a last-id counter: the camelCase value if set and
// non-zero, else the legacy key, else the maximum id in use when the value
// is still missing or zero. The legacy key is always removed.
func migrateCounter(doc map[string]any, key, legacy string, maxID func() (int64, bool), populated bool) {
	v := doc[key]
	if lv := doc[legacy]; lv != nil && (v == nil || isZero(v)) {
		v = lv
	}
	delete(doc, legacy)

	if populated && (v == nil || isZero(v)) {
		if m, ok := maxID(); ok {
			v = m
		}
	}
	if v == nil {
		return
	}
	if i, ok := toInt(v); ok {
		doc[key] = intNumber(i)
		return
	}
	doc[key] = v
}

// maxNodeID returns the largest integer id among nodes. Nodes without an
// integer-like id are ignored.
func maxNodeID(nodes []any) (int64, bool) {
	var (
		best  int64
		found bool
	)
	for _, n := range nodes {
		node := asObject(n)
		if node == nil || node["id"] == nil {
			continue
		}
		id, ok := toInt(node["id"])
		if !ok {
			continue
		}
		if !found || id > best {
			best, found = id, true
		}
	}
	return best, found
}
