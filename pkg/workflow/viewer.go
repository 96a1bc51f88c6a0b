package workflow

// Node classes the viewer wiring looks for.
const (
	ClassDiagram = "UMLDiagram"
	ClassViewer  = "UMLViewerURL"
)

// Output names and slots of a diagram node.
const (
	OutputKrokiURL         = "kroki_url"
	OutputContentForViewer = "content_for_viewer"
	krokiURLSlot           = 2
)

// viewerGroupGrowth is added to the first group's height when a viewer node
// joins it.
const viewerGroupGrowth = 120

func nodeType(node map[string]any) string {
	s, _ := node["type"].(string)
	return s
}

// ensureViewerOutput appends the content_for_viewer output to a diagram node
// that predates it. It reports whether the node changed.
func ensureViewerOutput(node map[string]any) bool {
	if nodeType(node) != ClassDiagram {
		return false
	}
	outs, ok := asArray(node["outputs"])
	if !ok {
		return false
	}
	last := int64(-1)
	for i, o := range outs {
		port := asObject(o)
		if port == nil {
			continue
		}
		if port["name"] == OutputContentForViewer {
			return false
		}
		slot := int64(i)
		if s, ok := toInt(port["slot_index"]); ok && port["slot_index"] != nil {
			slot = s
		}
		if slot > last {
			last = slot
		}
	}
	node["outputs"] = append(outs, map[string]any{
		"name":       OutputContentForViewer,
		"type":       DefaultPortType,
		"links":      nil,
		"slot_index": intNumber(last + 1),
		"shape":      intNumber(3),
	})
	return true
}

// maxNumericID returns the largest numeric "id" among objects, or 0.
func maxNumericID(items []any) int64 {
	var m int64
	for _, it := range items {
		obj := asObject(it)
		if obj == nil || !isNumber(obj["id"]) {
			continue
		}
		if id, ok := toInt(obj["id"]); ok && id > m {
			m = id
		}
	}
	return m
}

// AddViewer wires a diagram viewer node into doc, which is modified in
// place. Every UMLDiagram node gains a content_for_viewer output if it
// lacks one. If the document has a UMLDiagram but no UMLViewerURL, a viewer
// node is placed below the first diagram and fed from its kroki_url
// output. AddViewer reports whether anything changed.
func AddViewer(doc Document) bool {
	nodes, ok := asArray(doc["nodes"])
	if !ok {
		return false
	}

	changed := false
	var first map[string]any
	for _, n := range nodes {
		node := asObject(n)
		if node == nil {
			continue
		}
		if ensureViewerOutput(node) {
			changed = true
		}
		if first == nil && nodeType(node) == ClassDiagram {
			first = node
		}
	}
	for _, n := range nodes {
		if node := asObject(n); node != nil && nodeType(node) == ClassViewer {
			return changed
		}
	}
	if first == nil {
		return changed
	}

	links, _ := asArray(doc["links"])
	nodeID := intNumber(maxNumericID(nodes) + 1)
	linkID := intNumber(maxNumericID(links) + 1)

	outs, _ := asArray(first["outputs"])
	for _, o := range outs {
		port := asObject(o)
		if port == nil || port["name"] != OutputKrokiURL {
			continue
		}
		port["links"] = append(portIDs(port["links"]), linkID)
		break
	}

	pos := []any{intNumber(100), intNumber(420)}
	if x, y, ok := pair(first["pos"]); ok {
		if _, h, ok := pair(first["size"]); ok {
			pos = []any{floatNumber(x), floatNumber(y + h + 20)}
		}
	}

	nodes = append(nodes, map[string]any{
		"id":         nodeID,
		"type":       ClassViewer,
		"class_type": ClassViewer,
		"pos":        pos,
		"size":       []any{intNumber(280), intNumber(80)},
		"flags":      map[string]any{},
		"order":      intNumber(int64(len(nodes))),
		"mode":       intNumber(0),
		"inputs": []any{
			map[string]any{"name": OutputKrokiURL, "type": DefaultPortType, "link": linkID},
		},
		"outputs": []any{
			map[string]any{"name": "viewer_url", "type": DefaultPortType, "links": nil, "slot_index": intNumber(0), "shape": intNumber(3)},
		},
		"properties":     map[string]any{"Node name for S/R": ClassViewer},
		"widgets_values": []any{},
	})
	doc["nodes"] = nodes

	doc["links"] = append(links, map[string]any{
		"id":          linkID,
		"origin_id":   first["id"],
		"origin_slot": intNumber(krokiURLSlot),
		"target_id":   nodeID,
		"target_slot": intNumber(0),
		"type":        DefaultPortType,
	})
	doc["lastNodeId"] = nodeID
	doc["lastLinkId"] = linkID

	if groups, ok := asArray(doc["groups"]); ok && len(groups) > 0 {
		if g := asObject(groups[0]); g != nil {
			if _, has := g["nodes"]; has {
				members, _ := asArray(g["nodes"])
				g["nodes"] = append(append([]any{}, members...), nodeID)
				if b, ok := asArray(g["bound"]); ok && len(b) >= 4 {
					if h, ok := toFinite(b[3]); ok {
						g["bound"] = []any{b[0], b[1], b[2], floatNumber(h + viewerGroupGrowth)}
					}
				}
			}
		}
	}
	return true
}
