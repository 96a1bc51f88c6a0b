package workflow

import (
	"fmt"
	"strconv"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

const dotGraphName = "workflow"

// dotID turns a node id into a DOT identifier.
func dotID(id any) string {
	var sb strings.Builder
	sb.WriteString("n")
	for _, r := range fmt.Sprint(id) {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// NodeLabel is how a node is named in summaries: its type and id.
func NodeLabel(node map[string]any) string {
	t := nodeType(node)
	if t == "" {
		t = "node"
	}
	return fmt.Sprintf("%s #%v", t, node["id"])
}

// ToDOT renders the workflow's link graph as a Graphviz digraph. Groups
// become clusters; a node listed in several groups lands in the first.
// The result can be rendered through Kroki's graphviz type.
func ToDOT(doc Document) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(dotGraphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(dotGraphName, "rankdir", "LR"); err != nil {
		return "", err
	}

	nodes, _ := asArray(doc["nodes"])
	parent := map[string]string{}
	groups, _ := asArray(doc["groups"])
	for i, gv := range groups {
		group := asObject(gv)
		if group == nil {
			continue
		}
		cluster := "cluster_" + strconv.Itoa(i)
		title, _ := group["title"].(string)
		if err := g.AddSubGraph(dotGraphName, cluster, map[string]string{"label": strconv.Quote(title)}); err != nil {
			return "", fmt.Errorf("group %d: %w", i, err)
		}
		members, _ := asArray(group["nodes"])
		for _, id := range members {
			name := dotID(id)
			if _, seen := parent[name]; !seen {
				parent[name] = cluster
			}
		}
	}

	known := map[string]bool{}
	for _, n := range nodes {
		node := asObject(n)
		if node == nil || node["id"] == nil {
			continue
		}
		name := dotID(node["id"])
		p, ok := parent[name]
		if !ok {
			p = dotGraphName
		}
		attrs := map[string]string{
			"label": strconv.Quote(NodeLabel(node)),
			"shape": "box",
		}
		if err := g.AddNode(p, name, attrs); err != nil {
			return "", fmt.Errorf("node %v: %w", node["id"], err)
		}
		known[name] = true
	}

	links, _ := asArray(doc["links"])
	for _, l := range links {
		link := asObject(l)
		if link == nil {
			continue
		}
		src, dst := dotID(link["origin_id"]), dotID(link["target_id"])
		if !known[src] || !known[dst] {
			continue
		}
		label := fmt.Sprintf("%v", link["type"])
		if link["type"] == nil {
			label = DefaultPortType
		}
		attrs := map[string]string{"label": strconv.Quote(label)}
		if err := g.AddEdge(src, dst, true, attrs); err != nil {
			return "", fmt.Errorf("link %v: %w", link["id"], err)
		}
	}
	return g.String(), nil
}
